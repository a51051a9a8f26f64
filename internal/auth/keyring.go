// Package auth persists the cookie blob a user chose to remember in the
// system keyring.
package auth

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const (
	service = "media-downloader"
	user    = "cookies"
)

// SetCookies remembers a cookie blob.
func SetCookies(blob []byte) error {
	return keyring.Set(service, user, string(blob))
}

// GetCookies returns the remembered cookie blob. A missing entry is not an
// error and yields nil.
func GetCookies() ([]byte, error) {
	v, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

// DeleteCookies forgets the remembered cookie blob.
func DeleteCookies() error {
	err := keyring.Delete(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
