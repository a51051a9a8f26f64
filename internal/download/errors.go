package download

import (
	"errors"
	"fmt"

	"github.com/handiism/media-downloader/internal/model"
)

var (
	// ErrInvalidURL is returned before any network call for empty,
	// malformed or disallowed input.
	ErrInvalidURL = errors.New("invalid url")

	// ErrMergeToolMissing means the chosen formats need merging but no
	// merge tool is available.
	ErrMergeToolMissing = errors.New("merge tool not available")

	// ErrNoSuitableFormat means no format satisfies the preference.
	ErrNoSuitableFormat = errors.New("no suitable format")

	// ErrOutputMissing means a transfer finished but left no usable file.
	ErrOutputMissing = errors.New("output missing after transfer")

	// ErrTransferFailed is matched by every *TransferError.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrPartialFailure is returned with the report when strict playlist
	// mode is on and at least one item failed.
	ErrPartialFailure = errors.New("some items failed")
)

// TransferError reports a fragment that could not be fetched.
type TransferError struct {
	ItemID   string
	Format   string
	Fragment int
	Attempts []model.FetchAttempt
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s format %s fragment %d after %d attempts: %v",
		e.ItemID, e.Format, e.Fragment, len(e.Attempts), e.Err)
}

// Is makes errors.Is(err, ErrTransferFailed) true.
func (e *TransferError) Is(target error) bool {
	return target == ErrTransferFailed
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
