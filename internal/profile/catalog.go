// Package profile holds the ordered catalog of client identities that the
// resolver presents to a remote, one after another, until one is accepted.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/handiism/media-downloader/internal/model"
	"github.com/samber/lo"
)

var (
	// ErrEmptyCatalog is returned when a catalog would hold no profiles.
	ErrEmptyCatalog = errors.New("profile catalog is empty")

	// ErrUnknownProfile is returned by Select for names not in the catalog.
	ErrUnknownProfile = errors.New("unknown profile")
)

// OriginPlaceholder in a header value is replaced with the scheme and host
// of the request URL, e.g. "https://example.com".
const OriginPlaceholder = "{origin}"

// Catalog is an immutable, ordered list of client profiles.
//
// The order is fixed when the catalog is built and never changes. Every
// accessor returns copies, so callers can't reorder or edit entries.
type Catalog struct {
	profiles []model.ClientProfile
}

// New builds a catalog ordered by Rank. Profiles with equal rank keep the
// order they were given in.
func New(profiles ...model.ClientProfile) (*Catalog, error) {
	if len(profiles) == 0 {
		return nil, ErrEmptyCatalog
	}

	seen := make(map[string]struct{}, len(profiles))
	sorted := make([]model.ClientProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.Name == "" {
			return nil, errors.New("profile without a name")
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		sorted = append(sorted, p.Clone())
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	return &Catalog{profiles: sorted}, nil
}

// Default returns the built-in catalog: android, web_embedded, ios, web.
func Default() *Catalog {
	return lo.Must(New(builtin()...))
}

// Ordered returns the profiles in try order.
func (c *Catalog) Ordered() []model.ClientProfile {
	return lo.Map(c.profiles, func(p model.ClientProfile, _ int) model.ClientProfile {
		return p.Clone()
	})
}

// Len returns the number of profiles.
func (c *Catalog) Len() int {
	return len(c.profiles)
}

// Names returns the profile names in try order.
func (c *Catalog) Names() []string {
	return lo.Map(c.profiles, func(p model.ClientProfile, _ int) string { return p.Name })
}

// Lookup finds a profile by name, case-insensitively.
func (c *Catalog) Lookup(name string) (model.ClientProfile, bool) {
	p, ok := lo.Find(c.profiles, func(p model.ClientProfile) bool {
		return strings.EqualFold(p.Name, name)
	})
	if !ok {
		return model.ClientProfile{}, false
	}
	return p.Clone(), true
}

// Select returns a new catalog holding only the named profiles, in the
// order given. An empty list returns the catalog unchanged.
func (c *Catalog) Select(names []string) (*Catalog, error) {
	names = lo.Compact(lo.Map(names, func(n string, _ int) string { return strings.TrimSpace(n) }))
	if len(names) == 0 {
		return c, nil
	}

	picked := make([]model.ClientProfile, 0, len(names))
	for rank, name := range names {
		p, ok := c.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownProfile, name, strings.Join(c.Names(), ", "))
		}
		p.Rank = rank
		picked = append(picked, p)
	}
	return New(picked...)
}
