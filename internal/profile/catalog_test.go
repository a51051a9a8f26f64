package profile

import (
	"errors"
	"reflect"
	"testing"

	"github.com/handiism/media-downloader/internal/model"
)

func TestDefault(t *testing.T) {
	got := Default().Names()
	want := []string{"android", "web_embedded", "ios", "web"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestDefault_HeadersComplete(t *testing.T) {
	for _, p := range Default().Ordered() {
		for _, h := range []string{"User-Agent", "Accept-Language", "Referer", "Origin"} {
			if p.Header(h) == "" {
				t.Errorf("profile %s: header %s is empty", p.Name, h)
			}
		}
	}
}

func TestNew(t *testing.T) {
	if _, err := New(); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("New() error = %v, want ErrEmptyCatalog", err)
	}
	if _, err := New(model.ClientProfile{Name: "a"}, model.ClientProfile{Name: "a"}); err == nil {
		t.Error("New() with duplicate names should fail")
	}
	if _, err := New(model.ClientProfile{}); err == nil {
		t.Error("New() with an unnamed profile should fail")
	}

	c, err := New(
		model.ClientProfile{Name: "late", Rank: 5},
		model.ClientProfile{Name: "first", Rank: 0},
		model.ClientProfile{Name: "tie", Rank: 5},
	)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := c.Names(), []string{"first", "late", "tie"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestCatalog_OrderedIsACopy(t *testing.T) {
	c := Default()
	profiles := c.Ordered()
	profiles[0].Name = "mutated"
	profiles[0].Headers["User-Agent"] = "mutated"

	first := c.Ordered()[0]
	if first.Name != "android" || first.Header("User-Agent") == "mutated" {
		t.Error("Ordered() exposes catalog internals")
	}
}

func TestCatalog_Select(t *testing.T) {
	c := Default()

	tests := []struct {
		name    string
		names   []string
		want    []string
		wantErr bool
	}{
		{"empty keeps catalog", nil, []string{"android", "web_embedded", "ios", "web"}, false},
		{"reorder", []string{"web", "ios"}, []string{"web", "ios"}, false},
		{"case insensitive", []string{" IOS "}, []string{"ios"}, false},
		{"unknown", []string{"tv"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Select(tt.names)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownProfile) {
					t.Errorf("Select() error = %v, want ErrUnknownProfile", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if !reflect.DeepEqual(got.Names(), tt.want) {
				t.Errorf("Select() = %v, want %v", got.Names(), tt.want)
			}
		})
	}
}
