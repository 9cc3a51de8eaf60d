package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	n := NewPhotoNormalizer("https://backend.example.com/api/", testLogger())

	cases := map[string]struct {
		ref    string
		want   string
		wantOK bool
	}{
		"data uri":          {ref: "data:image/jpeg;base64,/9j/4AAQ"},
		"upper data uri":    {ref: "DATA:image/png;base64,iVBOR"},
		"blank":             {ref: "   "},
		"absolute https":    {ref: "https://cdn.example.com/a.jpg", want: "https://cdn.example.com/a.jpg", wantOK: true},
		"absolute http":     {ref: "http://cdn.example.com/a.jpg?w=800", want: "http://cdn.example.com/a.jpg?w=800", wantOK: true},
		"localhost":         {ref: "http://localhost:8000/media/a.jpg"},
		"loopback ipv4":     {ref: "http://127.0.0.1/media/a.jpg"},
		"loopback ipv6":     {ref: "http://[::1]/media/a.jpg"},
		"empty host":        {ref: "https:///a.jpg"},
		"relative":          {ref: "/media/listings/a.jpg", want: "https://backend.example.com/media/listings/a.jpg", wantOK: true},
		"relative no slash": {ref: "media/a.jpg", want: "https://backend.example.com/media/a.jpg", wantOK: true},
		"relative slashes":  {ref: "//media/a.jpg", want: "https://backend.example.com/media/a.jpg", wantOK: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, ok := n.Normalize(tc.ref)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("Normalize(%q) = (%q, %v), want (%q, %v)", tc.ref, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	n := NewPhotoNormalizer("https://backend.example.com/api", testLogger())
	for _, ref := range []string{"/media/a.jpg", "https://cdn.example.com/b.jpg", "c.png"} {
		once, ok := n.Normalize(ref)
		if !ok {
			t.Fatalf("Normalize(%q) rejected", ref)
		}
		twice, ok := n.Normalize(once)
		if !ok || twice != once {
			t.Errorf("Normalize(%q) = (%q, %v), want (%q, true)", once, twice, ok, once)
		}
	}
}

func TestNormalizeWithoutBackend(t *testing.T) {
	t.Parallel()

	n := NewPhotoNormalizer("", testLogger())
	if got, ok := n.Normalize("/media/a.jpg"); ok {
		t.Errorf("Normalize() = %q, want rejection without a backend origin", got)
	}
	if got, ok := n.Normalize("https://cdn.example.com/a.jpg"); !ok || got != "https://cdn.example.com/a.jpg" {
		t.Errorf("Normalize() = (%q, %v), want absolute URL accepted", got, ok)
	}
}

func TestNormalizeLocalBackend(t *testing.T) {
	t.Parallel()

	n := NewPhotoNormalizer("http://localhost:8000/api", testLogger())
	if got, ok := n.Normalize("/media/a.jpg"); ok {
		t.Errorf("Normalize() = %q, want rejection of a loopback origin", got)
	}
}

func TestNormalizeAll(t *testing.T) {
	t.Parallel()

	n := NewPhotoNormalizer("https://backend.example.com/api", testLogger())
	got := n.NormalizeAll([]string{
		"data:image/png;base64,AAAA",
		"/media/a.jpg",
		"",
		"http://localhost/b.jpg",
		"https://cdn.example.com/c.jpg",
	})
	want := []string{
		"https://backend.example.com/media/a.jpg",
		"https://cdn.example.com/c.jpg",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NormalizeAll() mismatch (-want +got):\n%s", diff)
	}
}
