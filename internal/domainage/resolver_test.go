package domainage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nao1215/trustscan/internal/model"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func rdapServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolver_AgeDays(t *testing.T) {
	t.Parallel()

	t.Run("registration event", func(t *testing.T) {
		t.Parallel()

		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_, _ = w.Write([]byte(`{"events":[
				{"eventAction":"last changed","eventDate":"2026-01-01T00:00:00Z"},
				{"eventAction":"registration","eventDate":"2025-06-01T12:00:00Z"}
			]}`))
		}))
		t.Cleanup(srv.Close)

		r := NewResolver(WithRDAPBaseURL(srv.URL+"/domain"), WithClock(clock))
		days, err := r.AgeDays(context.Background(), "www.shop.example.co.uk")
		if err != nil {
			t.Fatalf("AgeDays: %v", err)
		}
		if days != 365 {
			t.Errorf("expected 365 days, got %d", days)
		}
		if gotPath != "/domain/example.co.uk" {
			t.Errorf("expected lookup of registrable domain, got path %q", gotPath)
		}
	})

	t.Run("date only layout", func(t *testing.T) {
		t.Parallel()

		srv := rdapServer(t, http.StatusOK, `{"events":[{"eventAction":"Registration","eventDate":"2026-05-02"}]}`)
		r := NewResolver(WithRDAPBaseURL(srv.URL), WithClock(clock))
		days, err := r.AgeDays(context.Background(), "example.com")
		if err != nil {
			t.Fatalf("AgeDays: %v", err)
		}
		if days != 30 {
			t.Errorf("expected 30 days, got %d", days)
		}
	})

	t.Run("reregistration listed first", func(t *testing.T) {
		t.Parallel()

		srv := rdapServer(t, http.StatusOK, `{"events":[
			{"eventAction":"reregistration","eventDate":"2026-05-02T12:00:00Z"},
			{"eventAction":"registration","eventDate":"2025-06-01T12:00:00Z"}
		]}`)
		r := NewResolver(WithRDAPBaseURL(srv.URL), WithClock(clock))
		days, err := r.AgeDays(context.Background(), "example.com")
		if err != nil {
			t.Fatalf("AgeDays: %v", err)
		}
		if days != 365 {
			t.Errorf("expected the original registration (365 days), got %d", days)
		}
	})

	t.Run("reregistration only", func(t *testing.T) {
		t.Parallel()

		srv := rdapServer(t, http.StatusOK, `{"events":[{"eventAction":"reregistration","eventDate":"2026-05-02T12:00:00Z"}]}`)
		r := NewResolver(WithRDAPBaseURL(srv.URL), WithClock(clock))
		days, err := r.AgeDays(context.Background(), "example.com")
		if err != nil {
			t.Fatalf("AgeDays: %v", err)
		}
		if days != 30 {
			t.Errorf("expected 30 days, got %d", days)
		}
	})

	failures := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{}`},
		{name: "missing event", status: http.StatusOK, body: `{"events":[{"eventAction":"expiration","eventDate":"2030-01-01T00:00:00Z"}]}`},
		{name: "unparsable date", status: http.StatusOK, body: `{"events":[{"eventAction":"registration","eventDate":"yesterday"}]}`},
		{name: "future date", status: http.StatusOK, body: `{"events":[{"eventAction":"registration","eventDate":"2027-01-01T00:00:00Z"}]}`},
		{name: "invalid json", status: http.StatusOK, body: `<html>`},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := rdapServer(t, tt.status, tt.body)
			r := NewResolver(WithRDAPBaseURL(srv.URL), WithClock(clock))
			_, err := r.AgeDays(context.Background(), "example.com")
			if !errors.Is(err, model.ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
		})
	}

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(func() {
			close(release)
			srv.Close()
		})

		r := NewResolver(WithRDAPBaseURL(srv.URL), WithTimeout(50*time.Millisecond), WithClock(clock))
		start := time.Now()
		_, err := r.AgeDays(context.Background(), "example.com")
		if !errors.Is(err, model.ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("lookup did not honor its timeout: %v", elapsed)
		}
	})
}

func TestResolver_WhoisFallback(t *testing.T) {
	t.Parallel()

	srv := rdapServer(t, http.StatusNotFound, `{}`)

	var asked string
	whois := func(_ context.Context, domain string) (time.Time, error) {
		asked = domain
		return fixedNow.AddDate(0, 0, -100), nil
	}

	r := NewResolver(WithRDAPBaseURL(srv.URL), WithWhois(whois), WithClock(clock))
	days, err := r.AgeDays(context.Background(), "blog.example.org")
	if err != nil {
		t.Fatalf("AgeDays: %v", err)
	}
	if days != 100 {
		t.Errorf("expected 100 days, got %d", days)
	}
	if asked != "example.org" {
		t.Errorf("expected whois for example.org, got %q", asked)
	}
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"www.example.com":     "example.com",
		"Shop.Example.co.uk.": "example.co.uk",
		"example.com":         "example.com",
		"a.b.c.example.org":   "example.org",
		"192.168.10.1":        "192.168.10.1",
		"user.github.io":      "user.github.io",
	}
	for in, want := range tests {
		if got := RegistrableDomain(in); got != want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"2020-01-02T03:04:05Z", "2020-01-02T03:04:05.123Z", "2020-01-02", "02-Jan-2020", "2020.01.02", "2020-01-02 03:04:05"} {
		got, err := parseDate(s)
		if err != nil {
			t.Errorf("parseDate(%q): %v", s, err)
			continue
		}
		if got.Year() != 2020 || got.Month() != time.January || got.Day() != 2 {
			t.Errorf("parseDate(%q) = %v", s, got)
		}
	}
	if _, err := parseDate("not a date"); err == nil {
		t.Error("expected error for garbage")
	}
}
