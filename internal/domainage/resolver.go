package domainage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/trustscan/internal/model"
)

// maxRDAPBody caps how much of an RDAP response is decoded.
const maxRDAPBody = 1 << 20

// Resolver looks up domain registration age.
type Resolver struct {
	client      *http.Client
	rdapBaseURL string
	timeout     time.Duration
	whois       WhoisFunc
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the client used for RDAP requests.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithRDAPBaseURL sets the RDAP endpoint. The domain is appended to it.
func WithRDAPBaseURL(base string) Option {
	return func(r *Resolver) {
		r.rdapBaseURL = base
	}
}

// WithTimeout bounds a whole AgeDays call, fallback included.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// WithWhois enables the WHOIS fallback.
func WithWhois(fn WhoisFunc) Option {
	return func(r *Resolver) {
		r.whois = fn
	}
}

// WithClock sets the time source used to compute ages.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver. Without options it queries rdap.org with
// a 5 second timeout and no WHOIS fallback.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client:      http.DefaultClient,
		rdapBaseURL: "https://rdap.org/domain/",
		timeout:     5 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// AgeDays returns the registration age in whole days of hostname's
// registrable domain. Any failure wraps model.ErrUnavailable.
func (r *Resolver) AgeDays(ctx context.Context, hostname string) (int, error) {
	domain := RegistrableDomain(hostname)
	if domain == "" {
		return 0, fmt.Errorf("%w: empty hostname", model.ErrUnavailable)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	registered, err := r.rdapRegistration(ctx, domain)
	if err != nil && r.whois != nil && ctx.Err() == nil {
		r.logger.Debug("rdap lookup failed, trying whois", "domain", domain, "error", err)
		registered, err = r.whois(ctx, domain)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: domain age for %s: %s", model.ErrUnavailable, domain, err.Error())
	}

	days, err := daysSince(registered, r.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %s", model.ErrUnavailable, err.Error())
	}
	return days, nil
}

type rdapResponse struct {
	Events []rdapEvent `json:"events"`
}

type rdapEvent struct {
	EventAction string `json:"eventAction"`
	EventDate   string `json:"eventDate"`
}

var errNoRegistrationEvent = errors.New("no registration event")

// rdapRegistration returns the registration date reported by RDAP.
func (r *Resolver) rdapRegistration(ctx context.Context, domain string) (time.Time, error) {
	endpoint := r.rdapBaseURL
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	endpoint += url.PathEscape(domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return time.Time{}, err
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return time.Time{}, fmt.Errorf("rdap status %d", resp.StatusCode)
	}

	var body rdapResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRDAPBody)).Decode(&body); err != nil {
		return time.Time{}, fmt.Errorf("decode rdap response: %w", err)
	}

	return registrationDate(body.Events)
}

// registrationDate picks the "registration" event. A "reregistration" date is
// only used when the registry reports no original registration.
func registrationDate(events []rdapEvent) (time.Time, error) {
	fallback := ""
	for _, ev := range events {
		switch strings.ToLower(strings.TrimSpace(ev.EventAction)) {
		case "registration":
			return parseDate(ev.EventDate)
		case "reregistration":
			if fallback == "" {
				fallback = ev.EventDate
			}
		}
	}
	if fallback != "" {
		return parseDate(fallback)
	}
	return time.Time{}, errNoRegistrationEvent
}
