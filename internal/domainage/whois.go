package domainage

import (
	"context"
	"errors"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
)

// WhoisFunc returns the creation date of a registrable domain.
type WhoisFunc func(ctx context.Context, domain string) (time.Time, error)

// errNoCreationDate is returned when a WHOIS record has no usable creation date.
var errNoCreationDate = errors.New("whois record has no creation date")

// NewWhoisLookup returns a WhoisFunc backed by a WHOIS client with the given
// network timeout. The lookup also stops when ctx is done.
func NewWhoisLookup(timeout time.Duration) WhoisFunc {
	client := whois.NewClient().SetTimeout(timeout)

	return func(ctx context.Context, domain string) (time.Time, error) {
		type result struct {
			raw string
			err error
		}

		ch := make(chan result, 1)
		go func() {
			raw, err := client.Whois(domain)
			ch <- result{raw: raw, err: err}
		}()

		var res result
		select {
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		case res = <-ch:
		}
		if res.err != nil {
			return time.Time{}, res.err
		}

		info, err := whoisparser.Parse(res.raw)
		if err != nil {
			return time.Time{}, err
		}
		if info.Domain == nil || info.Domain.CreatedDate == "" {
			return time.Time{}, errNoCreationDate
		}
		return parseDate(info.Domain.CreatedDate)
	}
}
