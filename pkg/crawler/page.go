package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/recon-crawler/pkg/fetch"
	"github.com/Sriram-PR/recon-crawler/pkg/scope"
	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

// Page is a successfully fetched and parsed HTML document
type Page struct {
	URL    *url.URL // final URL after redirects; base for relative links
	Domain string   // registrable domain of URL
	Doc    *goquery.Document
}

type pageState int

const (
	stateFetching pageState = iota
	stateRedirecting
	stateSuccess
	stateFailed
)

// FetchPage retrieves rawURL, following same-scope redirects up to the
// configured hop cap, and parses the final body as HTML.
// initial, when non-nil, stands in for the first request's response.
func (c *Crawler) FetchPage(ctx context.Context, rawURL string, initial *fetch.Response) (*Page, error) {
	current, err := url.Parse(rawURL)
	if err != nil || !scope.IsHTTP(current) {
		return nil, fmt.Errorf("%w: invalid page URL '%s'", utils.ErrParsing, rawURL)
	}

	resp := initial
	state := stateFetching
	redirects := 0
	var page *Page
	var failure error

	for state != stateSuccess && state != stateFailed {
		switch state {
		case stateFetching:
			if resp == nil {
				resp, err = c.fetcher.Fetch(ctx, current.String())
				if err != nil {
					failure = err
					state = stateFailed
					continue
				}
			}
			switch {
			case resp.IsSuccess():
				page, failure = parsePage(current, resp.Body)
				state = stateSuccess
				if failure != nil {
					state = stateFailed
				}
			case resp.IsRedirect():
				state = stateRedirecting
			default:
				failure = statusError(resp)
				state = stateFailed
			}

		case stateRedirecting:
			next, err := resp.ResolveLocation()
			switch {
			case err != nil:
				failure = err
				state = stateFailed
			case !scope.IsHTTP(next):
				failure = fmt.Errorf("%w: redirect to non-http location '%s'", utils.ErrParsing, next)
				state = stateFailed
			case !scope.SameScope(current, next):
				failure = fmt.Errorf("%w: redirect %s -> %s leaves scope", utils.ErrScopeViolation, current, next)
				state = stateFailed
			case redirects >= c.limits.MaxRedirects:
				failure = fmt.Errorf("%w: more than %d redirects from %s", utils.ErrTooManyRedirects, c.limits.MaxRedirects, rawURL)
				state = stateFailed
			default:
				redirects++
				c.log.WithField("url", current.String()).Debugf("Following redirect %d to %s", redirects, next)
				current = next
				resp = nil
				state = stateFetching
			}
		}
	}

	if failure != nil {
		return nil, failure
	}
	return page, nil
}

func parsePage(u *url.URL, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: html for %s: %w", utils.ErrParsing, u, err)
	}
	doc.Url = u
	return &Page{URL: u, Domain: scope.RegistrableDomain(u.Hostname()), Doc: doc}, nil
}

func statusError(resp *fetch.Response) error {
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: status %d fetching %s", utils.ErrClientHTTPError, resp.StatusCode, resp.URL)
	}
	return fmt.Errorf("%w: status %d fetching %s", utils.ErrOtherHTTPError, resp.StatusCode, resp.URL)
}
