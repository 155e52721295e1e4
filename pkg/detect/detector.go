// Package detect fingerprints the technologies behind a target from the
// probe response: headers, cookies and, for HTML pages, document signatures.
package detect

import (
	"bytes"
	"mime"
	"net/http"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	wappalyzer "github.com/projectdiscovery/wappalyzergo"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/fetch"
	"github.com/Sriram-PR/recon-crawler/pkg/models"
)

// catalogEvidence marks technologies reported by the wappalyzer catalog
const catalogEvidence = "wappalyzer catalog"

// Fingerprinter is a catalog-based matcher; names may carry a ":version" suffix
type Fingerprinter interface {
	Fingerprint(headers map[string][]string, body []byte) map[string]struct{}
}

// Detector matches responses against the built-in signatures, then adds
// whatever the wappalyzer catalog recognizes on top
type Detector struct {
	signatures []Signature
	catalog    Fingerprinter // nil when the catalog failed to load
	log        *logrus.Entry
}

// NewDetector creates a detector over the built-in signature set and the
// wappalyzer catalog. A catalog that fails to load only costs coverage.
func NewDetector(log *logrus.Entry) *Detector {
	d := &Detector{signatures: signatures, log: log}
	client, err := wappalyzer.New()
	if err != nil {
		log.Warnf("Wappalyzer catalog unavailable, using built-in signatures only: %v", err)
		return d
	}
	d.catalog = client
	return d
}

// Detect fingerprints resp. A nil response yields nil. Document signatures are
// only checked for successful HTML responses; headers are always checked.
func (d *Detector) Detect(resp *fetch.Response) []models.Technology {
	if resp == nil {
		return nil
	}
	header := resp.Header
	if header == nil {
		header = http.Header{}
	}

	var doc *goquery.Document
	var htmlLower string
	var body []byte
	if resp.IsSuccess() && isHTML(header) && len(resp.Body) > 0 {
		body = resp.Body
		parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			d.log.Debugf("Skipping document signatures: %v", err)
		} else {
			doc = parsed
			htmlLower = strings.ToLower(string(body))
		}
	}

	found := d.match(header, doc, htmlLower)
	if d.catalog != nil {
		found = mergeCatalog(found, d.catalog.Fingerprint(header, body))
	}
	if len(found) > 0 {
		d.log.Debugf("Detected %d technologies", len(found))
	}
	return found
}

func (d *Detector) match(header http.Header, doc *goquery.Document, htmlLower string) []models.Technology {
	var found []models.Technology
	for i := range d.signatures {
		sig := &d.signatures[i]
		if evidence := sig.Match(header, doc, htmlLower); evidence != "" {
			found = append(found, models.Technology{Name: sig.Name, Category: sig.Category, Evidence: evidence})
		}
	}
	return found
}

// mergeCatalog appends catalog hits, sorted by name, that the signatures did
// not already report. A catalog version fills in the version of a signature hit.
func mergeCatalog(found []models.Technology, hits map[string]struct{}) []models.Technology {
	if len(hits) == 0 {
		return found
	}
	index := make(map[string]int, len(found))
	for i, t := range found {
		index[strings.ToLower(t.Name)] = i
	}

	names := make([]string, 0, len(hits))
	for h := range hits {
		names = append(names, h)
	}
	sort.Strings(names)

	for _, h := range names {
		name, version, _ := strings.Cut(h, ":")
		if i, ok := index[strings.ToLower(name)]; ok {
			if found[i].Version == "" {
				found[i].Version = version
			}
			continue
		}
		index[strings.ToLower(name)] = len(found)
		found = append(found, models.Technology{Name: name, Version: version, Evidence: catalogEvidence})
	}
	return found
}

// isHTML treats a missing Content-Type as HTML
func isHTML(header http.Header) bool {
	ct := header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
