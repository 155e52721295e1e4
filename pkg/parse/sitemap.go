package parse

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/Sriram-PR/recon-crawler/pkg/utils"
)

// --- XML Structs for Sitemap Parsing ---
// Field tags carry no namespace so <url>, <sitemap> and <loc> match under any xmlns

// XMLURL represents a <url> element in a sitemap
type XMLURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLSitemap represents a <sitemap> element in a sitemap index file
type XMLSitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// SitemapDocument is either a <urlset> or a <sitemapindex>; the root element name is not checked
type SitemapDocument struct {
	URLs     []XMLURL     `xml:"url"`
	Sitemaps []XMLSitemap `xml:"sitemap"`
}

// ParseSitemap decodes a sitemap or sitemap index body
// Non UTF-8 documents are transcoded using their XML declaration
func ParseSitemap(body []byte) (*SitemapDocument, error) {
	var doc SitemapDocument
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Strict = false
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: sitemap xml: %w", utils.ErrParsing, err)
	}
	return &doc, nil
}

// PageLocs returns the trimmed, non-empty <url><loc> values in document order
func (d *SitemapDocument) PageLocs() []string {
	locs := make([]string, 0, len(d.URLs))
	for _, u := range d.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs
}

// ChildSitemaps returns <sitemap><loc> values that point at further XML sitemaps
func (d *SitemapDocument) ChildSitemaps() []string {
	var locs []string
	for _, s := range d.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); IsXMLSitemap(loc) {
			locs = append(locs, loc)
		}
	}
	return locs
}

// IsXMLSitemap reports whether a sitemap reference ends in .xml (case-insensitive)
func IsXMLSitemap(loc string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(loc)), ".xml")
}
