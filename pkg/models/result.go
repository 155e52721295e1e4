package models

import "encoding/json"

// Category tags one of the seven link classes the extractor produces
type Category string

const (
	CategoryRobots     Category = "robots"
	CategorySitemap    Category = "sitemap"
	CategoryStylesheet Category = "stylesheet"
	CategoryScript     Category = "script"
	CategoryInternal   Category = "internal"
	CategoryExternal   Category = "external"
	CategoryImage      Category = "image"
)

// Categories lists every link category in extraction order
var Categories = []Category{
	CategoryRobots,
	CategorySitemap,
	CategoryStylesheet,
	CategoryScript,
	CategoryInternal,
	CategoryExternal,
	CategoryImage,
}

// TargetInfo is the target section of a CrawlResult
type TargetInfo struct {
	Original   string `json:"original" yaml:"original"`
	Effective  string `json:"effective" yaml:"effective"`
	Reanchored bool   `json:"reanchored" yaml:"reanchored"`
	Reason     string `json:"reason" yaml:"reason"`
	ReasonCode string `json:"reason_code" yaml:"reason_code"`
}

// Stats is computed once from the final CrawlResult state
type Stats struct {
	RobotsCount      int      `json:"robots_count" yaml:"robots_count"`
	SitemapCount     int      `json:"sitemap_count" yaml:"sitemap_count"`
	StylesheetCount  int      `json:"stylesheet_count" yaml:"stylesheet_count"`
	ScriptCount      int      `json:"script_count" yaml:"script_count"`
	InternalCount    int      `json:"internal_count" yaml:"internal_count"`
	ExternalCount    int      `json:"external_count" yaml:"external_count"`
	ImageCount       int      `json:"image_count" yaml:"image_count"`
	SitemapURLCount  int      `json:"sitemap_url_count" yaml:"sitemap_url_count"`
	JSURLCount       int      `json:"js_url_count" yaml:"js_url_count"`
	TotalUnique      int      `json:"total_unique" yaml:"total_unique"`
	TotalURLs        []string `json:"total_urls" yaml:"total_urls"`
	HighSignalCount  int      `json:"high_signal_count" yaml:"high_signal_count"`
	HighSignalURLs   []string `json:"high_signal_urls" yaml:"high_signal_urls"`
	RobotsAllowsRoot *bool    `json:"robots_allows_root,omitempty" yaml:"robots_allows_root,omitempty"`
}

// CrawlResult is the crawler's output for one target.
// A non-empty Error means no link data is available.
type CrawlResult struct {
	Target            TargetInfo `json:"target" yaml:"target"`
	RobotsLinks       []string   `json:"robots_links" yaml:"robots_links"`
	SitemapLinks      []string   `json:"sitemap_links" yaml:"sitemap_links"`
	StylesheetLinks   []string   `json:"stylesheet_links" yaml:"stylesheet_links"`
	ScriptLinks       []string   `json:"script_links" yaml:"script_links"`
	InternalLinks     []string   `json:"internal_links" yaml:"internal_links"`
	ExternalLinks     []string   `json:"external_links" yaml:"external_links"`
	ImageLinks        []string   `json:"image_links" yaml:"image_links"`
	URLsInsideSitemap []string   `json:"urls_inside_sitemap" yaml:"urls_inside_sitemap"`
	URLsInsideJS      []string   `json:"urls_inside_js" yaml:"urls_inside_js"`
	Stats             *Stats     `json:"stats,omitempty" yaml:"stats,omitempty"`
	Error             string     `json:"error,omitempty" yaml:"error,omitempty"`

	// Cause is the error behind Error; it is not serialized
	Cause error `json:"-" yaml:"-"`
}

// degradedResult is the wire shape of a failed crawl
type degradedResult struct {
	Target TargetInfo `json:"target" yaml:"target"`
	Error  string     `json:"error" yaml:"error"`
}

// plainResult has CrawlResult's fields without its marshal methods
type plainResult CrawlResult

// NewCrawlResult returns an empty result for the given target
func NewCrawlResult(target TargetInfo) *CrawlResult {
	r := &CrawlResult{Target: target}
	for _, cat := range Categories {
		r.SetLinks(cat, []string{})
	}
	r.URLsInsideSitemap = []string{}
	r.URLsInsideJS = []string{}
	return r
}

// Failed reports whether the crawl ended without link data
func (r *CrawlResult) Failed() bool {
	return r.Error != ""
}

// Links returns the list stored for a category
func (r *CrawlResult) Links(cat Category) []string {
	if p := r.slot(cat); p != nil {
		return *p
	}
	return nil
}

// SetLinks replaces the list stored for a category
func (r *CrawlResult) SetLinks(cat Category, links []string) {
	if p := r.slot(cat); p != nil {
		*p = links
	}
}

func (r *CrawlResult) slot(cat Category) *[]string {
	switch cat {
	case CategoryRobots:
		return &r.RobotsLinks
	case CategorySitemap:
		return &r.SitemapLinks
	case CategoryStylesheet:
		return &r.StylesheetLinks
	case CategoryScript:
		return &r.ScriptLinks
	case CategoryInternal:
		return &r.InternalLinks
	case CategoryExternal:
		return &r.ExternalLinks
	case CategoryImage:
		return &r.ImageLinks
	}
	return nil
}

// TotalURLs returns the flattened artifact consumed by findings and diffing.
// Empty for failed crawls.
func (r *CrawlResult) TotalURLs() []string {
	if r == nil || r.Failed() || r.Stats == nil {
		return nil
	}
	return r.Stats.TotalURLs
}

// MarshalJSON emits only target and error for failed crawls
func (r CrawlResult) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(degradedResult{Target: r.Target, Error: r.Error})
	}
	return json.Marshal(plainResult(r))
}

// MarshalYAML mirrors MarshalJSON for YAML exports
func (r CrawlResult) MarshalYAML() (interface{}, error) {
	if r.Error != "" {
		return degradedResult{Target: r.Target, Error: r.Error}, nil
	}
	return plainResult(r), nil
}
