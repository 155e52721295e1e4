package detect

import (
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HeaderMatch matches a response header whose lowercased value contains
// Contains. An empty Contains matches on presence alone.
type HeaderMatch struct {
	Name     string
	Contains string
}

// Signature defines the fingerprint of one web technology
type Signature struct {
	Name         string
	Category     string
	Headers      []HeaderMatch
	Cookies      []string // Set-Cookie name prefixes
	Generators   []string // lowercase substrings of <meta name="generator">
	Attributes   []string // HTML attributes to look for (e.g., "data-reactroot")
	Scripts      []string // Script src patterns to look for
	HTMLPatterns []string // Substring patterns to look for in raw HTML
}

// Match returns the first piece of evidence for this signature, or "" when
// nothing matched. doc and htmlLower may be nil/empty for header-only checks.
func (sig *Signature) Match(header http.Header, doc *goquery.Document, htmlLower string) string {
	for _, h := range sig.Headers {
		if v := strings.ToLower(header.Get(h.Name)); v != "" && strings.Contains(v, h.Contains) {
			return "header " + h.Name
		}
	}

	for _, prefix := range sig.Cookies {
		for _, c := range header.Values("Set-Cookie") {
			if strings.HasPrefix(strings.TrimSpace(c), prefix) {
				return "cookie " + prefix
			}
		}
	}

	if doc == nil {
		return ""
	}

	if len(sig.Generators) > 0 {
		if gen := generator(doc); gen != "" {
			for _, g := range sig.Generators {
				if strings.Contains(gen, g) {
					return "meta generator"
				}
			}
		}
	}

	for _, attr := range sig.Attributes {
		if doc.Find("["+attr+"]").Length() > 0 {
			return "attribute " + attr
		}
	}

	for _, pattern := range sig.Scripts {
		found := false
		doc.Find("script[src]").EachWithBreak(func(i int, s *goquery.Selection) bool {
			src, _ := s.Attr("src")
			found = strings.Contains(strings.ToLower(src), pattern)
			return !found
		})
		if found {
			return "script " + pattern
		}
	}

	for _, pattern := range sig.HTMLPatterns {
		if strings.Contains(htmlLower, pattern) {
			return "html " + pattern
		}
	}

	return ""
}

// generator returns the lowercased content of the page's generator meta tag
func generator(doc *goquery.Document) string {
	var gen string
	doc.Find("meta[name]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if name, _ := s.Attr("name"); strings.EqualFold(name, "generator") {
			gen, _ = s.Attr("content")
			return false
		}
		return true
	})
	return strings.ToLower(gen)
}

// signatures lists the fingerprinted technologies. Every pattern is lowercase.
var signatures = []Signature{
	// Web servers
	{Name: "nginx", Category: "web-server", Headers: []HeaderMatch{{"Server", "nginx"}}},
	{Name: "Apache", Category: "web-server", Headers: []HeaderMatch{{"Server", "apache"}}},
	{Name: "Microsoft IIS", Category: "web-server", Headers: []HeaderMatch{{"Server", "microsoft-iis"}}},
	{Name: "Caddy", Category: "web-server", Headers: []HeaderMatch{{"Server", "caddy"}}},
	{Name: "LiteSpeed", Category: "web-server", Headers: []HeaderMatch{{"Server", "litespeed"}}},

	// CDNs and proxies
	{Name: "Cloudflare", Category: "cdn", Headers: []HeaderMatch{{"Server", "cloudflare"}, {"CF-RAY", ""}}},
	{Name: "Amazon CloudFront", Category: "cdn", Headers: []HeaderMatch{{"Via", "cloudfront"}, {"X-Amz-Cf-Id", ""}}},
	{Name: "Fastly", Category: "cdn", Headers: []HeaderMatch{{"X-Served-By", "cache-"}, {"Fastly-Debug-Digest", ""}}},
	{Name: "Varnish", Category: "cache", Headers: []HeaderMatch{{"Via", "varnish"}, {"X-Varnish", ""}}},

	// Languages and frameworks
	{Name: "PHP", Category: "language", Headers: []HeaderMatch{{"X-Powered-By", "php"}}, Cookies: []string{"PHPSESSID="}},
	{Name: "ASP.NET", Category: "framework",
		Headers: []HeaderMatch{{"X-Powered-By", "asp.net"}, {"X-AspNet-Version", ""}},
		Cookies: []string{"ASP.NET_SessionId="}, HTMLPatterns: []string{"__viewstate"}},
	{Name: "Express", Category: "framework", Headers: []HeaderMatch{{"X-Powered-By", "express"}}},
	{Name: "Java Servlet", Category: "framework", Cookies: []string{"JSESSIONID="}},
	{Name: "Django", Category: "framework", Cookies: []string{"csrftoken=", "django_language="}, HTMLPatterns: []string{"csrfmiddlewaretoken"}},
	{Name: "Ruby on Rails", Category: "framework", Cookies: []string{"_rails_session="},
		Attributes: []string{"data-turbo-track"}, HTMLPatterns: []string{`name="csrf-param" content="authenticity_token"`}},
	{Name: "Laravel", Category: "framework", Cookies: []string{"laravel_session=", "XSRF-TOKEN="}},

	// CMS
	{Name: "WordPress", Category: "cms", Generators: []string{"wordpress"},
		Scripts: []string{"/wp-includes/", "/wp-content/"}, HTMLPatterns: []string{"/wp-content/", "/wp-json/"}},
	{Name: "Drupal", Category: "cms", Generators: []string{"drupal"},
		Headers: []HeaderMatch{{"X-Drupal-Cache", ""}, {"X-Generator", "drupal"}}, Attributes: []string{"data-drupal-selector"}},
	{Name: "Joomla", Category: "cms", Generators: []string{"joomla"}, HTMLPatterns: []string{"/media/jui/"}},
	{Name: "Shopify", Category: "ecommerce", Headers: []HeaderMatch{{"X-ShopId", ""}}, Scripts: []string{"cdn.shopify.com"}},
	{Name: "Ghost", Category: "cms", Generators: []string{"ghost"}},

	// Static site and docs generators
	{Name: "Hugo", Category: "static-site", Generators: []string{"hugo"}},
	{Name: "Jekyll", Category: "static-site", Generators: []string{"jekyll"}},
	{Name: "Docusaurus", Category: "static-site", Attributes: []string{"data-docusaurus-root-container"}, HTMLPatterns: []string{"__docusaurus"}},
	{Name: "MkDocs", Category: "static-site", Generators: []string{"mkdocs"}, Attributes: []string{"data-md-component"}},
	{Name: "Sphinx", Category: "static-site", Scripts: []string{"_static/doctools.js", "searchindex.js"}, HTMLPatterns: []string{"created using sphinx"}},

	// Front-end
	{Name: "Next.js", Category: "javascript-framework", Headers: []HeaderMatch{{"X-Powered-By", "next.js"}},
		Scripts: []string{"/_next/"}, HTMLPatterns: []string{"__next_data__"}},
	{Name: "Nuxt", Category: "javascript-framework", Scripts: []string{"/_nuxt/"}, HTMLPatterns: []string{"window.__nuxt__"}},
	{Name: "React", Category: "javascript-framework", Attributes: []string{"data-reactroot"}, Scripts: []string{"react.production.min.js", "react-dom"}},
	{Name: "Angular", Category: "javascript-framework", Attributes: []string{"ng-version", "ng-app"}},
	{Name: "Vue.js", Category: "javascript-framework", Attributes: []string{"data-v-app"}, Scripts: []string{"vue.min.js", "vue.global"}},
	{Name: "jQuery", Category: "javascript-library", Scripts: []string{"jquery"}},
}
