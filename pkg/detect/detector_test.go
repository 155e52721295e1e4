package detect

import (
	"io"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/recon-crawler/pkg/fetch"
	"github.com/Sriram-PR/recon-crawler/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// newTestDetector matches built-in signatures only
func newTestDetector() *Detector {
	return &Detector{signatures: signatures, log: testLogger()}
}

type fakeCatalog map[string]struct{}

func (f fakeCatalog) Fingerprint(map[string][]string, []byte) map[string]struct{} {
	return f
}

func htmlResponse(status int, header http.Header, body string) *fetch.Response {
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "text/html; charset=utf-8")
	}
	return &fetch.Response{StatusCode: status, Header: header, Body: []byte(body)}
}

func names(techs []models.Technology) map[string]string {
	out := make(map[string]string, len(techs))
	for _, t := range techs {
		out[t.Name] = t.Evidence
	}
	return out
}

func TestDetectNil(t *testing.T) {
	if got := newTestDetector().Detect(nil); got != nil {
		t.Errorf("Detect(nil) = %v, want nil", got)
	}
}

func TestDetectWordPress(t *testing.T) {
	html := `<!DOCTYPE html>
<html>
<head>
<meta name="Generator" content="WordPress 6.5.2">
<script src="https://example.com/wp-includes/js/jquery/jquery.min.js"></script>
</head>
<body><a href="/wp-json/">api</a></body>
</html>`
	header := http.Header{}
	header.Set("Server", "nginx/1.25.3")
	header.Add("Set-Cookie", "PHPSESSID=abc; path=/")

	got := names(newTestDetector().Detect(htmlResponse(200, header, html)))

	want := map[string]string{
		"nginx":     "header Server",
		"PHP":       "cookie PHPSESSID=",
		"WordPress": "meta generator",
		"jQuery":    "script jquery",
	}
	for name, evidence := range want {
		if got[name] != evidence {
			t.Errorf("%s: evidence = %q, want %q (all: %v)", name, got[name], evidence, got)
		}
	}
	if len(got) != len(want) {
		t.Errorf("Detected %d technologies, want %d: %v", len(got), len(want), got)
	}
}

func TestDetectNextJS(t *testing.T) {
	html := `<html><body><div id="__next"></div>
<script id="__NEXT_DATA__" type="application/json">{}</script>
<script src="/_next/static/chunks/main.js"></script></body></html>`

	got := names(newTestDetector().Detect(htmlResponse(200, nil, html)))
	if got["Next.js"] != "script /_next/" {
		t.Errorf("Next.js evidence = %q, want script match", got["Next.js"])
	}
}

func TestDetectHeaderPresence(t *testing.T) {
	header := http.Header{}
	header.Set("CF-RAY", "8a1b2c3d4e5f-AMS")
	header.Set("Content-Type", "application/json")

	got := names(newTestDetector().Detect(&fetch.Response{StatusCode: 200, Header: header, Body: []byte(`{"generator":"wordpress"}`)}))
	if got["Cloudflare"] != "header CF-RAY" {
		t.Errorf("Cloudflare evidence = %q, want header CF-RAY", got["Cloudflare"])
	}
	if _, ok := got["WordPress"]; ok {
		t.Error("Non-HTML bodies must not be matched against document signatures")
	}
}

func TestDetectRedirectUsesHeadersOnly(t *testing.T) {
	header := http.Header{}
	header.Set("Location", "https://example.com/")
	header.Set("Server", "Microsoft-IIS/10.0")
	header.Set("X-Powered-By", "ASP.NET")

	resp := htmlResponse(301, header, `<html><head><meta name="generator" content="Drupal 10"></head></html>`)
	got := names(newTestDetector().Detect(resp))

	if _, ok := got["Microsoft IIS"]; !ok {
		t.Errorf("Expected Microsoft IIS from Server header, got %v", got)
	}
	if _, ok := got["ASP.NET"]; !ok {
		t.Errorf("Expected ASP.NET from X-Powered-By, got %v", got)
	}
	if _, ok := got["Drupal"]; ok {
		t.Error("Redirect bodies must not be matched against document signatures")
	}
}

func TestDetectNothing(t *testing.T) {
	got := newTestDetector().Detect(htmlResponse(200, nil, "<html><body><p>plain</p></body></html>"))
	if len(got) != 0 {
		t.Errorf("Expected no technologies, got %v", got)
	}
}

func TestDetectionOrderFollowsSignatures(t *testing.T) {
	header := http.Header{}
	header.Set("Server", "cloudflare")
	header.Set("X-Powered-By", "Express")

	got := newTestDetector().Detect(htmlResponse(200, header, "<html></html>"))
	if len(got) != 2 {
		t.Fatalf("Expected 2 technologies, got %v", got)
	}
	if got[0].Name != "Cloudflare" || got[1].Name != "Express" {
		t.Errorf("Order = [%s %s], want [Cloudflare Express]", got[0].Name, got[1].Name)
	}
}

func TestDetectMergesCatalog(t *testing.T) {
	d := newTestDetector()
	d.catalog = fakeCatalog{"Nginx:1.25.3": {}, "MySQL": {}, "Amazon Web Services": {}}

	header := http.Header{}
	header.Set("Server", "nginx/1.25.3")
	got := d.Detect(htmlResponse(200, header, "<html></html>"))

	if len(got) != 3 {
		t.Fatalf("Expected 3 technologies, got %v", got)
	}
	if got[0].Name != "nginx" || got[0].Version != "1.25.3" || got[0].Evidence != "header Server" {
		t.Errorf("Signature hit should keep its evidence and gain the catalog version, got %+v", got[0])
	}
	if got[1].Name != "Amazon Web Services" || got[2].Name != "MySQL" {
		t.Errorf("Catalog-only hits should follow in name order, got %v", got[1:])
	}
	if got[2].Evidence != catalogEvidence || got[2].Category != "" {
		t.Errorf("Catalog hit = %+v", got[2])
	}
}

func TestNewDetectorLoadsCatalog(t *testing.T) {
	d := NewDetector(testLogger())
	if d.catalog == nil {
		t.Fatal("Expected the wappalyzer catalog to load")
	}

	header := http.Header{}
	header.Set("Server", "nginx/1.25.3")
	got := d.Detect(htmlResponse(200, header, "<html><body>hello</body></html>"))

	var nginx *models.Technology
	for i := range got {
		if got[i].Name == "nginx" {
			nginx = &got[i]
		}
	}
	if nginx == nil {
		t.Fatalf("Expected nginx, got %v", got)
	}
	if nginx.Version != "1.25.3" {
		t.Errorf("nginx version = %q, want 1.25.3", nginx.Version)
	}
}

func TestIsHTML(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"", true},
		{"text/html", true},
		{"text/html; charset=ISO-8859-1", true},
		{"application/xhtml+xml", true},
		{"application/json", false},
		{"text/plain", false},
		{";;;", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			h := http.Header{}
			if tt.contentType != "" {
				h.Set("Content-Type", tt.contentType)
			}
			if got := isHTML(h); got != tt.want {
				t.Errorf("isHTML(%q) = %v, want %v", tt.contentType, got, tt.want)
			}
		})
	}
}
