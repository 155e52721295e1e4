package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Sriram-PR/recon-crawler/pkg/models"
)

// maxListed caps how many URLs each Markdown section prints
const maxListed = 50

// RenderMarkdown produces a human-readable summary of a run
func RenderMarkdown(rec *models.RunRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Recon run %s\n\n", rec.ID)

	b.WriteString("| Field | Value |\n|---|---|\n")
	row(&b, "Target", rec.Target)
	row(&b, "Started", rec.StartedAt.UTC().Format(time.RFC3339))
	row(&b, "Duration", (time.Duration(rec.DurationMs) * time.Millisecond).String())
	if rec.PreviousRunID != "" {
		row(&b, "Previous run", rec.PreviousRunID)
	}

	cr := rec.Crawler
	if cr != nil {
		row(&b, "Effective target", cr.Target.Effective)
		row(&b, "Re-anchored", fmt.Sprintf("%t (%s)", cr.Target.Reanchored, cr.Target.ReasonCode))
	}
	b.WriteString("\n")

	if cr == nil || cr.Failed() {
		msg := "no crawler output"
		if cr != nil {
			msg = cr.Error
		}
		fmt.Fprintf(&b, "## Crawl failed\n\n%s\n", escape(msg))
		if rec.ErrorCategory != "" {
			fmt.Fprintf(&b, "\nCategory: `%s`\n", rec.ErrorCategory)
		}
		writeTechnologies(&b, rec.Technologies)
		writeHeaders(&b, rec.Headers)
		return b.String()
	}

	if st := cr.Stats; st != nil {
		b.WriteString("## Counts\n\n| Category | URLs |\n|---|---|\n")
		for _, cat := range models.Categories {
			fmt.Fprintf(&b, "| %s | %d |\n", cat, len(cr.Links(cat)))
		}
		fmt.Fprintf(&b, "| urls inside sitemaps | %d |\n", st.SitemapURLCount)
		fmt.Fprintf(&b, "| urls inside scripts | %d |\n", st.JSURLCount)
		fmt.Fprintf(&b, "| **total unique** | %d |\n\n", st.TotalUnique)
		if st.RobotsAllowsRoot != nil {
			fmt.Fprintf(&b, "robots.txt allows `/`: %t\n\n", *st.RobotsAllowsRoot)
		}

		writeList(&b, fmt.Sprintf("High-signal URLs (%d)", st.HighSignalCount), st.HighSignalURLs)
	}

	if rec.PreviousRunID != "" {
		writeList(&b, fmt.Sprintf("New since previous run (%d)", len(rec.NewURLs)), rec.NewURLs)
		writeList(&b, fmt.Sprintf("Gone since previous run (%d)", len(rec.RemovedURLs)), rec.RemovedURLs)
	}
	writeTechnologies(&b, rec.Technologies)
	writeHeaders(&b, rec.Headers)
	return b.String()
}

func row(b *strings.Builder, field, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", field, escape(value))
}

func writeList(b *strings.Builder, title string, urls []string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(urls) == 0 {
		b.WriteString("_none_\n\n")
		return
	}
	for i, u := range urls {
		if i == maxListed {
			fmt.Fprintf(b, "- ... %d more\n", len(urls)-maxListed)
			break
		}
		fmt.Fprintf(b, "- <%s>\n", u)
	}
	b.WriteString("\n")
}

func writeTechnologies(b *strings.Builder, techs []models.Technology) {
	if len(techs) == 0 {
		return
	}
	b.WriteString("\n## Technologies\n\n| Name | Version | Category | Evidence |\n|---|---|---|---|\n")
	for _, t := range techs {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", escape(t.Name), escape(t.Version), escape(t.Category), escape(t.Evidence))
	}
}

func writeHeaders(b *strings.Builder, headers map[string]string) {
	if len(headers) == 0 {
		return
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("\n## Response headers\n\n| Header | Value |\n|---|---|\n")
	for _, k := range keys {
		row(b, k, headers[k])
	}
}

// escape keeps table cells intact
func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
