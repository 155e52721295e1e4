// Package models holds the data passed between the crawler stages and the
// orchestration layer: target profiles, anchor decisions, crawl results and
// persisted run records.
package models
