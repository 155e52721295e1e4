package models

// RedirectMode classifies the relationship between a target and its redirect
type RedirectMode string

const (
	RedirectNone        RedirectMode = "none"
	RedirectHTTPToHTTPS RedirectMode = "http_to_https"
	RedirectSameScope   RedirectMode = "same_scope_redirect"
	RedirectCrossScope  RedirectMode = "cross_scope_redirect"
)

// Confidence expresses how sure the profiler is that the redirect target is the real entry point
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Reason texts produced by the profiler
const (
	ReasonNoRedirect    = "no redirect"
	ReasonProfileFailed = "profiling failed"
	ReasonHTTPToHTTPS   = "same host upgraded from http to https"
	ReasonSameScope     = "redirect within the same registrable domain"
	ReasonCrossScope    = "redirect to a different registrable domain"
)

// Anchor reason codes
const (
	ReasonCodeHTTPToHTTPS   = "http->https"
	ReasonCodeSameScope     = "same-scope"
	ReasonCodeCrossScope    = "cross-scope"
	ReasonCodeProfileFailed = "profile-failed"
	ReasonCodeNoRedirect    = "no-redirect"
)

// TargetProfile describes how a target URL answers its first request.
// Immutable once returned by the profiler.
type TargetProfile struct {
	OriginalURL  string       `json:"original_url" yaml:"original_url"`
	EffectiveURL string       `json:"effective_url" yaml:"effective_url"`
	Mode         RedirectMode `json:"mode" yaml:"mode"`
	Confidence   Confidence   `json:"confidence" yaml:"confidence"`
	Reason       string       `json:"reason" yaml:"reason"`
	Location     *string      `json:"location" yaml:"location"` // Raw Location header, nil when absent
}

// AnchorDecision records whether the crawl root moves to the redirect target
type AnchorDecision struct {
	Reanchor        bool   `json:"reanchor" yaml:"reanchor"`
	EffectiveTarget string `json:"effective_target" yaml:"effective_target"`
	ReasonCode      string `json:"reason_code" yaml:"reason_code"`
	Reason          string `json:"reason" yaml:"reason"`
}
