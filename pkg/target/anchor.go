package target

import "github.com/Sriram-PR/recon-crawler/pkg/models"

// reasonCodes maps redirect modes to their anchor reason codes
var reasonCodes = map[models.RedirectMode]string{
	models.RedirectHTTPToHTTPS: models.ReasonCodeHTTPToHTTPS,
	models.RedirectSameScope:   models.ReasonCodeSameScope,
	models.RedirectCrossScope:  models.ReasonCodeCrossScope,
}

// ResolveAnchor decides whether the crawl root moves to the profile's effective URL.
// Only a high-confidence http->https upgrade re-anchors.
func ResolveAnchor(profile models.TargetProfile) models.AnchorDecision {
	reanchor := profile.Mode == models.RedirectHTTPToHTTPS &&
		profile.Confidence == models.ConfidenceHigh &&
		profile.EffectiveURL != ""

	decision := models.AnchorDecision{
		Reanchor:        reanchor,
		EffectiveTarget: profile.OriginalURL,
		ReasonCode:      ReasonCode(profile),
		Reason:          profile.Reason,
	}
	if reanchor {
		decision.EffectiveTarget = profile.EffectiveURL
	}
	return decision
}

// ReasonCode applies the fixed classification table for a profile
func ReasonCode(profile models.TargetProfile) string {
	if code, ok := reasonCodes[profile.Mode]; ok {
		return code
	}
	if profile.Reason == models.ReasonProfileFailed {
		return models.ReasonCodeProfileFailed
	}
	return models.ReasonCodeNoRedirect
}
