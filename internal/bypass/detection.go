package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Page is the part of an HTTP response the detectors look at.
type Page struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
}

// Detector examines a page to determine if a bot protection mechanism
// blocked or challenged the request.
type Detector func(p Page) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
		detectSearchChallenge,
	}
}

// Analyze runs the page through the detectors and reports the first match.
func Analyze(p Page, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(p); detected {
			return true, source
		}
	}
	return false, ""
}

func getHeader(headers map[string][]string, key string) string {
	if vals, ok := headers[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	for k, vals := range headers {
		if strings.EqualFold(k, key) && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

func bodyHasAny(body []byte, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(body, []byte(n)) {
			return true
		}
	}
	return false
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(p Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden && p.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(getHeader(p.Headers, "Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bodyHasAny(p.Body, "cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare") {
		return true, "Cloudflare"
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(p Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(getHeader(p.Headers, "Server")), "akamai") {
		return true, "Akamai"
	}
	if bytes.Contains(p.Body, []byte("Reference #")) && bytes.Contains(p.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

// detectDataDome looks for DataDome challenge/block signatures.
func detectDataDome(p Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(getHeader(p.Headers, "Server")), "datadome") {
		return true, "DataDome"
	}
	if getHeader(p.Headers, "X-DataDome") != "" || getHeader(p.Headers, "X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bodyHasAny(p.Body, "geo.captcha-delivery.com", "datadome") {
		return true, "DataDome"
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(p Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if getHeader(p.Headers, "X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if bodyHasAny(p.Body, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return true, "PerimeterX"
	}
	return false, ""
}

// detectSearchChallenge catches the soft blocks search engines serve to
// automated clients, which often arrive with a 200 or 202 status.
func detectSearchChallenge(p Page) (bool, string) {
	if p.StatusCode >= 500 {
		return false, ""
	}
	if bodyHasAny(p.Body, "anomaly-modal", "If this error persists, please let us know") {
		return true, "DuckDuckGo"
	}
	if bodyHasAny(p.Body, "Our systems have detected unusual traffic", "/sorry/index") {
		return true, "Google"
	}
	return false, ""
}
