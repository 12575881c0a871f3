package serp

import (
	"net/url"
	"strings"
)

// UnknownDomain is reported for links whose host cannot be determined.
const UnknownDomain = "unknown"

// Normalize strips the fragment from raw and lowercases its host. Input that
// does not parse as an absolute URL is returned unchanged.
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// DomainOf returns the hostname of raw without port, or UnknownDomain.
func DomainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return UnknownDomain
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return UnknownDomain
	}
	return host
}
