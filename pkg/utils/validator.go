package utils

import (
	"fmt"
	"net/url"
	"regexp"
)

var (
	identifierRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)
	controlRegex    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// ValidateIdentifier checks a role, rule or entry id: lowercase letters,
// digits, dot, dash and underscore, at most 64 characters
func ValidateIdentifier(id string) error {
	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("invalid identifier: %q", id)
	}
	return nil
}

// ValidateEndpoint checks a worker base URL
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", raw)
	}
	return nil
}

// SanitizeString removes control characters, keeping tabs and newlines
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}
