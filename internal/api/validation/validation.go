// Package validation holds the input checks shared by request DTOs and
// handlers.
package validation

import (
	"bytes"
	"encoding/json"
	"net/netip"
	"regexp"
	"strings"
	"unicode"
)

const (
	maxEmailLength    = 254
	maxDomainLength   = 253
	maxFilenameLength = 255
)

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	domainRegex = regexp.MustCompile(`^([a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

	// Characters allowed in stored document names
	filenameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._\- ]+`)
)

func IsValidEmail(email string) bool {
	if len(email) > maxEmailLength {
		return false
	}
	return emailRegex.MatchString(email)
}

// NormalizeDomain lower-cases a domain and strips a URL scheme, path and
// trailing dot, so "https://WWW.Example.com/" becomes "www.example.com".
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}

// IsValidDomain reports whether domain is a plausible host name once
// normalized.
func IsValidDomain(domain string) bool {
	d := NormalizeDomain(domain)
	if len(d) > maxDomainLength {
		return false
	}
	return domainRegex.MatchString(d)
}

// IsValidIP accepts IPv4 and IPv6 literals without a zone.
func IsValidIP(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	return err == nil && addr.Zone() == ""
}

// IsValidPassword checks password strength
func IsValidPassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > 128 {
		return false, "Password must be at most 128 characters"
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return false, "Password must contain at least one uppercase letter"
	case !hasLower:
		return false, "Password must contain at least one lowercase letter"
	case !hasNumber:
		return false, "Password must contain at least one number"
	case !hasSpecial:
		return false, "Password must contain at least one special character"
	}
	return true, ""
}

// SanitizeString drops control characters other than newlines and tabs.
func SanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, s)
}

// SanitizeFilename reduces an uploaded file name to a safe display name.
// Directory components are dropped.
func SanitizeFilename(name string) string {
	name = SanitizeString(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(filenameUnsafe.ReplaceAllString(name, "_"))
	name = strings.TrimLeft(name, ".")
	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}
	return name
}

// IsJSONDocument reports whether data is a single JSON object or array.
// Bare scalars are valid JSON but carry no scan data.
func IsJSONDocument(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return json.Valid(trimmed)
}
