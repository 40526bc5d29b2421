package frontage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SlashPolicy controls how a layer treats request paths that carry a
// trailing slash.
type SlashPolicy string

const (
	// SlashRedirect emits a 3xx to the slash-stripped form of the path.
	SlashRedirect SlashPolicy = "redirect"
	// SlashRewrite rewrites the path in place to mean "directory index".
	SlashRewrite SlashPolicy = "rewrite"
)

func (p SlashPolicy) IsValid() bool {
	switch p {
	case SlashRedirect, SlashRewrite:
		return true
	default:
		return false
	}
}

func ParseSlashPolicy(s string) (SlashPolicy, error) {
	policy := SlashPolicy(s)
	if !policy.IsValid() {
		return "", fmt.Errorf("invalid slash policy: %s (valid policies: redirect, rewrite)", s)
	}
	return policy, nil
}

// DefaultRedirectCode is used when a configured redirect status code falls
// outside the open (300, 400) interval.
const DefaultRedirectCode = 302

// ValidRedirectCode reports whether code is a usable 3xx status.
// The boundary values 300 and 400 are excluded.
func ValidRedirectCode(code int) bool {
	return code > 300 && code < 400
}

// ResolvedObject is the outcome of a successful resolution, owned by one
// request/response cycle. Either Body or SignedURL is populated, never both.
type ResolvedObject struct {
	Key          string
	Body         []byte
	SignedURL    string
	ContentType  string
	CacheControl string
	Expires      *time.Time
	LastModified *time.Time
}

// LocaleTable is the set of locale codes that have their own routing
// layer. It is the source of truth for which locale cookies are honored.
type LocaleTable map[string]struct{}

func (t LocaleTable) Has(code string) bool {
	_, ok := t[code]
	return ok
}

// Codes returns the locale codes in sorted order for deterministic layer
// construction.
func (t LocaleTable) Codes() []string {
	codes := make([]string, 0, len(t))
	for code := range t {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ParseLocaleTable builds a LocaleTable from a declarative document.
// The document historically arrived in several shapes: a JSON array of
// strings, a JSON string (possibly itself JSON-encoded), or a bare locale
// code. All variants collapse to set semantics here, once, at load time.
func ParseLocaleTable(data []byte) (LocaleTable, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return LocaleTable{}, nil
	}

	var codes []string
	if err := json.Unmarshal([]byte(trimmed), &codes); err == nil {
		return localeSet(codes)
	}

	var single string
	if err := json.Unmarshal([]byte(trimmed), &single); err == nil {
		// The value may have been a JSON string wrapping a JSON array.
		var nested []string
		if err := json.Unmarshal([]byte(single), &nested); err == nil {
			return localeSet(nested)
		}
		return localeSet([]string{single})
	}

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("parse locale table: %w: malformed JSON document", ErrInvalidInput)
	}

	// A bare, unquoted locale code.
	return localeSet([]string{trimmed})
}

func localeSet(codes []string) (LocaleTable, error) {
	table := LocaleTable{}
	for _, code := range codes {
		code = strings.Trim(strings.TrimSpace(code), "/")
		if code == "" {
			continue
		}
		if strings.Contains(code, "/") {
			return nil, fmt.Errorf("parse locale table: %w: locale code %q contains a slash", ErrInvalidInput, code)
		}
		table[code] = struct{}{}
	}
	return table, nil
}

// SubrouteTable maps a catch-all route pattern to the bucket that backs
// it. Each entry creates one routing layer at startup; the table is
// immutable thereafter.
type SubrouteTable map[string]string

// ParseSubrouteTable parses a JSON object of pattern to bucket name.
// Every pattern must end in a catch-all segment.
func ParseSubrouteTable(data []byte) (SubrouteTable, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return SubrouteTable{}, nil
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, fmt.Errorf("parse subroute table: %w: %s", ErrInvalidInput, err)
	}

	table := SubrouteTable{}
	for pattern, bucket := range raw {
		if !IsCatchAllPattern(pattern) {
			return nil, fmt.Errorf("parse subroute table: %w: pattern %q has no catch-all segment", ErrInvalidInput, pattern)
		}
		if bucket == "" {
			return nil, fmt.Errorf("parse subroute table: %w: pattern %q has no bucket", ErrInvalidInput, pattern)
		}
		table[pattern] = bucket
	}
	return table, nil
}

// IsCatchAllPattern reports whether pattern ends in a wildcard segment.
func IsCatchAllPattern(pattern string) bool {
	return strings.HasSuffix(pattern, "/*")
}

// PatternPrefix returns the fixed part of a catch-all pattern,
// e.g. "/docs/*" yields "/docs".
func PatternPrefix(pattern string) string {
	return strings.TrimSuffix(pattern, "/*")
}

// NormalizePattern canonicalizes a route pattern for duplicate detection.
// Named path parameters compare equal regardless of the variable name, so
// "/{page}" and "/{slug}" claim the same route.
func NormalizePattern(pattern string) string {
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			segments[i] = "{}"
		}
	}
	return strings.Join(segments, "/")
}
