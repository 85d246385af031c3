// Package botsig identifies search-engine crawler requests in raw
// access-log lines using an ordered signature table.
package botsig

import (
	"regexp"
	"strings"
)

// Match is the result of testing a line against the signature table.
type Match struct {
	// BotName is the canonical crawler identity, variant-resolved.
	BotName string
	// UserAgent is the raw user-agent substring, truncated to the
	// configured cap.
	UserAgent string
	// Verified reports whether the line also carried a known crawler
	// IP prefix or reverse-DNS hostname substring.
	Verified bool
}

// Config tunes the matcher heuristics. Zero values fall back to the
// defaults the legacy dashboard shipped with.
type Config struct {
	// MaxUserAgentLen caps the retained user-agent substring (default 100).
	MaxUserAgentLen int
	// IPPrefixes are crawler IP prefix substrings used for verification.
	IPPrefixes []string
	// RDNSSuffixes are reverse-DNS hostname substrings used for verification.
	RDNSSuffixes []string
}

const defaultMaxUserAgentLen = 100

// DefaultIPPrefixes is the crawler IP prefix table used when Config
// leaves IPPrefixes empty. The values are a substring heuristic, not a
// CIDR match.
func DefaultIPPrefixes() []string {
	return []string{"66.249.", "64.233.", "66.102.", "72.14.", "74.125.", "209.85.", "216.239."}
}

// DefaultRDNSSuffixes is the reverse-DNS suffix table used when Config
// leaves RDNSSuffixes empty.
func DefaultRDNSSuffixes() []string {
	return []string{".googlebot.com", ".google.com"}
}

// family is one entry in the ordered signature table. A generic family
// pattern matches first; the variant list then resolves the most
// specific canonical name, specific-to-generic.
type family struct {
	pattern  *regexp.Regexp
	name     string
	variants []variant
}

type variant struct {
	pattern *regexp.Regexp
	name    string
}

// Matcher tests log lines against the crawler signature table. It is
// immutable after construction and safe for concurrent use.
type Matcher struct {
	families     []family
	maxUALen     int
	ipPrefixes   []string
	rdnsSuffixes []string
}

var quotedSegment = regexp.MustCompile(`"([^"]*)"`)

// NewMatcher builds a Matcher with the built-in signature table and the
// provided heuristics config.
func NewMatcher(cfg Config) *Matcher {
	maxUA := cfg.MaxUserAgentLen
	if maxUA <= 0 {
		maxUA = defaultMaxUserAgentLen
	}
	prefixes := cfg.IPPrefixes
	if len(prefixes) == 0 {
		prefixes = DefaultIPPrefixes()
	}
	suffixes := cfg.RDNSSuffixes
	if len(suffixes) == 0 {
		suffixes = DefaultRDNSSuffixes()
	}
	return &Matcher{
		families:     signatureTable(),
		maxUALen:     maxUA,
		ipPrefixes:   lowerAll(prefixes),
		rdnsSuffixes: lowerAll(suffixes),
	}
}

// signatureTable returns the ordered crawler signature table. Order
// matters: the first family whose pattern matches wins the line.
func signatureTable() []family {
	return []family{
		{
			pattern: regexp.MustCompile(`(?i)googlebot`),
			name:    "Googlebot",
			variants: []variant{
				{regexp.MustCompile(`(?i)googlebot-image`), "Googlebot Image"},
				{regexp.MustCompile(`(?i)googlebot-news`), "Googlebot News"},
				{regexp.MustCompile(`(?i)googlebot-video`), "Googlebot Video"},
				{regexp.MustCompile(`(?i)googlebot-mobile`), "Googlebot Mobile"},
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)mediapartners-google`),
			name:    "Mediapartners-Google",
		},
		{
			pattern: regexp.MustCompile(`(?i)adsbot-google`),
			name:    "AdsBot-Google",
			variants: []variant{
				{regexp.MustCompile(`(?i)adsbot-google-mobile`), "AdsBot-Google Mobile"},
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)apis-google`),
			name:    "APIs-Google",
		},
		{
			pattern: regexp.MustCompile(`(?i)storebot-google`),
			name:    "Storebot-Google",
		},
		{
			pattern: regexp.MustCompile(`(?i)bingbot`),
			name:    "Bingbot",
		},
		{
			pattern: regexp.MustCompile(`(?i)slurp`),
			name:    "Yahoo Slurp",
		},
		{
			pattern: regexp.MustCompile(`(?i)duckduckbot`),
			name:    "DuckDuckBot",
		},
		{
			pattern: regexp.MustCompile(`(?i)baiduspider`),
			name:    "Baiduspider",
		},
		{
			pattern: regexp.MustCompile(`(?i)yandexbot`),
			name:    "YandexBot",
		},
		{
			pattern: regexp.MustCompile(`(?i)applebot`),
			name:    "Applebot",
		},
	}
}

// Match tests the line against the signature table and returns the
// first family hit with its variant-resolved name. The second return
// is false when no signature matches. Matching is pure regex/substring
// work and never fails on arbitrary binary-ish input.
func (m *Matcher) Match(line string) (Match, bool) {
	for _, fam := range m.families {
		loc := fam.pattern.FindStringIndex(line)
		if loc == nil {
			continue
		}
		ua := m.userAgent(line, loc[0])
		name := fam.name
		for _, v := range fam.variants {
			if v.pattern.MatchString(ua) {
				name = v.name
				break
			}
		}
		return Match{
			BotName:   name,
			UserAgent: ua,
			Verified:  m.verified(line),
		}, true
	}
	return Match{}, false
}

// userAgent extracts the user-agent substring around the signature hit:
// the enclosing double-quoted segment when one exists, otherwise the
// tail of the line starting at the hit. Truncated to the configured cap.
func (m *Matcher) userAgent(line string, hitStart int) string {
	for _, g := range quotedSegment.FindAllStringSubmatchIndex(line, -1) {
		if g[2] <= hitStart && hitStart < g[3] {
			return truncate(line[g[2]:g[3]], m.maxUALen)
		}
	}
	return truncate(line[hitStart:], m.maxUALen)
}

// verified applies the coarse substring heuristic: any configured IP
// prefix or rDNS suffix appearing anywhere in the line marks the visit
// verified. Intentionally not a structured IP/CIDR check.
func (m *Matcher) verified(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range m.ipPrefixes {
		if strings.Contains(lower, p) {
			return true
		}
	}
	for _, s := range m.rdnsSuffixes {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, strings.ToLower(s))
	}
	return out
}
