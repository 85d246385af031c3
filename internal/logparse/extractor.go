// Package logparse extracts request fields from heterogeneous
// access-log lines. No single format is assumed: each field has an
// ordered chain of candidate patterns and the first success wins.
// Extraction misses are absent fields, never errors.
package logparse

import (
	"regexp"
	"strconv"
	"strings"
)

// Fields holds the independently extracted request fields. Every field
// is optional; a nil pointer means the line yielded nothing for it.
type Fields struct {
	// StatusCode is the three-digit HTTP status, when one was found.
	StatusCode *int
	// URL is the request path with query string, scheme and host
	// already stripped.
	URL *string
	// Hour is the hour-of-day (0-23) from the request timestamp.
	Hour *int
	// Day is the day key as it appeared in the log (format-dependent).
	Day *string
	// ResponseTimeMs is the request duration, bounds-checked.
	ResponseTimeMs *float64
}

// Config tunes the extractor. Zero values keep the legacy bounds.
type Config struct {
	// ResponseTimeMin and ResponseTimeMax bound accepted response-time
	// candidates (exclusive). Defaults: 0 and 100000.
	ResponseTimeMin float64
	ResponseTimeMax float64
}

const defaultResponseTimeMax = 100000

// Extractor runs the per-field pattern chains. Immutable after
// construction, safe for concurrent use.
type Extractor struct {
	statusChain []*regexp.Regexp
	urlChain    []*regexp.Regexp
	timeChain   []timePattern
	rtChain     []*regexp.Regexp
	rtMin       float64
	rtMax       float64
}

// timePattern pairs a timestamp regex with the submatch indexes that
// carry the day key and the hour.
type timePattern struct {
	pattern  *regexp.Regexp
	dayIdx   int
	hourIdx  int
	dayParts []int // when set, day key is these submatches joined with "/"
}

// NewExtractor compiles the pattern chains.
func NewExtractor(cfg Config) *Extractor {
	rtMax := cfg.ResponseTimeMax
	if rtMax <= 0 {
		rtMax = defaultResponseTimeMax
	}
	return &Extractor{
		// Three-digit status, ordered: bare " DDD ", after the HTTP
		// protocol token, after a closing quote, before quote/space.
		statusChain: []*regexp.Regexp{
			regexp.MustCompile(`\s(\d{3})\s`),
			regexp.MustCompile(`HTTP/\d\.\d"?\s+(\d{3})`),
			regexp.MustCompile(`"\s*(\d{3})\s`),
			regexp.MustCompile(`\s(\d{3})["\s]`),
		},
		// Request target, ordered: method-prefixed token, quoted token
		// followed by a status, single-quoted token followed by a
		// status, bare absolute URL.
		urlChain: []*regexp.Regexp{
			regexp.MustCompile(`(?:GET|POST|PUT|DELETE|HEAD|OPTIONS|PATCH)\s+(\S+)`),
			regexp.MustCompile(`"([^"\s]+)"\s+\d{3}`),
			regexp.MustCompile(`'([^'\s]+)'\s+\d{3}`),
			regexp.MustCompile(`(https?://[^\s"']+)`),
		},
		// Timestamp, ordered: bracketed Apache/Nginx, ISO, bracketed ISO.
		timeChain: []timePattern{
			{
				pattern:  regexp.MustCompile(`\[(\d{2})/([A-Za-z]{3})/(\d{4}):(\d{2}):\d{2}:\d{2}`),
				hourIdx:  4,
				dayParts: []int{1, 2, 3},
			},
			{
				pattern: regexp.MustCompile(`(\d{4}-\d{2}-\d{2})[ T](\d{2}):\d{2}:\d{2}`),
				dayIdx:  1,
				hourIdx: 2,
			},
			{
				pattern: regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2})[ T](\d{2}):`),
				dayIdx:  1,
				hourIdx: 2,
			},
		},
		// Response time, ordered: trailing bare number, rt=, time=,
		// duration:.
		rtChain: []*regexp.Regexp{
			regexp.MustCompile(`(\d+(?:\.\d+)?)\s*$`),
			regexp.MustCompile(`rt=(\d+(?:\.\d+)?)`),
			regexp.MustCompile(`time=(\d+(?:\.\d+)?)`),
			regexp.MustCompile(`duration:\s*(\d+(?:\.\d+)?)`),
		},
		rtMin: cfg.ResponseTimeMin,
		rtMax: rtMax,
	}
}

// Extract runs all four chains against the line. Failures are
// independent: a miss on one field never blocks the others.
func (e *Extractor) Extract(line string) Fields {
	var f Fields
	f.StatusCode = e.extractStatus(line)
	f.URL = e.extractURL(line)
	f.Day, f.Hour = e.extractTimestamp(line)
	f.ResponseTimeMs = e.extractResponseTime(line)
	return f
}

func (e *Extractor) extractStatus(line string) *int {
	for _, p := range e.statusChain {
		m := p.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		code, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return &code
	}
	return nil
}

func (e *Extractor) extractURL(line string) *string {
	for _, p := range e.urlChain {
		m := p.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		u := StripSchemeHost(m[1])
		if u == "" {
			continue
		}
		return &u
	}
	return nil
}

func (e *Extractor) extractTimestamp(line string) (*string, *int) {
	for _, tp := range e.timeChain {
		m := tp.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		hour, err := strconv.Atoi(m[tp.hourIdx])
		if err != nil || hour < 0 || hour > 23 {
			continue
		}
		var day string
		if len(tp.dayParts) > 0 {
			parts := make([]string, 0, len(tp.dayParts))
			for _, idx := range tp.dayParts {
				parts = append(parts, m[idx])
			}
			day = strings.Join(parts, "/")
		} else {
			day = m[tp.dayIdx]
		}
		return &day, &hour
	}
	return nil, nil
}

func (e *Extractor) extractResponseTime(line string) *float64 {
	for _, p := range e.rtChain {
		m := p.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		// Sanity bound: candidates outside it are treated as absent
		// and the chain moves on.
		if v <= e.rtMin || v >= e.rtMax {
			continue
		}
		return &v
	}
	return nil
}

// StripSchemeHost removes a leading scheme and host from an absolute
// URL, returning the path (with query). Relative tokens pass through.
func StripSchemeHost(u string) string {
	rest, ok := strings.CutPrefix(u, "http://")
	if !ok {
		rest, ok = strings.CutPrefix(u, "https://")
	}
	if !ok {
		return u
	}
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return rest[idx:]
	}
	return "/"
}

// SplitQuery splits the query string off a request target. The second
// return reports whether the target carried parameters at all.
func SplitQuery(u string) (string, bool) {
	path, _, found := strings.Cut(u, "?")
	if found {
		return path, true
	}
	return path, strings.ContainsRune(u, '&')
}
