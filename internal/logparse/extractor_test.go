package logparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExtractCombinedFormat pulls every field out of a classic
// Apache/Nginx combined log line.
func TestExtractCombinedFormat(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{})
	line := `66.249.66.1 - - [15/Jan/2024:10:30:45 +0000] "GET /foo/bar?x=1 HTTP/1.1" 200 1234 "-" "Googlebot/2.1" 42`

	f := e.Extract(line)
	require.NotNil(t, f.StatusCode)
	require.Equal(t, 200, *f.StatusCode)
	require.NotNil(t, f.URL)
	require.Equal(t, "/foo/bar?x=1", *f.URL)
	require.NotNil(t, f.Hour)
	require.Equal(t, 10, *f.Hour)
	require.NotNil(t, f.Day)
	require.Equal(t, "15/Jan/2024", *f.Day)
	require.NotNil(t, f.ResponseTimeMs)
	require.Equal(t, 42.0, *f.ResponseTimeMs)
}

// TestExtractISOTimestamp accepts the ISO timestamp form.
func TestExtractISOTimestamp(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{})
	f := e.Extract(`2024-01-15 23:59:59 GET /x 200`)
	require.NotNil(t, f.Day)
	require.Equal(t, "2024-01-15", *f.Day)
	require.NotNil(t, f.Hour)
	require.Equal(t, 23, *f.Hour)
}

// TestExtractAbsoluteURLStripped strips scheme and host from bare URLs.
func TestExtractAbsoluteURLStripped(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{})
	f := e.Extract(`visit to https://example.com/deep/path?q=2 done 200 `)
	require.NotNil(t, f.URL)
	require.Equal(t, "/deep/path?q=2", *f.URL)
}

// TestExtractHostOnlyURL maps a host-only absolute URL to the root path.
func TestExtractHostOnlyURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/", StripSchemeHost("https://example.com"))
	require.Equal(t, "/a/b", StripSchemeHost("http://example.com/a/b"))
	require.Equal(t, "/rel", StripSchemeHost("/rel"))
}

// TestExtractMissesAreIndependent lets one field miss while others land.
func TestExtractMissesAreIndependent(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{})
	f := e.Extract(`GET /only-a-path`)
	require.Nil(t, f.StatusCode)
	require.NotNil(t, f.URL)
	require.Equal(t, "/only-a-path", *f.URL)
	require.Nil(t, f.Hour)
	require.Nil(t, f.Day)
	require.Nil(t, f.ResponseTimeMs)
}

// TestExtractNothing yields all-nil fields on unstructured garbage.
func TestExtractNothing(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{})
	f := e.Extract("\x01\x02 complete nonsense \x03")
	require.Nil(t, f.StatusCode)
	require.Nil(t, f.URL)
	require.Nil(t, f.Hour)
	require.Nil(t, f.Day)
	require.Nil(t, f.ResponseTimeMs)
}

// TestResponseTimeSanityBounds rejects out-of-range candidates and keeps
// searching the chain.
func TestResponseTimeSanityBounds(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{})

	f := e.Extract(`something rt=12.5 ends 12345678`)
	require.NotNil(t, f.ResponseTimeMs)
	require.Equal(t, 12.5, *f.ResponseTimeMs)

	f = e.Extract(`something ends 12345678`)
	require.Nil(t, f.ResponseTimeMs)

	f = e.Extract(`zero time=0`)
	require.Nil(t, f.ResponseTimeMs)
}

// TestResponseTimeTaggedForms covers the rt=/time=/duration: patterns.
func TestResponseTimeTaggedForms(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{})

	f := e.Extract(`upstream time=1.250 status=200 done`)
	require.NotNil(t, f.ResponseTimeMs)
	require.Equal(t, 1.25, *f.ResponseTimeMs)

	f = e.Extract(`handler duration: 87 finished ok`)
	require.NotNil(t, f.ResponseTimeMs)
	require.Equal(t, 87.0, *f.ResponseTimeMs)
}

// TestStatusThreeDigitsOnly ignores longer digit runs.
func TestStatusThreeDigitsOnly(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{})
	f := e.Extract(`bytes 12345 no status here`)
	require.Nil(t, f.StatusCode)
}

// TestSplitQuery separates the grouping key from the parameter flag.
func TestSplitQuery(t *testing.T) {
	t.Parallel()

	path, hasParams := SplitQuery("/foo/bar?x=1")
	require.Equal(t, "/foo/bar", path)
	require.True(t, hasParams)

	path, hasParams = SplitQuery("/foo/bar")
	require.Equal(t, "/foo/bar", path)
	require.False(t, hasParams)
}
