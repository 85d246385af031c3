// Package classify assigns crawled URLs to crawl-budget buckets and
// computes URL depth.
package classify

import (
	"regexp"
	"strings"
)

// Bucket is one of the five mutually exclusive crawl-budget buckets.
type Bucket string

// Crawl-budget buckets. Every classified URL lands in exactly one.
const (
	BucketCanonical  Bucket = "canonical"
	BucketWithParams Bucket = "withParams"
	BucketPagination Bucket = "pagination"
	BucketService    Bucket = "service"
	BucketNotFound   Bucket = "notFound"
)

// Buckets lists all buckets in report order.
func Buckets() []Bucket {
	return []Bucket{
		BucketCanonical,
		BucketWithParams,
		BucketPagination,
		BucketService,
		BucketNotFound,
	}
}

var paginationPattern = regexp.MustCompile(`/page/|/p/|/\d+$`)

// serviceSegments marks admin, API, build-asset and static paths that
// spend crawl budget without ranking value.
var serviceSegments = []string{
	"/wp-admin",
	"/admin",
	"/wp-json",
	"/api/",
	"/cgi-bin/",
	"/static/",
	"/assets/",
	"/_next/",
	".css",
	".js",
}

// Classify maps a request target (path, query still attached when
// present) and optional status code to its bucket. Precedence is
// fixed; the first matching rule wins.
func Classify(url string, statusCode *int) Bucket {
	if statusCode != nil && *statusCode == 404 {
		return BucketNotFound
	}
	if strings.ContainsAny(url, "?&") {
		return BucketWithParams
	}
	if paginationPattern.MatchString(url) {
		return BucketPagination
	}
	lower := strings.ToLower(url)
	for _, seg := range serviceSegments {
		if strings.Contains(lower, seg) {
			return BucketService
		}
	}
	return BucketCanonical
}

// Depth counts the non-empty /-delimited segments of a path. The root
// path and the empty string have depth 0.
func Depth(path string) int {
	depth := 0
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			depth++
		}
	}
	return depth
}
