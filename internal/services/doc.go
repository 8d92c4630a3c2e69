// Package services implements remote feed providers.
//
// # HTTP Feed
//
// [HTTPFeed] reads the feed from a JSON endpoint, one page per request:
//
//	GET {base}/feed?offset=0&limit=10
//	{"items": [{"id": "...", "media_uri": "...", "poster_uri": "..."}], "total": 42}
//
// # S3 Feed
//
// [S3Feed] lists video objects under a bucket prefix and hands out presigned GET URLs
// as media URIs. A sibling image with the same base name becomes the poster.
//
// # Error Handling
//
// Both providers wrap failures in [shared.ErrFeedUnavailable] so the controller can
// tell a provider outage from invalid input.
package services
