// Package blobsign signs time-boxed playback URLs for recording blobs.
package blobsign

import "time"

// Signer produces playback URLs for blob paths. Sign returns a time-boxed
// signed URL; URL returns the plain, unsigned URL for the same path.
type Signer interface {
	Sign(path string, ttl time.Duration) (string, error)
	URL(path string) string
}
