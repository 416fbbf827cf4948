// Package egress wraps the external media-egress service that captures a
// room's audio/video to blob storage. The core only starts and stops
// captures; the egress protocol itself is the service's concern.
package egress

import "context"

// StopResult is the final storage location reported by the egress service
// when a capture finishes.
type StopResult struct {
	Path string
	URL  string
}

// Client starts and stops media egress for a room.
type Client interface {
	// StartRecording begins capturing roomName and returns the egress ID.
	StartRecording(ctx context.Context, roomName string) (string, error)
	// StopRecording finishes the capture for egressID. Stopping an already
	// stopped egress is not an error; the result may then be empty.
	StopRecording(ctx context.Context, egressID string) (StopResult, error)
}
