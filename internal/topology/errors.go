package topology

import "errors"

var (
	// ErrUnknownDevice is returned when a device id is not in the document.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrUnknownBrick is returned when a brick id is not in the document.
	ErrUnknownBrick = errors.New("unknown brick")
	// ErrUnknownVolume is returned when a volume id is not in the document.
	ErrUnknownVolume = errors.New("unknown volume")
	// ErrUnknownNode is returned when no node owns an address or id.
	ErrUnknownNode = errors.New("unknown node")
	// ErrUnknownCluster is returned when a cluster id is not in the document.
	ErrUnknownCluster = errors.New("unknown cluster")
	// ErrBrickIDCollision is returned when a new brick would reuse an existing id.
	ErrBrickIDCollision = errors.New("brick id already exists")
	// ErrMalformedPath is returned when a brick path lacks its vg_ or brick_ segment.
	ErrMalformedPath = errors.New("malformed brick path")
	// ErrInconsistent is wrapped by every referential integrity violation found by Verify.
	ErrInconsistent = errors.New("inconsistent topology")
)
