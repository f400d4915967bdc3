package topology

import (
	"fmt"
	"strings"

	"github.com/topolvm/topofix"
)

// BrickLocation is what a gluster brick path says about a brick.
type BrickLocation struct {
	Address  string
	DeviceID string
	BrickID  string
}

// ParseBrickPath parses "address:/.../vg_<device>/brick_<brick>[/brick]".
// The vg_ and brick_ segments may appear anywhere in the path.
func ParseBrickPath(p string) (BrickLocation, error) {
	var loc BrickLocation
	address, dir, ok := strings.Cut(p, ":")
	if !ok || address == "" {
		return loc, fmt.Errorf("%w: no address in %q", ErrMalformedPath, p)
	}
	loc.Address = address
	for _, seg := range strings.Split(dir, "/") {
		if id, ok := strings.CutPrefix(seg, topofix.DeviceVGPrefix); ok {
			loc.DeviceID = id
		}
		if id, ok := strings.CutPrefix(seg, topofix.BrickLVPrefix); ok {
			loc.BrickID = id
		}
	}
	if loc.DeviceID == "" {
		return loc, fmt.Errorf("%w: no %s segment in %q", ErrMalformedPath, topofix.DeviceVGPrefix, p)
	}
	if loc.BrickID == "" {
		return loc, fmt.Errorf("%w: no %s segment in %q", ErrMalformedPath, topofix.BrickLVPrefix, p)
	}
	return loc, nil
}

// BrickIDFromPath returns the id in the first brick_ segment of p.
func BrickIDFromPath(p string) (string, error) {
	for _, seg := range strings.Split(p, "/") {
		if id, ok := strings.CutPrefix(seg, topofix.BrickLVPrefix); ok && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no %s segment in %q", ErrMalformedPath, topofix.BrickLVPrefix, p)
}
