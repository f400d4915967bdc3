package loader

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseVolumeInfo reads `gluster volume info` output and returns the brick
// paths of each volume, keyed by volume name, in listing order.
func ParseVolumeInfo(r io.Reader) (map[string][]string, error) {
	vols := make(map[string][]string)
	var volume string
	var seen bool

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if name, ok := strings.CutPrefix(line, "Volume Name:"); ok {
			volume = strings.TrimSpace(name)
			seen = true
			vols[volume] = []string{}
			continue
		}
		if !strings.HasPrefix(line, "Brick") || line == "Bricks:" {
			continue
		}
		if !seen {
			return nil, fmt.Errorf("brick line before any volume: %s", line)
		}
		_, path, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		vols[volume] = append(vols[volume], strings.TrimSpace(path))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vols, nil
}
