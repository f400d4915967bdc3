package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	// ErrMalformedSwapSpec is returned for swap specifications that do not
	// hold exactly four ids.
	ErrMalformedSwapSpec = errors.New("swap spec requires 4 ids")

	swapSpecSeparator = regexp.MustCompile(`[ ,/:]`)
)

// SwapSpec names a brick to replace and the brick replacing it.
type SwapSpec struct {
	OldDevice string
	OldBrick  string
	NewDevice string
	NewBrick  string
}

func (s SwapSpec) String() string {
	return strings.Join([]string{s.OldDevice, s.OldBrick, s.NewDevice, s.NewBrick}, ":")
}

// ParseSwapSpec parses "oldDevice oldBrick newDevice newBrick". The ids may
// be separated by one space, comma, slash, or colon.
func ParseSwapSpec(txt string) (SwapSpec, error) {
	parts := swapSpecSeparator.Split(strings.TrimSpace(txt), -1)
	if len(parts) != 4 {
		return SwapSpec{}, fmt.Errorf("%w: %q", ErrMalformedSwapSpec, txt)
	}
	for _, p := range parts {
		if p == "" {
			return SwapSpec{}, fmt.Errorf("%w: %q", ErrMalformedSwapSpec, txt)
		}
	}
	return SwapSpec{OldDevice: parts[0], OldBrick: parts[1], NewDevice: parts[2], NewBrick: parts[3]}, nil
}

// ParseSwapFile reads one swap spec per line. Blank lines and lines
// starting with # are ignored.
func ParseSwapFile(r io.Reader) ([]SwapSpec, error) {
	var specs []SwapSpec
	err := eachLine(r, func(line string) error {
		spec, err := ParseSwapSpec(line)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
		return nil
	})
	return specs, err
}

// ParseBrickSwapMap reads "newBrick sourceBrick" pairs, one per line, and
// returns them keyed by the new brick id.
func ParseBrickSwapMap(r io.Reader) (map[string]string, error) {
	m := make(map[string]string)
	err := eachLine(r, func(line string) error {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("brick swap line needs 2 ids: %q", line)
		}
		m[fields[0]] = fields[1]
		return nil
	})
	return m, err
}

func eachLine(r io.Reader, fn func(string) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
