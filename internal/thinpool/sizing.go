package thinpool

import (
	"errors"
	"fmt"

	"github.com/topolvm/topofix"
)

var (
	// ErrMisalignedSize is returned for thin pool sizes that are not a
	// multiple of the extent size.
	ErrMisalignedSize = errors.New("thin pool size is not extent aligned")
)

// DefaultTable holds the pool metadata sizes heketi allocated for common
// volume sizes, keyed by volume size in GiB.
var DefaultTable = Table{
	1:   8192,
	2:   12288,
	3:   16384,
	5:   28672,
	8:   45056,
	10:  53248,
	15:  81920,
	20:  106496,
	25:  131072,
	45:  237568,
	50:  262144,
	80:  421888,
	100: 524288,
}

// Table maps a volume size in GiB to its expected pool metadata size.
type Table map[int]uint64

// Merge returns a new table holding t overlaid with other.
func (t Table) Merge(other Table) Table {
	merged := make(Table, len(t)+len(other))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Sizer computes pool metadata sizes the way heketi does when it creates
// a brick.
type Sizer struct {
	ExtentSize      uint64
	MaxMetadataSize uint64
	// Table is only used to cross-check computed values.
	Table Table
}

// NewSizer returns a Sizer with heketi's defaults.
func NewSizer() *Sizer {
	return &Sizer{
		ExtentSize:      topofix.ExtentSize,
		MaxMetadataSize: topofix.MaxPoolMetadataSize,
		Table:           DefaultTable,
	}
}

// MetadataSize returns the pool metadata size for a thin pool of size:
// 0.5% of the pool, capped, and rounded up to a whole extent.
func (s *Sizer) MetadataSize(size uint64) (uint64, error) {
	if size%s.ExtentSize != 0 {
		return 0, fmt.Errorf("%w: %d %% %d = %d", ErrMisalignedSize, size, s.ExtentSize, size%s.ExtentSize)
	}
	meta := size / topofix.PoolMetadataDivisor
	if meta > s.MaxMetadataSize {
		meta = s.MaxMetadataSize
	}
	if rem := meta % s.ExtentSize; rem != 0 {
		meta += s.ExtentSize - rem
	}
	return meta, nil
}

// MismatchError describes a computed metadata size that differs from the
// table entry for the same volume size.
type MismatchError struct {
	SizeGiB  int
	Expected uint64
	Got      uint64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("pool metadata size for %d GiB is %d, table expects %d", e.SizeGiB, e.Got, e.Expected)
}

// Check compares meta against the table entry for sizeGiB. It returns nil
// when the table has no entry for sizeGiB or the values agree.
func (s *Sizer) Check(sizeGiB int, meta uint64) *MismatchError {
	expected, ok := s.Expected(sizeGiB)
	if !ok || expected == meta {
		return nil
	}
	return &MismatchError{SizeGiB: sizeGiB, Expected: expected, Got: meta}
}

// Expected returns the table entry for sizeGiB.
func (s *Sizer) Expected(sizeGiB int) (uint64, bool) {
	v, ok := s.Table[sizeGiB]
	return v, ok
}
