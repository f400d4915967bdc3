package lvm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/topolvm/topofix"
)

var (
	// ErrMalformedLVSize is returned for lv_size values that are not whole KiB.
	ErrMalformedLVSize = errors.New("malformed lv size")
)

// LogicalVolume is one row of an `lvs --reportformat json --units k` report.
type LogicalVolume struct {
	Name   string
	VGName string
	PoolLV string
	Attr   string
	// Size is the literal lv_size column, e.g. "20971520.00k".
	Size string
}

func (u *LogicalVolume) UnmarshalJSON(data []byte) error {
	type lvInternal struct {
		Name   string `json:"lv_name"`
		VGName string `json:"vg_name"`
		PoolLV string `json:"pool_lv"`
		Attr   string `json:"lv_attr"`
		Size   string `json:"lv_size"`
	}

	var temp lvInternal
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	u.Name = temp.Name
	u.VGName = temp.VGName
	u.PoolLV = temp.PoolLV
	u.Attr = temp.Attr
	u.Size = temp.Size
	return nil
}

// IsThinPool reports whether the LV is itself a thin pool.
func (u *LogicalVolume) IsThinPool() bool {
	return len(u.Attr) > 0 && u.Attr[0] == 't'
}

// ParseReport decodes the logical volumes of every report section in r.
func ParseReport(r io.Reader) ([]LogicalVolume, error) {
	type lvReport struct {
		Report []struct {
			LV []LogicalVolume `json:"lv"`
		} `json:"report"`
	}

	var res lvReport
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode lvs report: %w", err)
	}
	var lvs []LogicalVolume
	for _, section := range res.Report {
		lvs = append(lvs, section.LV...)
	}
	return lvs, nil
}

// Report is the merged LVM view of every storage node.
type Report struct {
	lvs map[string]LogicalVolume
}

// NewReport merges logical volumes gathered from several nodes. Later
// entries replace earlier ones with the same name.
func NewReport(lvs ...LogicalVolume) *Report {
	r := &Report{lvs: make(map[string]LogicalVolume, len(lvs))}
	for _, lv := range lvs {
		r.lvs[lv.Name] = lv
	}
	return r
}

// Lookup returns the logical volume named name.
func (r *Report) Lookup(name string) (LogicalVolume, bool) {
	lv, ok := r.lvs[name]
	return lv, ok
}

// PoolOf returns the thin pool backing the brick LV of brickID.
func (r *Report) PoolOf(brickID string) (string, bool) {
	lv, ok := r.brickLV(brickID)
	if !ok || lv.PoolLV == "" {
		return "", false
	}
	return lv.PoolLV, true
}

// brickLV returns the brick LV of brickID. An LV with a brick name that is
// itself a thin pool is not a brick.
func (r *Report) brickLV(brickID string) (LogicalVolume, bool) {
	lv, ok := r.Lookup(topofix.BrickLVName(brickID))
	if !ok || lv.IsThinPool() {
		return LogicalVolume{}, false
	}
	return lv, true
}

// SizeOf returns the literal size of the brick LV of brickID.
func (r *Report) SizeOf(brickID string) (string, bool) {
	lv, ok := r.brickLV(brickID)
	if !ok || lv.Size == "" {
		return "", false
	}
	return lv.Size, true
}

// ThinPoolMap maps brick ids to the thin pool backing each brick LV.
func (r *Report) ThinPoolMap() map[string]string {
	m := make(map[string]string)
	for name, lv := range r.lvs {
		id, ok := strings.CutPrefix(name, topofix.BrickLVPrefix)
		if !ok || lv.PoolLV == "" || lv.IsThinPool() {
			continue
		}
		m[id] = lv.PoolLV
	}
	return m
}

// MismatchedPools returns, sorted, the brick LVs whose thin pool is named
// after a different brick id. heketi names a brick's pool after the brick,
// so these usually point at bricks that were moved or renamed by hand.
func (r *Report) MismatchedPools() []string {
	var names []string
	for name, lv := range r.lvs {
		id, ok := strings.CutPrefix(name, topofix.BrickLVPrefix)
		if !ok || lv.PoolLV == "" || lv.IsThinPool() {
			continue
		}
		poolID, ok := strings.CutPrefix(lv.PoolLV, topofix.ThinPoolPrefix)
		if !ok || poolID != id {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// ParseSize converts an lv_size literal such as "20971520.00k" to KiB.
func ParseSize(s string) (uint64, error) {
	whole, ok := strings.CutSuffix(s, ".00k")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMalformedLVSize, s)
	}
	n, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedLVSize, s, err)
	}
	return n, nil
}
