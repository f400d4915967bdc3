package topology

import (
	"bytes"
	"encoding/json"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Extra holds the keys of a JSON object that the typed model does not
// declare. They are written back after the declared fields so records
// written by other heketi versions survive an edit.
type Extra map[string]json.RawMessage

var fieldNameCache sync.Map // reflect.Type -> []string

func jsonFieldNames(t reflect.Type) []string {
	if v, ok := fieldNameCache.Load(t); ok {
		return v.([]string)
	}
	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		names = append(names, name)
	}
	fieldNameCache.Store(t, names)
	return names
}

// unmarshalKeeping decodes data into v, a pointer to a struct type without
// its own UnmarshalJSON, and returns the keys v does not declare.
func unmarshalKeeping(data []byte, v any) (Extra, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	names := jsonFieldNames(reflect.TypeOf(v).Elem())
	var extra Extra
	for key, raw := range all {
		// encoding/json matches field names case-insensitively
		if slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, key) }) {
			continue
		}
		if extra == nil {
			extra = make(Extra)
		}
		extra[key] = raw
	}
	return extra, nil
}

// marshalKeeping encodes v and appends extra, sorted by key.
func marshalKeeping(v any, extra Extra) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	for _, key := range sortedKeys(map[string]json.RawMessage(extra)) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(extra[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Document) UnmarshalJSON(data []byte) (err error) {
	type plain Document
	d.Extra, err = unmarshalKeeping(data, (*plain)(d))
	return err
}

func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	return marshalKeeping(plain(d), d.Extra)
}

func (e *ClusterEntry) UnmarshalJSON(data []byte) (err error) {
	type plain ClusterEntry
	e.Extra, err = unmarshalKeeping(data, (*plain)(e))
	return err
}

func (e ClusterEntry) MarshalJSON() ([]byte, error) {
	type plain ClusterEntry
	return marshalKeeping(plain(e), e.Extra)
}

func (i *ClusterInfo) UnmarshalJSON(data []byte) (err error) {
	type plain ClusterInfo
	i.Extra, err = unmarshalKeeping(data, (*plain)(i))
	return err
}

func (i ClusterInfo) MarshalJSON() ([]byte, error) {
	type plain ClusterInfo
	return marshalKeeping(plain(i), i.Extra)
}

func (e *NodeEntry) UnmarshalJSON(data []byte) (err error) {
	type plain NodeEntry
	e.Extra, err = unmarshalKeeping(data, (*plain)(e))
	return err
}

func (e NodeEntry) MarshalJSON() ([]byte, error) {
	type plain NodeEntry
	return marshalKeeping(plain(e), e.Extra)
}

func (i *NodeInfo) UnmarshalJSON(data []byte) (err error) {
	type plain NodeInfo
	i.Extra, err = unmarshalKeeping(data, (*plain)(i))
	return err
}

func (i NodeInfo) MarshalJSON() ([]byte, error) {
	type plain NodeInfo
	return marshalKeeping(plain(i), i.Extra)
}

func (e *DeviceEntry) UnmarshalJSON(data []byte) (err error) {
	type plain DeviceEntry
	e.Extra, err = unmarshalKeeping(data, (*plain)(e))
	return err
}

func (e DeviceEntry) MarshalJSON() ([]byte, error) {
	type plain DeviceEntry
	return marshalKeeping(plain(e), e.Extra)
}

func (i *DeviceInfo) UnmarshalJSON(data []byte) (err error) {
	type plain DeviceInfo
	i.Extra, err = unmarshalKeeping(data, (*plain)(i))
	return err
}

func (i DeviceInfo) MarshalJSON() ([]byte, error) {
	type plain DeviceInfo
	return marshalKeeping(plain(i), i.Extra)
}

func (s *StorageSize) UnmarshalJSON(data []byte) (err error) {
	type plain StorageSize
	s.Extra, err = unmarshalKeeping(data, (*plain)(s))
	return err
}

func (s StorageSize) MarshalJSON() ([]byte, error) {
	type plain StorageSize
	return marshalKeeping(plain(s), s.Extra)
}

func (e *VolumeEntry) UnmarshalJSON(data []byte) (err error) {
	type plain VolumeEntry
	e.Extra, err = unmarshalKeeping(data, (*plain)(e))
	return err
}

func (e VolumeEntry) MarshalJSON() ([]byte, error) {
	type plain VolumeEntry
	return marshalKeeping(plain(e), e.Extra)
}

func (i *VolumeInfo) UnmarshalJSON(data []byte) (err error) {
	type plain VolumeInfo
	i.Extra, err = unmarshalKeeping(data, (*plain)(i))
	return err
}

func (i VolumeInfo) MarshalJSON() ([]byte, error) {
	type plain VolumeInfo
	return marshalKeeping(plain(i), i.Extra)
}

func (e *BrickEntry) UnmarshalJSON(data []byte) (err error) {
	type plain BrickEntry
	e.Extra, err = unmarshalKeeping(data, (*plain)(e))
	return err
}

func (e BrickEntry) MarshalJSON() ([]byte, error) {
	type plain BrickEntry
	return marshalKeeping(plain(e), e.Extra)
}

func (i *BrickInfo) UnmarshalJSON(data []byte) (err error) {
	type plain BrickInfo
	i.Extra, err = unmarshalKeeping(data, (*plain)(i))
	return err
}

func (i BrickInfo) MarshalJSON() ([]byte, error) {
	type plain BrickInfo
	return marshalKeeping(plain(i), i.Extra)
}
