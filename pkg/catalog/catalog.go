// Package catalog ships a small, hand-picked sample of OID entries and
// a TOML loader so rctmon can run against a real-shaped registry
// without vendoring the full ~700-row device catalog (spec.md §1: the
// catalog's shape is specified, its inventory is data the embedder
// supplies). Sample returns real entries drawn from a production
// device's OID table; it is not a claim of completeness.
package catalog

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"ratitude/pkg/protocol"
)

// entry is the TOML row shape for one catalog entry. The object id is
// stored as a 0x-prefixed hex string in the file, since these IDs are
// conventionally read and written in hex.
type entry struct {
	ID               string         `toml:"id"`
	Name             string         `toml:"name"`
	Group            string         `toml:"group"`
	Description      string         `toml:"description,omitempty"`
	Unit             string         `toml:"unit,omitempty"`
	RequestDataType  string         `toml:"request_data_type"`
	ResponseDataType string         `toml:"response_data_type,omitempty"`
	EnumMap          map[string]string `toml:"enum_map,omitempty"`
	SimData          any            `toml:"sim_data,omitempty"`
}

type file struct {
	Entries []entry `toml:"entry"`
}

// Load reads a catalog TOML file and builds a Registry from it.
func Load(path string) (*protocol.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Registry from catalog TOML content already in memory.
func Parse(data []byte) (*protocol.Registry, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	infos := make([]protocol.ObjectInfo, 0, len(f.Entries))
	for _, e := range f.Entries {
		info, err := toObjectInfo(e)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return protocol.NewRegistry(infos)
}

// Marshal serializes entries back to catalog TOML, the inverse of
// Parse/Load. Used by tools/gencatalog to rewrite a catalog file.
func Marshal(entries []protocol.ObjectInfo) ([]byte, error) {
	f := file{Entries: make([]entry, 0, len(entries))}
	for _, info := range entries {
		f.Entries = append(f.Entries, fromObjectInfo(info))
	}
	return toml.Marshal(f)
}

func fromObjectInfo(info protocol.ObjectInfo) entry {
	e := entry{
		ID:              fmt.Sprintf("0x%X", info.ObjectID),
		Name:            info.Name,
		Group:           info.Group.String(),
		Description:     info.Description,
		Unit:            info.Unit,
		RequestDataType: info.RequestDataType.String(),
		SimData:         info.SimData,
	}
	if info.ResponseDataType != info.RequestDataType {
		e.ResponseDataType = info.ResponseDataType.String()
	}
	if len(info.EnumMap) > 0 {
		e.EnumMap = make(map[string]string, len(info.EnumMap))
		for k, v := range info.EnumMap {
			e.EnumMap[fmt.Sprintf("%d", k)] = v
		}
	}
	return e
}

func toObjectInfo(e entry) (protocol.ObjectInfo, error) {
	id, err := parseHexUint32(e.ID)
	if err != nil {
		return protocol.ObjectInfo{}, fmt.Errorf("catalog: entry %q: id: %w", e.Name, err)
	}
	group, err := groupFromName(e.Group)
	if err != nil {
		return protocol.ObjectInfo{}, fmt.Errorf("catalog: entry %q: %w", e.Name, err)
	}
	reqType, err := dataTypeFromName(e.RequestDataType)
	if err != nil {
		return protocol.ObjectInfo{}, fmt.Errorf("catalog: entry %q: request_data_type: %w", e.Name, err)
	}
	respType := reqType
	if e.ResponseDataType != "" {
		respType, err = dataTypeFromName(e.ResponseDataType)
		if err != nil {
			return protocol.ObjectInfo{}, fmt.Errorf("catalog: entry %q: response_data_type: %w", e.Name, err)
		}
	}

	var enumMap map[int64]string
	if len(e.EnumMap) > 0 {
		enumMap = make(map[int64]string, len(e.EnumMap))
		for k, v := range e.EnumMap {
			var iv int64
			if _, err := fmt.Sscanf(k, "%d", &iv); err != nil {
				return protocol.ObjectInfo{}, fmt.Errorf("catalog: entry %q: enum_map key %q: %w", e.Name, k, err)
			}
			enumMap[iv] = v
		}
	}

	simData := e.SimData
	if simData == nil {
		simData = zeroSimData(respType)
	}

	return protocol.ObjectInfo{
		ObjectID:         id,
		Name:             e.Name,
		Group:            group,
		Description:      e.Description,
		Unit:             e.Unit,
		RequestDataType:  reqType,
		ResponseDataType: respType,
		EnumMap:          enumMap,
		SimData:          simData,
	}, nil
}

// zeroSimData supplies a type-appropriate default for entries that don't
// specify sim_data explicitly, so the simulator always has something to
// encode without every catalog row needing one.
func zeroSimData(t protocol.DataType) any {
	switch t {
	case protocol.DataTypeBool:
		return false
	case protocol.DataTypeUint8, protocol.DataTypeUint16, protocol.DataTypeUint32, protocol.DataTypeEnum:
		return uint32(0)
	case protocol.DataTypeInt8, protocol.DataTypeInt16, protocol.DataTypeInt32:
		return int32(0)
	case protocol.DataTypeFloat:
		return float32(0)
	case protocol.DataTypeString:
		return ""
	case protocol.DataTypeTimeSeries, protocol.DataTypeEventTable:
		return uint32(0)
	default:
		return []byte(nil)
	}
}

func parseHexUint32(s string) (uint32, error) {
	var v uint32
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		if _, err := fmt.Sscanf(s[2:], "%X", &v); err != nil {
			return 0, err
		}
		return v, nil
	}
	if _, err := fmt.Sscanf(s, "%X", &v); err != nil {
		return 0, fmt.Errorf("invalid hex id %q: %w", s, err)
	}
	return v, nil
}

var dataTypeNames = map[string]protocol.DataType{
	"BOOL": protocol.DataTypeBool, "UINT8": protocol.DataTypeUint8, "INT8": protocol.DataTypeInt8,
	"UINT16": protocol.DataTypeUint16, "INT16": protocol.DataTypeInt16,
	"UINT32": protocol.DataTypeUint32, "INT32": protocol.DataTypeInt32,
	"ENUM": protocol.DataTypeEnum, "FLOAT": protocol.DataTypeFloat, "STRING": protocol.DataTypeString,
	"TIMESERIES": protocol.DataTypeTimeSeries, "EVENT_TABLE": protocol.DataTypeEventTable,
	"UNKNOWN": protocol.DataTypeUnknown,
}

func dataTypeFromName(s string) (protocol.DataType, error) {
	dt, ok := dataTypeNames[s]
	if !ok {
		return 0, fmt.Errorf("unknown data type %q", s)
	}
	return dt, nil
}

var groupNames = func() map[string]protocol.ObjectGroup {
	m := make(map[string]protocol.ObjectGroup)
	for g := protocol.GroupRB485; g <= protocol.GroupBatteryPlaceholder; g++ {
		m[g.String()] = g
	}
	return m
}()

func groupFromName(s string) (protocol.ObjectGroup, error) {
	g, ok := groupNames[s]
	if !ok {
		return 0, fmt.Errorf("unknown object group %q", s)
	}
	return g, nil
}
