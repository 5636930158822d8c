package protocol

import (
	"encoding/binary"
	"math"
	"strconv"
	"unicode/utf8"
)

// EncodeValue encodes value for transmission as the payload of a frame
// whose OID expects DataType t (spec.md §4.C). The concrete Go type
// expected for value depends on t:
//
//	BOOL                    bool
//	UINT8/INT8/.../ENUM     any integer type (range-checked)
//	FLOAT                   float32 or float64
//	STRING                  string or []byte
//	TIMESERIES/EVENT_TABLE  uint32 (the request timestamp only)
//	UNKNOWN                 []byte (passthrough)
func EncodeValue(t DataType, value any) ([]byte, error) {
	switch t {
	case DataTypeBool:
		b, ok := value.(bool)
		if !ok {
			return nil, &EncodeError{Type: t, Reason: "value is not a bool"}
		}
		if b {
			return []byte{0x01}, nil
		}
		return []byte{0x00}, nil

	case DataTypeUint8, DataTypeEnum:
		v, err := toInt64(value)
		if err != nil {
			return nil, &EncodeError{Type: t, Reason: err.Error()}
		}
		if v < 0 || v > math.MaxUint8 {
			return nil, &EncodeError{Type: t, Reason: "value out of range for uint8"}
		}
		return []byte{byte(v)}, nil

	case DataTypeInt8:
		v, err := toInt64(value)
		if err != nil {
			return nil, &EncodeError{Type: t, Reason: err.Error()}
		}
		if v < math.MinInt8 || v > math.MaxInt8 {
			return nil, &EncodeError{Type: t, Reason: "value out of range for int8"}
		}
		return []byte{byte(int8(v))}, nil

	case DataTypeUint16:
		v, err := toInt64(value)
		if err != nil {
			return nil, &EncodeError{Type: t, Reason: err.Error()}
		}
		if v < 0 || v > math.MaxUint16 {
			return nil, &EncodeError{Type: t, Reason: "value out of range for uint16"}
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(v))
		return buf, nil

	case DataTypeInt16:
		v, err := toInt64(value)
		if err != nil {
			return nil, &EncodeError{Type: t, Reason: err.Error()}
		}
		if v < math.MinInt16 || v > math.MaxInt16 {
			return nil, &EncodeError{Type: t, Reason: "value out of range for int16"}
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(v)))
		return buf, nil

	case DataTypeUint32:
		v, err := toInt64(value)
		if err != nil {
			return nil, &EncodeError{Type: t, Reason: err.Error()}
		}
		if v < 0 || v > math.MaxUint32 {
			return nil, &EncodeError{Type: t, Reason: "value out of range for uint32"}
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(v))
		return buf, nil

	case DataTypeInt32:
		v, err := toInt64(value)
		if err != nil {
			return nil, &EncodeError{Type: t, Reason: err.Error()}
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, &EncodeError{Type: t, Reason: "value out of range for int32"}
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(v)))
		return buf, nil

	case DataTypeFloat:
		f, ok := toFloat32(value)
		if !ok {
			return nil, &EncodeError{Type: t, Reason: "value is not a float"}
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(f))
		return buf, nil

	case DataTypeString:
		s, ok := stringBytes(value)
		if !ok {
			return nil, &EncodeError{Type: t, Reason: "value is not a string or []byte"}
		}
		if !utf8.Valid(s) {
			return nil, &EncodeError{Type: t, Reason: "value is not valid UTF-8/ASCII"}
		}
		buf := make([]byte, 0, len(s)+1)
		buf = append(buf, s...)
		return append(buf, 0x00), nil

	case DataTypeTimeSeries, DataTypeEventTable:
		v, err := toInt64(value)
		if err != nil {
			return nil, &EncodeError{Type: t, Reason: "expected a uint32 request timestamp: " + err.Error()}
		}
		if v < 0 || v > math.MaxUint32 {
			return nil, &EncodeError{Type: t, Reason: "timestamp out of range for uint32"}
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(v))
		return buf, nil

	case DataTypeUnknown:
		b, ok := value.([]byte)
		if !ok {
			return nil, &EncodeError{Type: t, Reason: "value is not []byte"}
		}
		return append([]byte(nil), b...), nil

	default:
		return nil, &EncodeError{Type: t, Reason: "unknown data type"}
	}
}

// DecodeValue decodes data received as the payload of a frame whose OID
// response type is t (spec.md §4.C). The returned concrete Go type mirrors
// EncodeValue's input type for the same t, except TIMESERIES/EVENT_TABLE
// which decode to *TimeSeries/*EventTable (full aggregates, not just the
// request timestamp).
func DecodeValue(t DataType, data []byte) (any, error) {
	switch t {
	case DataTypeBool:
		if len(data) != 1 {
			return nil, &DecodeError{Type: t, Reason: "expected 1 byte"}
		}
		return data[0] != 0, nil

	case DataTypeUint8, DataTypeEnum:
		if len(data) != 1 {
			return nil, &DecodeError{Type: t, Reason: "expected 1 byte"}
		}
		return data[0], nil

	case DataTypeInt8:
		if len(data) != 1 {
			return nil, &DecodeError{Type: t, Reason: "expected 1 byte"}
		}
		return int8(data[0]), nil

	case DataTypeUint16:
		if len(data) != 2 {
			return nil, &DecodeError{Type: t, Reason: "expected 2 bytes"}
		}
		return binary.BigEndian.Uint16(data), nil

	case DataTypeInt16:
		if len(data) != 2 {
			return nil, &DecodeError{Type: t, Reason: "expected 2 bytes"}
		}
		return int16(binary.BigEndian.Uint16(data)), nil

	case DataTypeUint32:
		if len(data) != 4 {
			return nil, &DecodeError{Type: t, Reason: "expected 4 bytes"}
		}
		return binary.BigEndian.Uint32(data), nil

	case DataTypeInt32:
		if len(data) != 4 {
			return nil, &DecodeError{Type: t, Reason: "expected 4 bytes"}
		}
		return int32(binary.BigEndian.Uint32(data)), nil

	case DataTypeFloat:
		if len(data) != 4 {
			return nil, &DecodeError{Type: t, Reason: "expected 4 bytes"}
		}
		return math.Float32frombits(binary.BigEndian.Uint32(data)), nil

	case DataTypeString:
		s := data
		if idx := indexByte(data, 0x00); idx >= 0 {
			s = data[:idx]
		}
		// Some devices omit the terminating NUL; then the full buffer is used.
		if !utf8.Valid(s) {
			return nil, &DecodeError{Type: t, Reason: "string is not valid UTF-8/ASCII"}
		}
		return string(s), nil

	case DataTypeTimeSeries:
		return decodeTimeSeries(data)

	case DataTypeEventTable:
		return decodeEventTable(data)

	case DataTypeUnknown:
		return append([]byte(nil), data...), nil

	default:
		return nil, &DecodeError{Type: t, Reason: "unknown data type"}
	}
}

func decodeTimeSeries(data []byte) (*TimeSeries, error) {
	if len(data)%4 != 0 {
		return nil, &DecodeError{Type: DataTypeTimeSeries, Reason: "length not a multiple of 4"}
	}
	words := len(data) / 4
	if words == 0 || words%2 != 1 {
		return nil, &DecodeError{Type: DataTypeTimeSeries, Reason: "length must be 4*(2n+1) bytes"}
	}

	ts := &TimeSeries{
		RequestTimestamp: binary.BigEndian.Uint32(data[0:4]),
	}
	n := (words - 1) / 2
	ts.Points = make([]TimeSeriesPoint, 0, n)
	for i := 0; i < n; i++ {
		base := 4 + i*8
		point := TimeSeriesPoint{
			Timestamp: binary.BigEndian.Uint32(data[base : base+4]),
			Value:     math.Float32frombits(binary.BigEndian.Uint32(data[base+4 : base+8])),
		}
		ts.Points = append(ts.Points, point)
	}
	return ts, nil
}

func decodeEventTable(data []byte) (*EventTable, error) {
	if len(data)%4 != 0 {
		return nil, &DecodeError{Type: DataTypeEventTable, Reason: "length not a multiple of 4"}
	}
	words := len(data) / 4
	if words == 0 || (words-1)%5 != 0 {
		return nil, &DecodeError{Type: DataTypeEventTable, Reason: "length must be 4*(5n+1) bytes"}
	}

	et := &EventTable{
		RequestTimestamp: binary.BigEndian.Uint32(data[0:4]),
	}
	n := (words - 1) / 5
	et.Entries = make([]EventTableEntry, 0, n)
	for i := 0; i < n; i++ {
		base := 4 + i*20
		entry := EventTableEntry{
			TypeMarker: binary.BigEndian.Uint32(data[base : base+4]),
			Element2:   binary.BigEndian.Uint32(data[base+4 : base+8]),
			Element3:   binary.BigEndian.Uint32(data[base+8 : base+12]),
			Element4:   binary.BigEndian.Uint32(data[base+12 : base+16]),
			Element5:   binary.BigEndian.Uint32(data[base+16 : base+20]),
		}
		et.Entries = append(et.Entries, entry)
	}
	return et, nil
}

func indexByte(data []byte, b byte) int {
	for i, v := range data {
		if v == b {
			return i
		}
	}
	return -1
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, strconvErr("value too large")
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, strconvErr("value is not an integer")
	}
}

func toFloat32(value any) (float32, bool) {
	switch v := value.(type) {
	case float32:
		return v, true
	case float64:
		return float32(v), true
	default:
		n, err := toInt64(value)
		if err != nil {
			return 0, false
		}
		return float32(n), true
	}
}

func stringBytes(value any) ([]byte, bool) {
	switch v := value.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}

func strconvErr(msg string) error {
	return &strconv.NumError{Func: "toInt64", Num: "", Err: errString(msg)}
}

type errString string

func (e errString) Error() string { return string(e) }
