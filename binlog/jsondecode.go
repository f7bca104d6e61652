package binlog

import (
	"encoding/binary"
	"io"
	"math"
	"time"

	gojson "github.com/goccy/go-json"
)

// DecodeJSON decodes a JSON column's opaque binary payload (as returned
// by decodeValueInner for TypeJSON, kept opaque on the main row-decode
// path per spec.md 4.5/9) into a Go value tree: map[string]interface{},
// []interface{}, string, bool, nil, int16/uint16/int32/uint32/int64/uint64,
// float64, and, for MySQL opaque scalars, decimal.Decimal, time.Duration
// or time.Time.
//
// https://dev.mysql.com/worklog/task/?id=8132#tabs-8132-4
func DecodeJSON(data []byte) (interface{}, error) {
	return decodeJSONValue(data)
}

// MarshalJSON re-encodes a JSON column's binary payload into standard
// textual JSON, using goccy/go-json for the encode step.
func MarshalJSON(data []byte) ([]byte, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return gojson.Marshal(v)
}

const (
	jsonSmallObj byte = iota
	jsonLargeObj
	jsonSmallArr
	jsonLargeArr
	jsonLiteral
	jsonInt16
	jsonUInt16
	jsonInt32
	jsonUInt32
	jsonInt64
	jsonUInt64
	jsonDouble
	jsonString
	jsonCustom = 0x0f
)

func decodeJSONValue(data []byte) (interface{}, error) {
	if len(data) < 1 {
		return nil, wrapError(KindUnexpectedEOF, "json value type byte", io.ErrUnexpectedEOF)
	}
	return decodeJSONValueType(data[0], data[1:])
}

func decodeJSONValueType(typ byte, data []byte) (interface{}, error) {
	switch typ {
	case jsonSmallObj:
		return decodeJSONComposite(data, true, true)
	case jsonLargeObj:
		return decodeJSONComposite(data, false, true)
	case jsonSmallArr:
		return decodeJSONComposite(data, true, false)
	case jsonLargeArr:
		return decodeJSONComposite(data, false, false)
	case jsonLiteral:
		return decodeJSONLiteral(data)
	case jsonInt16:
		v, err := decodeJSONUint16(data)
		return int16(v), err
	case jsonUInt16:
		v, err := decodeJSONUint16(data)
		return v, err
	case jsonInt32:
		v, err := decodeJSONUint32(data)
		return int32(v), err
	case jsonUInt32:
		v, err := decodeJSONUint32(data)
		return v, err
	case jsonInt64:
		v, err := decodeJSONUint64(data)
		return int64(v), err
	case jsonUInt64:
		v, err := decodeJSONUint64(data)
		return v, err
	case jsonDouble:
		v, err := decodeJSONUint64(data)
		return math.Float64frombits(v), err
	case jsonString:
		return decodeJSONString(data)
	case jsonCustom:
		return decodeJSONCustom(data)
	}
	return nil, newError(KindInvalidData, "invalid json value type")
}

func decodeJSONComposite(data []byte, small, obj bool) (interface{}, error) {
	var off int
	readUint := func() (uint32, error) {
		if small {
			v, err := decodeJSONUint16(data[off:])
			off += 2
			return uint32(v), err
		}
		v, err := decodeJSONUint32(data[off:])
		off += 4
		return v, err
	}

	elemCount, err := readUint()
	if err != nil {
		return nil, err
	}
	if _, err := readUint(); err != nil { // total byte size, unused
		return nil, err
	}

	var keys []string
	if obj {
		keys = make([]string, elemCount)
		for i := uint32(0); i < elemCount; i++ {
			keyOff, err := readUint()
			if err != nil {
				return nil, err
			}
			keyLen, err := decodeJSONUint16(data[off:])
			if err != nil {
				return nil, err
			}
			off += 2
			if uint32(len(data)) < keyOff+uint32(keyLen) {
				return nil, wrapError(KindUnexpectedEOF, "json object key", io.ErrUnexpectedEOF)
			}
			keys[i] = string(data[keyOff : keyOff+uint32(keyLen)])
		}
	}

	inline := func(typ byte) bool {
		switch typ {
		case jsonLiteral, jsonInt16, jsonUInt16:
			return true
		case jsonInt32, jsonUInt32:
			return !small
		}
		return false
	}

	vals := make([]interface{}, elemCount)
	for i := uint32(0); i < elemCount; i++ {
		if off >= len(data) {
			return nil, wrapError(KindUnexpectedEOF, "json composite element", io.ErrUnexpectedEOF)
		}
		typ := data[off]
		off++
		if inline(typ) {
			v, err := decodeJSONValueType(typ, data[off:])
			if err != nil {
				return nil, err
			}
			vals[i] = v
			if small {
				off += 2
			} else {
				off += 4
			}
			continue
		}
		valueOff, err := readUint()
		if err != nil {
			return nil, err
		}
		v, err := decodeJSONValueType(typ, data[valueOff:])
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}

	if obj {
		m := make(map[string]interface{}, len(keys))
		for i, key := range keys {
			m[key] = vals[i]
		}
		return m, nil
	}
	return vals, nil
}

func decodeJSONLiteral(data []byte) (interface{}, error) {
	if len(data) < 1 {
		return nil, wrapError(KindUnexpectedEOF, "json literal", io.ErrUnexpectedEOF)
	}
	switch data[0] {
	case 0x00:
		return nil, nil
	case 0x01:
		return true, nil
	case 0x02:
		return false, nil
	}
	return nil, newError(KindInvalidData, "invalid json literal type")
}

func decodeJSONUint16(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, wrapError(KindUnexpectedEOF, "json uint16", io.ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint16(data), nil
}

func decodeJSONUint32(data []byte) (uint32, error) {
	if len(data) < 4 {
		return 0, wrapError(KindUnexpectedEOF, "json uint32", io.ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint32(data), nil
}

func decodeJSONUint64(data []byte) (uint64, error) {
	if len(data) < 8 {
		return 0, wrapError(KindUnexpectedEOF, "json uint64", io.ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint64(data), nil
}

// decodeJSONDataLen reads MySQL's 1-to-5-byte variable-length integer
// (7 payload bits per byte, continuation in the high bit) used for
// string lengths and custom-value sizes within the JSON binary format.
func decodeJSONDataLen(data []byte) (uint64, []byte, error) {
	const maxBytes = 5
	var size uint64
	for i := 0; i < maxBytes; i++ {
		if len(data) == 0 {
			return 0, data, wrapError(KindUnexpectedEOF, "json data length", io.ErrUnexpectedEOF)
		}
		b := data[0]
		data = data[1:]
		size |= uint64(b&0x7F) << uint(7*i)
		if b&0x80 == 0 {
			return size, data, nil
		}
	}
	return 0, nil, newError(KindInvalidData, "json data length encoding too long")
}

func decodeJSONString(data []byte) (string, error) {
	size, rest, err := decodeJSONDataLen(data)
	if err != nil {
		return "", err
	}
	if uint64(len(rest)) < size {
		return "", wrapError(KindUnexpectedEOF, "json string", io.ErrUnexpectedEOF)
	}
	return string(rest[:size]), nil
}

func decodeJSONCustom(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, wrapError(KindUnexpectedEOF, "json custom value", io.ErrUnexpectedEOF)
	}
	typ := ColumnType(data[0])
	data = data[1:]
	size, rest, err := decodeJSONDataLen(data)
	if err != nil {
		return nil, err
	}
	if uint64(len(rest)) < size {
		return nil, wrapError(KindUnexpectedEOF, "json custom payload", io.ErrUnexpectedEOF)
	}
	payload := rest[:size]

	switch typ {
	case TypeNewDecimal:
		if len(payload) < 2 {
			return nil, wrapError(KindUnexpectedEOF, "json opaque decimal", io.ErrUnexpectedEOF)
		}
		precision := int(payload[0])
		scale := int(payload[1])
		return decodeDecimal(payload[2:], precision, scale)
	case TypeTime:
		if len(payload) < 8 {
			return nil, wrapError(KindUnexpectedEOF, "json opaque time", io.ErrUnexpectedEOF)
		}
		v := int64(binary.LittleEndian.Uint64(payload))
		var hour, min, sec, frac int64
		sign := int64(1)
		if v != 0 {
			if v < 0 {
				v, sign = -v, -1
			}
			frac = v % (1 << 24)
			v >>= 24
			hour = (v >> 12) % (1 << 10)
			min = (v >> 6) % (1 << 6)
			sec = v % (1 << 6)
		}
		return time.Duration(sign) * (time.Duration(hour)*time.Hour +
			time.Duration(min)*time.Minute +
			time.Duration(sec)*time.Second +
			time.Duration(frac)*time.Microsecond), nil
	case TypeDate, TypeDateTime, TypeTimestamp:
		if len(payload) < 8 {
			return nil, wrapError(KindUnexpectedEOF, "json opaque temporal", io.ErrUnexpectedEOF)
		}
		v := binary.LittleEndian.Uint64(payload)
		var year, month, day, hour, min, sec, frac uint64
		if v != 0 {
			frac = v % (1 << 24)
			v >>= 24
			ymd := v >> 17
			ym := ymd >> 5
			year, month, day = ym/13, ym%13, ymd%(1<<5)
			hms := v % (1 << 17)
			hour, min, sec = hms>>12, (hms>>6)%(1<<6), hms%(1<<6)
		}
		loc := time.UTC
		if typ == TypeTimestamp {
			loc = time.Local
		}
		return time.Date(int(year), time.Month(month), int(day), int(hour), int(min), int(sec), int(frac*1000), loc), nil
	default:
		return string(payload), nil
	}
}
