package binlog

import (
	"encoding/binary"
)

// TableMapEvent maps a numeric table_id to a schema/table name and column
// layout, and always precedes the ROWS_EVENTs that reference it within a
// statement (spec.md 4.4).
type TableMapEvent struct {
	TableID    uint64
	Flags      uint16
	SchemaName string
	TableName  string
	Columns    []Column
}

func decodeTableMapEvent(ctx *LogContext, r *reader) (*TableMapEvent, error) {
	e := &TableMapEvent{}
	e.TableID = r.int6()
	e.Flags = r.int2()
	r.int1() // schema name length; redundant with the NUL terminator
	e.SchemaName = r.stringNull()
	r.int1() // table name length; redundant with the NUL terminator
	e.TableName = r.stringNull()
	numCol, _, err := r.lenencInt()
	if err != nil {
		return nil, wrapError(KindUnexpectedEOF, "table_map_event header", err)
	}

	e.Columns = make([]Column, numCol)
	for i := range e.Columns {
		e.Columns[i].Ordinal = i
		e.Columns[i].Type = ColumnType(r.int1())
	}
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "table_map_event column types", r.err)
	}

	r.lenencInt() // total metadata byte length; each column's own Meta width is type-determined
	for i := range e.Columns {
		switch e.Columns[i].Type {
		case TypeBlob, TypeDouble, TypeFloat, TypeGeometry, TypeJSON,
			TypeTime2, TypeDateTime2, TypeTimestamp2:
			e.Columns[i].Meta = uint16(r.int1())
		case TypeVarchar, TypeBit, TypeDecimal, TypeNewDecimal,
			TypeSet, TypeEnum, TypeVarString:
			e.Columns[i].Meta = r.int2()
		case TypeString:
			meta := r.bytes(2)
			if r.err != nil {
				break
			}
			m := binary.BigEndian.Uint16(meta)
			if m >= 256 {
				b0, b1 := meta[0], meta[1]
				if b0&0x30 != 0x30 {
					e.Columns[i].Meta = uint16(b1) | (uint16((b0&0x30)^0x30) << 4)
					e.Columns[i].Type = ColumnType(b0 | 0x30)
				} else {
					e.Columns[i].Meta = uint16(b1)
					e.Columns[i].Type = ColumnType(b0)
				}
			} else {
				e.Columns[i].Meta = m
			}
		}
	}
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "table_map_event column metadata", r.err)
	}

	nullable := r.nullBitmap(numCol)
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "table_map_event nullability bitmap", r.err)
	}
	for i := range e.Columns {
		e.Columns[i].Nullable = nullable.isSet(i)
	}

	// Extended table metadata (optional, present when binlog_row_metadata
	// is set to FULL): https://dev.mysql.com/worklog/task/?id=4618
	for r.more() {
		typ := r.int1()
		size64, _, lerr := r.lenencInt()
		size := int(size64)
		if r.err != nil || lerr != nil {
			break
		}
		switch typ {
		case 1: // UNSIGNED flag of numeric columns
			unsigned := r.bytesInternal(size)
			inum := 0
			for i := range e.Columns {
				if e.Columns[i].Type.isNumeric() {
					e.Columns[i].Unsigned = unsigned[inum/8]&(1<<uint(7-inum%8)) != 0
					inum++
				}
			}
		case 2: // default charset of string columns
			if err := e.decodeDefaultCharset(r, size, ColumnType.isString); err != nil {
				return nil, err
			}
		case 3: // per-column charset of string columns
			if err := e.decodeCharset(r, size, ColumnType.isString); err != nil {
				return nil, err
			}
		case 4: // column names
			for i := range e.Columns {
				e.Columns[i].Name = r.stringN()
			}
		case 5: // SET member names
			if err := e.decodeValues(r, size, TypeSet); err != nil {
				return nil, err
			}
		case 6: // ENUM member names
			if err := e.decodeValues(r, size, TypeEnum); err != nil {
				return nil, err
			}
		case 10: // ENUM/SET default charset
			if err := e.decodeDefaultCharset(r, size, ColumnType.isEnumSet); err != nil {
				return nil, err
			}
		case 11: // ENUM/SET per-column charset
			if err := e.decodeCharset(r, size, ColumnType.isEnumSet); err != nil {
				return nil, err
			}
		default:
			// 7 geometry type, 8/9 primary key, 12 column visibility:
			// none of these affect value decoding, skip the raw bytes.
			r.skip(size)
		}
	}
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "table_map_event extended metadata", r.err)
	}

	ctx.tableMaps[e.TableID] = e
	return e, nil
}

func (e *TableMapEvent) decodeDefaultCharset(r *reader, size int, matches func(ColumnType) bool) error {
	defCharset, n := r.intPacked()
	size -= n
	for size > 0 {
		ord, n := r.intPacked()
		size -= n
		charset, n := r.intPacked()
		size -= n
		if r.err != nil {
			return wrapError(KindUnexpectedEOF, "table_map_event default charset", r.err)
		}
		e.Columns[ord].Charset = charset
	}
	if size != 0 {
		return newError(KindInvalidData, "table_map_event default charset block size mismatch")
	}
	for i := range e.Columns {
		if matches(e.Columns[i].Type) && e.Columns[i].Charset == 0 {
			e.Columns[i].Charset = defCharset
		}
	}
	return nil
}

func (e *TableMapEvent) decodeCharset(r *reader, size int, matches func(ColumnType) bool) error {
	for i := range e.Columns {
		if matches(e.Columns[i].Type) {
			charset, n := r.intPacked()
			e.Columns[i].Charset = charset
			size -= n
			if r.err != nil {
				return wrapError(KindUnexpectedEOF, "table_map_event column charset", r.err)
			}
		}
	}
	if size != 0 {
		return newError(KindInvalidData, "table_map_event column charset block size mismatch")
	}
	return nil
}

func (e *TableMapEvent) decodeValues(r *reader, size int, typ ColumnType) error {
	icol := 0
	for size > 0 {
		nVal, n := r.intPacked()
		size -= n
		if r.err != nil {
			return wrapError(KindUnexpectedEOF, "table_map_event enum/set values", r.err)
		}
		vals := make([]string, nVal)
		for i := range vals {
			l, n := r.intPacked()
			size -= n
			vals[i] = r.string(int(l))
			size -= int(l)
			if r.err != nil {
				return wrapError(KindUnexpectedEOF, "table_map_event enum/set value", r.err)
			}
		}
		for icol < len(e.Columns) && e.Columns[icol].Type != typ {
			icol++
		}
		if icol >= len(e.Columns) {
			return newError(KindInvalidData, "table_map_event enum/set values exceed column count")
		}
		e.Columns[icol].Values = vals
		icol++
	}
	if size != 0 {
		return newError(KindInvalidData, "table_map_event enum/set values block size mismatch")
	}
	return nil
}
