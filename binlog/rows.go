package binlog

// dummyTableID is the sentinel table_id MySQL uses for a ROWS_EVENT that
// carries no actual row data (it only exists to release table locks at
// the end of a statement).
const dummyTableID = 0x00ffffff

// RowsEvent captures one batch of inserted, updated, or deleted rows
// against the table named by its TableMap (spec.md 4.4).
type RowsEvent struct {
	EventType EventType
	TableID   uint64
	TableMap  *TableMapEvent
	Flags     uint16

	columnsAfter  []Column
	columnsBefore []Column // only set for UPDATE events

	r *reader
}

func decodeRowsEvent(ctx *LogContext, r *reader, eventType EventType) (*RowsEvent, error) {
	e := &RowsEvent{EventType: eventType, r: r}
	if ctx.postHeaderLength(eventType) == 6 {
		e.TableID = uint64(r.int4())
	} else {
		e.TableID = r.int6()
	}
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "rows_event table id", r.err)
	}

	if e.TableID != dummyTableID {
		tm, err := ctx.lookupTableMap(e.TableID)
		if err != nil {
			return nil, err
		}
		e.TableMap = tm
	}

	e.Flags = r.int2()
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "rows_event flags", r.err)
	}

	switch eventType {
	case WriteRowsEventV2, UpdateRowsEventV2, DeleteRowsEventV2:
		extraDataLen := r.int2()
		if r.err != nil {
			return nil, wrapError(KindUnexpectedEOF, "rows_event extra data length", r.err)
		}
		r.skip(int(extraDataLen) - 2)
	}

	numCol, _, err := r.lenencInt()
	if err != nil {
		return nil, wrapError(KindUnexpectedEOF, "rows_event column count", err)
	}
	if numCol == 0 || e.TableMap == nil {
		e.TableMap = nil // dummy event; NextRow will report io.EOF immediately
	}

	present := r.nullBitmap(numCol)
	if r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "rows_event columns-present bitmap", r.err)
	}
	if e.TableMap != nil {
		for i := 0; i < int(numCol); i++ {
			if present.isSet(i) {
				e.columnsAfter = append(e.columnsAfter, e.TableMap.Columns[i])
			}
		}
	}

	switch eventType {
	case UpdateRowsEventV1, UpdateRowsEventV2:
		presentBefore := r.nullBitmap(numCol)
		if r.err != nil {
			return nil, wrapError(KindUnexpectedEOF, "rows_event before-image bitmap", r.err)
		}
		if e.TableMap != nil {
			for i := 0; i < int(numCol); i++ {
				if presentBefore.isSet(i) {
					e.columnsBefore = append(e.columnsBefore, e.TableMap.Columns[i])
				}
			}
		}
	}

	return e, nil
}

// ColumnsAfter returns the column layout of the row image this event
// carries after the change (the only image for INSERT/DELETE).
func (e *RowsEvent) ColumnsAfter() []Column { return e.columnsAfter }

// ColumnsBefore returns the before-change column layout for UPDATE
// events, or nil for INSERT/DELETE.
func (e *RowsEvent) ColumnsBefore() []Column { return e.columnsBefore }

// Row is one decoded row image: After holds the post-change values
// (insert/delete's only image, or update's new values); Before holds the
// pre-change values for an update, and is nil otherwise.
type Row struct {
	Before []interface{}
	After  []interface{}
}

// Rows decodes every row image carried by this event. Per spec.md 4.4 a
// WRITE/DELETE event contributes one image per row; an UPDATE event
// contributes a before/after pair per row.
func (e *RowsEvent) Rows() ([]Row, error) {
	if e.TableMap == nil {
		return nil, nil
	}
	var rows []Row
	for e.r.more() {
		row, err := e.decodeRow()
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	if e.r.err != nil {
		return rows, wrapError(KindUnexpectedEOF, "rows_event row data", e.r.err)
	}
	return rows, nil
}

func (e *RowsEvent) decodeRow() (Row, error) {
	isUpdate := e.EventType == UpdateRowsEventV1 || e.EventType == UpdateRowsEventV2

	before, err := e.decodeImage(e.columnsBefore, isUpdate)
	if err != nil {
		return Row{}, err
	}
	after, err := e.decodeImage(e.columnsAfter, true)
	if err != nil {
		return Row{}, err
	}
	if isUpdate {
		return Row{Before: before, After: after}, nil
	}
	return Row{After: after}, nil
}

func (e *RowsEvent) decodeImage(cols []Column, present bool) ([]interface{}, error) {
	if !present {
		return nil, nil
	}
	nullValues := e.r.nullBitmap(uint64(len(cols)))
	if e.r.err != nil {
		return nil, wrapError(KindUnexpectedEOF, "row null bitmap", e.r.err)
	}
	values := make([]interface{}, len(cols))
	for i, col := range cols {
		if nullValues.isSet(i) {
			continue
		}
		v, err := col.decodeValue(e.r)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
