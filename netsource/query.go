package netsource

import (
	"errors"
	"fmt"
	"io"
)

// queryResponse holds either an okPacket (DDL/DML with no result set)
// or a *resultSet (SELECT and friends).
type queryResponse interface{}

func (c *Conn) queryRows(q string) ([][]interface{}, error) {
	resp, err := c.query(q)
	if err != nil {
		return nil, err
	}
	rs, ok := resp.(*resultSet)
	if !ok {
		return nil, nil
	}
	return rs.rows()
}

func (c *Conn) query(q string) (queryResponse, error) {
	c.seq = 0
	w := newWriter(c.conn, &c.seq)
	if err := w.query(q); err != nil {
		return nil, err
	}
	r := newReader(&packetReader{rd: c.conn, seq: &c.seq})
	b, err := r.peek()
	if err != nil {
		return nil, err
	}
	switch b {
	case okMarker:
		var ok okPacket
		if err := ok.decode(r); err != nil {
			return nil, err
		}
		return ok, nil
	case errMarker:
		var ep errPacket
		if err := ep.decode(r, c.hs.capabilityFlags); err != nil {
			return nil, err
		}
		return nil, errors.New(ep.errorMessage)
	default:
		var rs resultSet
		if err := rs.decode(r, c.hs.capabilityFlags); err != nil {
			return nil, err
		}
		return &rs, nil
	}
}

// columnDef is a Protocol::ColumnDefinition41 record.
type columnDef struct {
	schema       string
	table        string
	orgTable     string
	name         string
	orgName      string
	charset      uint16
	columnLength uint32
	typ          uint8
	flags        uint16
	decimals     uint8
}

func (cd *columnDef) decode(r *reader, capabilities uint32) error {
	if capabilities&capProtocol41 == 0 {
		return fmt.Errorf("netsource: Protocol::ColumnDefinition320 not implemented")
	}
	_ = r.stringN() // catalog (always "def")
	cd.schema = r.stringN()
	cd.table = r.stringN()
	cd.orgTable = r.stringN()
	cd.name = r.stringN()
	cd.orgName = r.stringN()
	_ = r.intN() // fixed-length fields length, always 0x0c
	cd.charset = r.int2()
	cd.columnLength = r.int4()
	cd.typ = r.int1()
	cd.flags = r.int2()
	cd.decimals = r.int1()
	r.skip(2) // filler
	return r.err
}

// resultSet is a text-protocol Protocol::ColumnCount response: column
// definitions terminated by EOF, then rows terminated by EOF or ERR.
type resultSet struct {
	r            *reader
	capabilities uint32
	columnDefs   []columnDef
}

func (rs *resultSet) decode(r *reader, capabilities uint32) error {
	rs.r, rs.capabilities = r, capabilities

	ncol := r.intN()
	if r.err != nil {
		return r.err
	}
	if r.more() {
		return errMalformedPacket
	}

	for i := uint64(0); i < ncol; i++ {
		r.rd.(*packetReader).reset()
		var cd columnDef
		if err := cd.decode(r, capabilities); err != nil {
			return err
		}
		if r.more() {
			return errMalformedPacket
		}
		rs.columnDefs = append(rs.columnDefs, cd)
	}

	r.rd.(*packetReader).reset()
	var eof eofPacket
	return eof.decode(r)
}

func (rs *resultSet) nextRow() ([]interface{}, error) {
	r := rs.r
	r.rd.(*packetReader).reset()
	b, err := r.peek()
	if err != nil {
		return nil, err
	}
	switch b {
	case eofMarker:
		var eof eofPacket
		if err := eof.decode(r); err != nil {
			return nil, err
		}
		return nil, io.EOF
	case errMarker:
		var ep errPacket
		if err := ep.decode(r, rs.capabilities); err != nil {
			return nil, err
		}
		return nil, errors.New(ep.errorMessage)
	default:
		row := make([]interface{}, len(rs.columnDefs))
		for i := range row {
			b, err := r.peek()
			if err != nil {
				return nil, err
			}
			if b == 0xfb { // SQL NULL sentinel
				row[i] = nil
				r.int1()
				continue
			}
			row[i] = r.stringN()
			if r.err != nil {
				return nil, r.err
			}
		}
		return row, nil
	}
}

func (rs *resultSet) rows() ([][]interface{}, error) {
	var rows [][]interface{}
	for {
		row, err := rs.nextRow()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

func (r *packetReader) reset() {
	r.last = false
	r.size = 0
}
