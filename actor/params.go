package actor

import (
	"fmt"
	"io"
)

// The CBOR-tuple param/return types below follow cbor-gen's generated
// convention for Filecoin actor methods: each type marshals as a fixed-
// length CBOR array, one element per field, in declaration order. See
// cbor.go for why these are hand-written rather than generated.

// ConstructorParams carries the owner address bytes (design §C.1's
// supplemented admin surface) alongside spec §4.5's primary constructor
// contract: the raw byte image to build the initial database from, and
// the bucket fan-out to build its PageTree with. An empty DB builds an
// empty database, the same way pagetree.Construct treats a zero-length
// image.
type ConstructorParams struct {
	Owner    []byte
	DB       []byte
	BuckSize uint64
}

func (p ConstructorParams) MarshalCBOR(w io.Writer) error {
	if err := writeArrayHeader(w, 3); err != nil {
		return err
	}
	if err := writeBytes(w, majByteString, p.Owner); err != nil {
		return err
	}
	if err := writeBytes(w, majByteString, p.DB); err != nil {
		return err
	}
	return writeInt(w, int64(p.BuckSize))
}

func (p *ConstructorParams) UnmarshalCBOR(r io.Reader) error {
	br := toByteReader(r)
	if err := expectArrayHeader(br, 3); err != nil {
		return err
	}
	m, n, err := readHeader(br)
	if err != nil {
		return err
	}
	if m != majByteString {
		return fmt.Errorf("actor: ConstructorParams.Owner: expected byte string, got major %d", m)
	}
	owner, err := readBytesOfLen(br, n)
	if err != nil {
		return err
	}
	m, n, err = readHeader(br)
	if err != nil {
		return err
	}
	if m != majByteString {
		return fmt.Errorf("actor: ConstructorParams.DB: expected byte string, got major %d", m)
	}
	db, err := readBytesOfLen(br, n)
	if err != nil {
		return err
	}
	m, n, err = readHeader(br)
	if err != nil {
		return err
	}
	if m != majUnsignedInt {
		return fmt.Errorf("actor: ConstructorParams.BuckSize: expected unsigned int, got major %d", m)
	}
	p.Owner = owner
	p.DB = db
	p.BuckSize = n
	return nil
}

// ExecuteParams holds one or more SQL statements to run against the
// actor's database, each with its own positional bind parameters
// (design §4.3/§6 — a single Execute call may batch statements; the
// batch either fully commits or fully aborts, per §9).
type ExecuteParams struct {
	Statements []StatementParams
}

// StatementParams is one statement in a batch: its SQL text and the
// Values bound to its `?` placeholders in order.
type StatementParams struct {
	SQL    string
	Params []Value
}

func (p ExecuteParams) MarshalCBOR(w io.Writer) error {
	if err := writeArrayHeader(w, 1); err != nil {
		return err
	}
	if err := writeArrayHeader(w, len(p.Statements)); err != nil {
		return err
	}
	for _, s := range p.Statements {
		if err := s.marshalCBOR(w); err != nil {
			return err
		}
	}
	return nil
}

func (s StatementParams) marshalCBOR(w io.Writer) error {
	if err := writeArrayHeader(w, 2); err != nil {
		return err
	}
	if err := writeBytes(w, majTextString, []byte(s.SQL)); err != nil {
		return err
	}
	if err := writeArrayHeader(w, len(s.Params)); err != nil {
		return err
	}
	for _, v := range s.Params {
		if err := v.MarshalCBOR(w); err != nil {
			return err
		}
	}
	return nil
}

func (p *ExecuteParams) UnmarshalCBOR(r io.Reader) error {
	br := toByteReader(r)
	if err := expectArrayHeader(br, 1); err != nil {
		return err
	}
	_, count, err := readHeader(br)
	if err != nil {
		return err
	}
	stmts := make([]StatementParams, 0, count)
	for i := uint64(0); i < count; i++ {
		var s StatementParams
		if err := s.unmarshalCBOR(br); err != nil {
			return fmt.Errorf("actor: ExecuteParams.Statements[%d]: %w", i, err)
		}
		stmts = append(stmts, s)
	}
	p.Statements = stmts
	return nil
}

func (s *StatementParams) unmarshalCBOR(br byteReader) error {
	if err := expectArrayHeader(br, 2); err != nil {
		return err
	}
	m, n, err := readHeader(br)
	if err != nil {
		return err
	}
	if m != majTextString {
		return fmt.Errorf("SQL: expected text string, got major %d", m)
	}
	sqlBytes, err := readBytesOfLen(br, n)
	if err != nil {
		return err
	}
	s.SQL = string(sqlBytes)

	_, pcount, err := readHeader(br)
	if err != nil {
		return err
	}
	params := make([]Value, 0, pcount)
	for i := uint64(0); i < pcount; i++ {
		var v Value
		if err := v.UnmarshalCBOR(br); err != nil {
			return fmt.Errorf("Params[%d]: %w", i, err)
		}
		params = append(params, v)
	}
	s.Params = params
	return nil
}

// ExecuteReturn is the batch's summed row-effect count (spec §6:
// `{effected_rows: usize}`). Execute aborts the whole invocation on the
// first statement that fails (design §9's atomicity), so by the time
// this return value exists every statement in the batch has already
// succeeded — there is no per-statement failure to report alongside it.
type ExecuteReturn struct {
	EffectedRows int64
}

func (p ExecuteReturn) MarshalCBOR(w io.Writer) error {
	if err := writeArrayHeader(w, 1); err != nil {
		return err
	}
	return writeInt(w, p.EffectedRows)
}

func (p *ExecuteReturn) UnmarshalCBOR(r io.Reader) error {
	br := toByteReader(r)
	if err := expectArrayHeader(br, 1); err != nil {
		return err
	}
	m, n, err := readHeader(br)
	if err != nil {
		return err
	}
	switch m {
	case majUnsignedInt:
		p.EffectedRows = int64(n)
	case majNegativeInt:
		p.EffectedRows = -1 - int64(n)
	default:
		return fmt.Errorf("actor: ExecuteReturn.EffectedRows: unexpected major %d", m)
	}
	return nil
}

// QueryParams is a single read-only SELECT with its bind parameters
// (design §4.4 — Query never batches, since its return shape is a
// single result set).
type QueryParams struct {
	SQL    string
	Params []Value
}

func (p QueryParams) MarshalCBOR(w io.Writer) error {
	if err := writeArrayHeader(w, 2); err != nil {
		return err
	}
	if err := writeBytes(w, majTextString, []byte(p.SQL)); err != nil {
		return err
	}
	if err := writeArrayHeader(w, len(p.Params)); err != nil {
		return err
	}
	for _, v := range p.Params {
		if err := v.MarshalCBOR(w); err != nil {
			return err
		}
	}
	return nil
}

func (p *QueryParams) UnmarshalCBOR(r io.Reader) error {
	br := toByteReader(r)
	var s StatementParams
	if err := s.unmarshalCBOR(br); err != nil {
		return err
	}
	p.SQL = s.SQL
	p.Params = s.Params
	return nil
}

// QueryReturn is a SELECT's result set: the projected column names, in
// order, and each row's cells in the same order.
type QueryReturn struct {
	Columns []string
	Rows    [][]Value
}

func (p QueryReturn) MarshalCBOR(w io.Writer) error {
	if err := writeArrayHeader(w, 2); err != nil {
		return err
	}
	if err := writeArrayHeader(w, len(p.Columns)); err != nil {
		return err
	}
	for _, c := range p.Columns {
		if err := writeBytes(w, majTextString, []byte(c)); err != nil {
			return err
		}
	}
	if err := writeArrayHeader(w, len(p.Rows)); err != nil {
		return err
	}
	for _, row := range p.Rows {
		if err := writeArrayHeader(w, len(row)); err != nil {
			return err
		}
		for _, v := range row {
			if err := v.MarshalCBOR(w); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *QueryReturn) UnmarshalCBOR(r io.Reader) error {
	br := toByteReader(r)
	if err := expectArrayHeader(br, 2); err != nil {
		return err
	}
	_, colCount, err := readHeader(br)
	if err != nil {
		return err
	}
	cols := make([]string, 0, colCount)
	for i := uint64(0); i < colCount; i++ {
		m, n, err := readHeader(br)
		if err != nil {
			return err
		}
		if m != majTextString {
			return fmt.Errorf("Columns[%d]: expected text string, got major %d", i, m)
		}
		b, err := readBytesOfLen(br, n)
		if err != nil {
			return err
		}
		cols = append(cols, string(b))
	}
	p.Columns = cols

	_, rowCount, err := readHeader(br)
	if err != nil {
		return err
	}
	rows := make([][]Value, 0, rowCount)
	for i := uint64(0); i < rowCount; i++ {
		_, cellCount, err := readHeader(br)
		if err != nil {
			return err
		}
		row := make([]Value, 0, cellCount)
		for j := uint64(0); j < cellCount; j++ {
			var v Value
			if err := v.UnmarshalCBOR(br); err != nil {
				return fmt.Errorf("Rows[%d][%d]: %w", i, j, err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	p.Rows = rows
	return nil
}

// OwnerReturn is Owner()'s single-field return.
type OwnerReturn struct {
	Owner []byte
}

func (p OwnerReturn) MarshalCBOR(w io.Writer) error {
	if err := writeArrayHeader(w, 1); err != nil {
		return err
	}
	return writeBytes(w, majByteString, p.Owner)
}

func (p *OwnerReturn) UnmarshalCBOR(r io.Reader) error {
	br := toByteReader(r)
	if err := expectArrayHeader(br, 1); err != nil {
		return err
	}
	m, n, err := readHeader(br)
	if err != nil {
		return err
	}
	if m != majByteString {
		return fmt.Errorf("actor: OwnerReturn.Owner: expected byte string, got major %d", m)
	}
	b, err := readBytesOfLen(br, n)
	if err != nil {
		return err
	}
	p.Owner = b
	return nil
}
