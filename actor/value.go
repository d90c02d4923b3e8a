package actor

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// ValueKind discriminates Value's variants.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
)

// Value is the tagged union design §6 defines for column values crossing
// the actor boundary (bind parameters in, result cells out). Its CBOR
// wire form is untagged: whichever bare CBOR major type the held variant
// is, with no envelope — a decoder tells variants apart by major type
// alone, the same way SQLite's own column affinities are self-describing
// on the wire.
type Value struct {
	Kind    ValueKind
	Integer int64
	Real    float64
	Text    string
	Blob    []byte
}

func NullValue() Value             { return Value{Kind: KindNull} }
func IntegerValue(v int64) Value   { return Value{Kind: KindInteger, Integer: v} }
func RealValue(v float64) Value    { return Value{Kind: KindReal, Real: v} }
func TextValue(v string) Value     { return Value{Kind: KindText, Text: v} }
func BlobValue(v []byte) Value     { return Value{Kind: KindBlob, Blob: v} }

// FromSQLValue lifts a sqlengine row cell (an `any` holding int64,
// float64, string, []byte or nil) into a Value.
func FromSQLValue(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case int64:
		return IntegerValue(x)
	case int:
		return IntegerValue(int64(x))
	case float64:
		return RealValue(x)
	case string:
		return TextValue(x)
	case []byte:
		return BlobValue(x)
	case bool:
		if x {
			return IntegerValue(1)
		}
		return IntegerValue(0)
	default:
		return TextValue(fmt.Sprintf("%v", x))
	}
}

// ToSQLValue lowers a Value back into the shape sqlengine expects as a
// bind parameter or literal.
func (v Value) ToSQLValue() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindInteger:
		return v.Integer
	case KindReal:
		return v.Real
	case KindText:
		return v.Text
	case KindBlob:
		return v.Blob
	default:
		return nil
	}
}

// MarshalCBOR writes v's untagged wire form.
func (v Value) MarshalCBOR(w io.Writer) error {
	switch v.Kind {
	case KindNull:
		return writeNull(w)
	case KindInteger:
		return writeInt(w, v.Integer)
	case KindReal:
		return writeFloat(w, v.Real)
	case KindText:
		return writeBytes(w, majTextString, []byte(v.Text))
	case KindBlob:
		return writeBytes(w, majByteString, v.Blob)
	default:
		return fmt.Errorf("actor: unknown Value kind %d", v.Kind)
	}
}

// UnmarshalCBOR reads back whatever MarshalCBOR wrote, picking the
// variant purely from the leading major type.
func (v *Value) UnmarshalCBOR(r io.Reader) error {
	br := toByteReader(r)
	m, n, err := readHeader(br)
	if err != nil {
		return fmt.Errorf("actor: read Value header: %w", err)
	}
	switch m {
	case majUnsignedInt:
		*v = IntegerValue(int64(n))
	case majNegativeInt:
		*v = IntegerValue(-1 - int64(n))
	case majTextString:
		b, err := readBytesOfLen(br, n)
		if err != nil {
			return fmt.Errorf("actor: read Value text: %w", err)
		}
		*v = TextValue(string(b))
	case majByteString:
		b, err := readBytesOfLen(br, n)
		if err != nil {
			return fmt.Errorf("actor: read Value blob: %w", err)
		}
		*v = BlobValue(b)
	case majOther:
		switch n {
		case 22: // null
			*v = NullValue()
		case 20: // false
			*v = IntegerValue(0)
		case 21: // true
			*v = IntegerValue(1)
		case 27: // the 8 trailing bytes readHeader already consumed are float64 bits
			*v = RealValue(math.Float64frombits(n))
		default:
			return fmt.Errorf("actor: unsupported Value encoding (major 7, info %d)", n)
		}
	default:
		return fmt.Errorf("actor: unsupported Value major type %d", m)
	}
	return nil
}

func toByteReader(r io.Reader) byteReader {
	if br, ok := r.(byteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}
