package actor

// Hand-written CBOR primitives for the actor's wire types, in the style
// whyrusleeping/cbor-gen generates for Filecoin actor parameters: each
// type writes its own major-type bytes directly rather than going
// through a reflection-based encoder, because Value (design §6) is an
// untagged union — its wire form is whichever bare CBOR major type the
// held variant is, with no wrapper, which a reflection-driven encoder
// (go-ipld-cbor's DumpObject, used elsewhere in this actor for State and
// PageTree, which are plain structs) has no way to express. Rather than
// guess at cbor-gen's exact generated call shapes without a working code
// generator to check them against, this writes the same major-type
// bytes by hand — see DESIGN.md for why the dependency itself was
// dropped.

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

type majorType byte

const (
	majUnsignedInt majorType = 0
	majNegativeInt majorType = 1
	majByteString  majorType = 2
	majTextString  majorType = 3
	majArray       majorType = 4
	majOther       majorType = 7
)

const (
	cborNull  = 0xf6
	cborFalse = 0xf4
	cborTrue  = 0xf5
	cborFloat = 0xfb // major 7, additional info 27: float64
)

func writeHeader(w io.Writer, m majorType, n uint64) error {
	b := byte(m) << 5
	switch {
	case n < 24:
		_, err := w.Write([]byte{b | byte(n)})
		return err
	case n <= math.MaxUint8:
		_, err := w.Write([]byte{b | 24, byte(n)})
		return err
	case n <= math.MaxUint16:
		buf := make([]byte, 3)
		buf[0] = b | 25
		binary.BigEndian.PutUint16(buf[1:], uint16(n))
		_, err := w.Write(buf)
		return err
	case n <= math.MaxUint32:
		buf := make([]byte, 5)
		buf[0] = b | 26
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		_, err := w.Write(buf)
		return err
	default:
		buf := make([]byte, 9)
		buf[0] = b | 27
		binary.BigEndian.PutUint64(buf[1:], n)
		_, err := w.Write(buf)
		return err
	}
}

func readHeader(r io.ByteReader) (majorType, uint64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	m := majorType(first >> 5)
	info := first & 0x1f
	switch {
	case info < 24:
		return m, uint64(info), nil
	case info == 24:
		b, err := r.ReadByte()
		return m, uint64(b), err
	case info == 25:
		var buf [2]byte
		for i := range buf {
			b, err := r.ReadByte()
			if err != nil {
				return 0, 0, err
			}
			buf[i] = b
		}
		return m, uint64(binary.BigEndian.Uint16(buf[:])), nil
	case info == 26:
		var buf [4]byte
		for i := range buf {
			b, err := r.ReadByte()
			if err != nil {
				return 0, 0, err
			}
			buf[i] = b
		}
		return m, uint64(binary.BigEndian.Uint32(buf[:])), nil
	case info == 27:
		var buf [8]byte
		for i := range buf {
			b, err := r.ReadByte()
			if err != nil {
				return 0, 0, err
			}
			buf[i] = b
		}
		return m, binary.BigEndian.Uint64(buf[:]), nil
	default:
		return 0, 0, fmt.Errorf("cbor: unsupported additional info %d", info)
	}
}

func writeInt(w io.Writer, v int64) error {
	if v >= 0 {
		return writeHeader(w, majUnsignedInt, uint64(v))
	}
	return writeHeader(w, majNegativeInt, uint64(-v)-1)
}

func writeFloat(w io.Writer, v float64) error {
	buf := make([]byte, 9)
	buf[0] = cborFloat
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v))
	_, err := w.Write(buf)
	return err
}

func writeBytes(w io.Writer, m majorType, b []byte) error {
	if err := writeHeader(w, m, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeNull(w io.Writer) error {
	_, err := w.Write([]byte{cborNull})
	return err
}

func writeArrayHeader(w io.Writer, n int) error {
	return writeHeader(w, majArray, uint64(n))
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

func readBytesOfLen(r byteReader, n uint64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func expectArrayHeader(r byteReader, n int) error {
	m, l, err := readHeader(r)
	if err != nil {
		return err
	}
	if m != majArray || l != uint64(n) {
		return fmt.Errorf("cbor: expected array of length %d, got major %d length %d", n, m, l)
	}
	return nil
}
