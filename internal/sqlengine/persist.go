package sqlengine

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

func init() {
	// Row values are stored as `any`; gob must know the concrete types it
	// might find behind that interface when decoding (it already knows
	// them when encoding, from the runtime value).
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register([]byte(nil))
}

// SaveToWriter snapshots the whole catalog as gzip-compressed GOB, the
// same encoding tinySQL's own SaveToFile/SaveToWriter use for their
// *os.File-backed persistence — here the writer is a VFS file instead.
func SaveToWriter(db *DB, w io.Writer) error {
	gz := gzip.NewWriter(w)
	if err := gob.NewEncoder(gz).Encode(db); err != nil {
		return fmt.Errorf("sqlengine: encode snapshot: %w", err)
	}
	return gz.Close()
}

// LoadFromReader is SaveToWriter's inverse.
func LoadFromReader(r io.Reader) (*DB, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("sqlengine: open snapshot: %w", err)
	}
	defer gz.Close()
	db := &DB{}
	if err := gob.NewDecoder(gz).Decode(db); err != nil {
		return nil, fmt.Errorf("sqlengine: decode snapshot: %w", err)
	}
	if db.Tables == nil {
		db.Tables = make(map[string]*Table)
	}
	return db, nil
}

// lengthHeaderSize is the size of the prefix SaveSnapshot writes ahead of
// the gzip stream. The VFS pads its logical file out to whole pages with
// zero bytes, and a gzip trailer can legitimately end in a zero byte, so
// trimming trailing zeros to find the "real" content would be unsound;
// recording the exact length up front removes the ambiguity instead.
const lengthHeaderSize = 8

// SaveSnapshot encodes db as a length-prefixed, gzip-compressed GOB
// stream, ready to be written verbatim into the VFS's logical file.
func SaveSnapshot(db *DB) ([]byte, error) {
	var body bytes.Buffer
	if err := SaveToWriter(db, &body); err != nil {
		return nil, err
	}
	out := make([]byte, lengthHeaderSize+body.Len())
	binary.BigEndian.PutUint64(out[:lengthHeaderSize], uint64(body.Len()))
	copy(out[lengthHeaderSize:], body.Bytes())
	return out, nil
}

// LoadSnapshot is SaveSnapshot's inverse. A nil or empty slice, or one
// whose length header reads as zero, decodes to an empty catalog — a
// freshly constructed actor's VFS file is zero bytes long, and that has
// to mean "no tables yet", not "corrupt".
func LoadSnapshot(data []byte) (*DB, error) {
	if len(data) < lengthHeaderSize {
		return NewDB(), nil
	}
	n := binary.BigEndian.Uint64(data[:lengthHeaderSize])
	if n == 0 {
		return NewDB(), nil
	}
	rest := data[lengthHeaderSize:]
	if uint64(len(rest)) < n {
		return nil, fmt.Errorf("sqlengine: truncated snapshot: want %d bytes, have %d", n, len(rest))
	}
	return LoadFromReader(bytes.NewReader(rest[:n]))
}
