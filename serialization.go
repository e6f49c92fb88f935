package hitlist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SERIALIZATION: Shipping TopDocs Between Processes
// ═══════════════════════════════════════════════════════════════════════════════
// Per-segment results are usually merged somewhere else. Every RankedDoc
// carries its sort values, so the merger never needs the segment; the binary
// form keeps those values typed.
//
// FORMAT (little endian):
// -----------------------
// [Header]
//   - Magic: "HLTD"
//   - Version: uint8
//   - Segment: 16 bytes (UUID)
//   - TotalHits: uint32
//   - MaxScore: float64
//   - NumDocs: uint32
//
// [Docs] (for each doc)
//   - Doc: uint32
//   - Score: float64
//   - NumFields: uint32
//   - For each field: [tag: uint8][value]
//
// VALUE TAGS:
// -----------
//
//	0 nil                 (no payload)
//	1 int      → int64    (8 bytes)
//	2 int32               (4 bytes)
//	3 int64               (8 bytes)
//	4 float32             (4 bytes, IEEE 754 bits)
//	5 float64             (8 bytes, IEEE 754 bits)
//	6 string              ([length: uint32][bytes])
//
// EXAMPLE:
// --------
// One hit, doc 7, score 1.5, sorted by (price int32 = 10, <score>):
//
//	"HLTD" [1] [uuid…] [1] [1.5] [1]
//	[7] [1.5] [2] [2][10] [5][1.5]
// ═══════════════════════════════════════════════════════════════════════════════

const (
	topDocsMagic   = "HLTD"
	topDocsVersion = 1
)

const (
	tagNil uint8 = iota
	tagInt
	tagInt32
	tagInt64
	tagFloat32
	tagFloat64
	tagString
)

// MarshalBinary encodes t. Sort values must be nil, int, int32, int64,
// float32, float64 or string; custom sort sources returning anything else
// cannot be encoded.
func (t *TopDocs) MarshalBinary() ([]byte, error) {
	e := &topDocsEncoder{buffer: new(bytes.Buffer)}

	e.buffer.WriteString(topDocsMagic)
	e.buffer.WriteByte(topDocsVersion)
	id := uuid.UUID(t.Segment)
	e.buffer.Write(id[:])
	e.writeUint32(uint32(t.TotalHits))
	e.writeFloat64(t.MaxScore)
	e.writeUint32(uint32(len(t.Docs)))

	for _, d := range t.Docs {
		e.writeUint32(uint32(d.Doc))
		e.writeFloat64(d.Score)
		e.writeUint32(uint32(len(d.Fields)))
		for _, v := range d.Fields {
			if err := e.writeValue(v); err != nil {
				return nil, fmt.Errorf("doc %d: %w", d.Doc, err)
			}
		}
	}
	return e.buffer.Bytes(), nil
}

// UnmarshalBinary decodes data produced by MarshalBinary into t.
func (t *TopDocs) UnmarshalBinary(data []byte) error {
	d := &topDocsDecoder{data: data}

	magic, err := d.read(len(topDocsMagic))
	if err != nil {
		return err
	}
	if string(magic) != topDocsMagic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidTopDocs, magic)
	}
	version, err := d.readUint8()
	if err != nil {
		return err
	}
	if version != topDocsVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidTopDocs, version)
	}

	raw, err := d.read(16)
	if err != nil {
		return err
	}
	var out TopDocs
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: segment id: %w", ErrInvalidTopDocs, err)
	}
	out.Segment = SegmentID(id)

	total, err := d.readUint32()
	if err != nil {
		return err
	}
	out.TotalHits = int(total)
	if out.MaxScore, err = d.readFloat64(); err != nil {
		return err
	}

	n, err := d.readUint32()
	if err != nil {
		return err
	}
	// Each doc takes at least 16 bytes.
	if int(n) > d.remaining()/16 {
		return fmt.Errorf("%w: %d docs do not fit in %d bytes", ErrInvalidTopDocs, n, d.remaining())
	}
	out.Docs = make([]RankedDoc, 0, n)
	for i := 0; i < int(n); i++ {
		doc, err := d.decodeDoc()
		if err != nil {
			return err
		}
		out.Docs = append(out.Docs, doc)
	}
	if d.remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidTopDocs, d.remaining())
	}

	*t = out
	return nil
}

// topDocsEncoder appends to a buffer; bytes.Buffer writes cannot fail.
type topDocsEncoder struct {
	buffer *bytes.Buffer
}

func (e *topDocsEncoder) writeUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buffer.Write(b[:])
}

func (e *topDocsEncoder) writeUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buffer.Write(b[:])
}

func (e *topDocsEncoder) writeFloat64(v float64) {
	e.writeUint64(math.Float64bits(v))
}

func (e *topDocsEncoder) writeValue(v any) error {
	switch v := v.(type) {
	case nil:
		e.buffer.WriteByte(tagNil)
	case int:
		e.buffer.WriteByte(tagInt)
		e.writeUint64(uint64(int64(v)))
	case int32:
		e.buffer.WriteByte(tagInt32)
		e.writeUint32(uint32(v))
	case int64:
		e.buffer.WriteByte(tagInt64)
		e.writeUint64(uint64(v))
	case float32:
		e.buffer.WriteByte(tagFloat32)
		e.writeUint32(math.Float32bits(v))
	case float64:
		e.buffer.WriteByte(tagFloat64)
		e.writeFloat64(v)
	case string:
		e.buffer.WriteByte(tagString)
		e.writeUint32(uint32(len(v)))
		e.buffer.WriteString(v)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

// topDocsDecoder reads from data, tracking the offset. Every read is bounds
// checked so truncated input fails with ErrInvalidTopDocs.
type topDocsDecoder struct {
	data   []byte
	offset int
}

func (d *topDocsDecoder) remaining() int { return len(d.data) - d.offset }

func (d *topDocsDecoder) read(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, fmt.Errorf("%w: truncated at offset %d", ErrInvalidTopDocs, d.offset)
	}
	b := d.data[d.offset : d.offset+n]
	d.offset += n
	return b, nil
}

func (d *topDocsDecoder) readUint8() (uint8, error) {
	b, err := d.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *topDocsDecoder) readUint32() (uint32, error) {
	b, err := d.read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *topDocsDecoder) readUint64() (uint64, error) {
	b, err := d.read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *topDocsDecoder) readFloat64() (float64, error) {
	v, err := d.readUint64()
	return math.Float64frombits(v), err
}

func (d *topDocsDecoder) decodeDoc() (RankedDoc, error) {
	var rd RankedDoc
	doc, err := d.readUint32()
	if err != nil {
		return rd, err
	}
	rd.Doc = int(doc)
	if rd.Score, err = d.readFloat64(); err != nil {
		return rd, err
	}

	n, err := d.readUint32()
	if err != nil {
		return rd, err
	}
	if int(n) > d.remaining() {
		return rd, fmt.Errorf("%w: %d fields do not fit in %d bytes", ErrInvalidTopDocs, n, d.remaining())
	}
	rd.Fields = make([]any, n)
	for i := range rd.Fields {
		if rd.Fields[i], err = d.readValue(); err != nil {
			return rd, err
		}
	}
	return rd, nil
}

func (d *topDocsDecoder) readValue() (any, error) {
	tag, err := d.readUint8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNil:
		return nil, nil
	case tagInt:
		v, err := d.readUint64()
		return int(int64(v)), err
	case tagInt32:
		v, err := d.readUint32()
		return int32(v), err
	case tagInt64:
		v, err := d.readUint64()
		return int64(v), err
	case tagFloat32:
		v, err := d.readUint32()
		return math.Float32frombits(v), err
	case tagFloat64:
		return d.readFloat64()
	case tagString:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		b, err := d.read(int(n))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return nil, fmt.Errorf("%w: unknown value tag %d at offset %d", ErrInvalidTopDocs, tag, d.offset-1)
}
