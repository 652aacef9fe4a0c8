// Package wire implements a reflection-free, positional binary codec.
// Composite types participate by implementing Marshaler/Unmarshaler and
// forwarding member-by-member through a Serializer/Deserializer chain,
// mirroring how the teacher's cla/tcpclv4 message types implement
// Marshal(io.Writer)/Unmarshal(io.Reader) — except here the codec
// copies native-endian bytes directly with no framing, no versioning,
// and no endian conversion, as the spec requires.
package wire

import (
	"encoding/binary"
)

// Writer is the minimal write side of the buffer adapter the codec
// operates over. *buffer.LinearBuffer and net.Conn both satisfy it.
type Writer interface {
	Write(p []byte) (int, error)
}

// Reader is the minimal read side of the buffer adapter.
type Reader interface {
	Read(p []byte) (int, error)
}

// Marshaler is implemented by composite types that know how to
// serialize themselves member-by-member through a Serializer chain.
type Marshaler interface {
	MarshalWire(s *Serializer) *Serializer
}

// Unmarshaler is the deserialization counterpart of Marshaler.
type Unmarshaler interface {
	UnmarshalWire(d *Deserializer) *Deserializer
}

// Serializer writes primitives as raw native-endian bytes to an
// underlying Writer. Once a write fails, the Serializer becomes a
// no-op for the remainder of the chain: callers detect failure by
// comparing N() to the expected total, or by checking Err().
type Serializer struct {
	w   Writer
	n   int
	err error
}

// NewSerializer wraps w in a Serializer.
func NewSerializer(w Writer) *Serializer {
	return &Serializer{w: w}
}

// Reset clears the byte counter and any sticky error, without
// changing the underlying Writer.
func (s *Serializer) Reset() {
	s.n = 0
	s.err = nil
}

// N returns the number of bytes successfully written so far.
func (s *Serializer) N() int {
	return s.n
}

// Err returns the first error encountered, if any.
func (s *Serializer) Err() error {
	return s.err
}

func (s *Serializer) write(p []byte) {
	if s.err != nil {
		return
	}

	n, err := s.w.Write(p)
	if err != nil {
		s.err = err
		return
	}
	if n != len(p) {
		s.err = errShortWrite
		return
	}

	s.n += n
}

// Uint8 appends a single byte.
func (s *Serializer) Uint8(v uint8) *Serializer {
	s.write([]byte{v})
	return s
}

// Bool appends a boolean as a single byte, 1 for true and 0 for false.
func (s *Serializer) Bool(v bool) *Serializer {
	if v {
		return s.Uint8(1)
	}
	return s.Uint8(0)
}

// Uint16 appends a uint16 as raw native-endian bytes.
func (s *Serializer) Uint16(v uint16) *Serializer {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], v)
	s.write(buf[:])
	return s
}

// Uint32 appends a uint32 as raw native-endian bytes.
func (s *Serializer) Uint32(v uint32) *Serializer {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], v)
	s.write(buf[:])
	return s
}

// Uint64 appends a uint64 as raw native-endian bytes.
func (s *Serializer) Uint64(v uint64) *Serializer {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], v)
	s.write(buf[:])
	return s
}

// Int8 appends an int8 as a single byte.
func (s *Serializer) Int8(v int8) *Serializer {
	return s.Uint8(uint8(v))
}

// Int16 appends an int16 as raw native-endian bytes.
func (s *Serializer) Int16(v int16) *Serializer {
	return s.Uint16(uint16(v))
}

// Int32 appends an int32 as raw native-endian bytes.
func (s *Serializer) Int32(v int32) *Serializer {
	return s.Uint32(uint32(v))
}

// Int64 appends an int64 as raw native-endian bytes.
func (s *Serializer) Int64(v int64) *Serializer {
	return s.Uint64(uint64(v))
}

// Bytes appends a raw byte slice with no length prefix. Callers who
// need the length on the wire must serialize it themselves first.
func (s *Serializer) Bytes(v []byte) *Serializer {
	s.write(v)
	return s
}

// Value forwards to a composite type's own MarshalWire method,
// continuing the same chain.
func (s *Serializer) Value(v Marshaler) *Serializer {
	if s.err != nil {
		return s
	}
	return v.MarshalWire(s)
}

// Deserializer is the read-side counterpart of Serializer.
type Deserializer struct {
	r   Reader
	n   int
	err error
}

// NewDeserializer wraps r in a Deserializer.
func NewDeserializer(r Reader) *Deserializer {
	return &Deserializer{r: r}
}

// Reset clears the byte counter and any sticky error.
func (d *Deserializer) Reset() {
	d.n = 0
	d.err = nil
}

// N returns the number of bytes successfully read so far.
func (d *Deserializer) N() int {
	return d.n
}

// Err returns the first error encountered, if any.
func (d *Deserializer) Err() error {
	return d.err
}

func (d *Deserializer) read(p []byte) {
	if d.err != nil {
		return
	}

	n, err := d.r.Read(p)
	if err != nil {
		d.err = err
		return
	}
	if n != len(p) {
		d.err = errShortRead
		return
	}

	d.n += n
}

// Uint8 reads a single byte into v.
func (d *Deserializer) Uint8(v *uint8) *Deserializer {
	var buf [1]byte
	d.read(buf[:])
	if d.err == nil {
		*v = buf[0]
	}
	return d
}

// Bool reads a single byte into v, true for nonzero.
func (d *Deserializer) Bool(v *bool) *Deserializer {
	var raw uint8
	d.Uint8(&raw)
	if d.err == nil {
		*v = raw != 0
	}
	return d
}

// Uint16 reads a native-endian uint16 into v.
func (d *Deserializer) Uint16(v *uint16) *Deserializer {
	var buf [2]byte
	d.read(buf[:])
	if d.err == nil {
		*v = binary.NativeEndian.Uint16(buf[:])
	}
	return d
}

// Uint32 reads a native-endian uint32 into v.
func (d *Deserializer) Uint32(v *uint32) *Deserializer {
	var buf [4]byte
	d.read(buf[:])
	if d.err == nil {
		*v = binary.NativeEndian.Uint32(buf[:])
	}
	return d
}

// Uint64 reads a native-endian uint64 into v.
func (d *Deserializer) Uint64(v *uint64) *Deserializer {
	var buf [8]byte
	d.read(buf[:])
	if d.err == nil {
		*v = binary.NativeEndian.Uint64(buf[:])
	}
	return d
}

// Int8 reads a single byte into v.
func (d *Deserializer) Int8(v *int8) *Deserializer {
	var raw uint8
	d.Uint8(&raw)
	if d.err == nil {
		*v = int8(raw)
	}
	return d
}

// Int16 reads a native-endian int16 into v.
func (d *Deserializer) Int16(v *int16) *Deserializer {
	var raw uint16
	d.Uint16(&raw)
	if d.err == nil {
		*v = int16(raw)
	}
	return d
}

// Int32 reads a native-endian int32 into v.
func (d *Deserializer) Int32(v *int32) *Deserializer {
	var raw uint32
	d.Uint32(&raw)
	if d.err == nil {
		*v = int32(raw)
	}
	return d
}

// Int64 reads a native-endian int64 into v.
func (d *Deserializer) Int64(v *int64) *Deserializer {
	var raw uint64
	d.Uint64(&raw)
	if d.err == nil {
		*v = int64(raw)
	}
	return d
}

// Bytes reads len(v) bytes into v.
func (d *Deserializer) Bytes(v []byte) *Deserializer {
	d.read(v)
	return d
}

// Value forwards to a composite type's own UnmarshalWire method,
// continuing the same chain.
func (d *Deserializer) Value(v Unmarshaler) *Deserializer {
	if d.err != nil {
		return d
	}
	return v.UnmarshalWire(d)
}
