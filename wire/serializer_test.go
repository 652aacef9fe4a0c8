package wire

import (
	"testing"

	"github.com/dtn7/netcore/buffer"
)

type testData struct {
	ID          uint32
	Temperature int16
	Active      bool
}

func (t *testData) MarshalWire(s *Serializer) *Serializer {
	return s.Uint32(t.ID).Int16(t.Temperature).Bool(t.Active)
}

func (t *testData) UnmarshalWire(d *Deserializer) *Deserializer {
	return d.Uint32(&t.ID).Int16(&t.Temperature).Bool(&t.Active)
}

type inner struct {
	X, Y uint16
}

func (i *inner) MarshalWire(s *Serializer) *Serializer {
	return s.Uint16(i.X).Uint16(i.Y)
}

func (i *inner) UnmarshalWire(d *Deserializer) *Deserializer {
	return d.Uint16(&i.X).Uint16(&i.Y)
}

type outer struct {
	ID       uint32
	Position inner
	Active   bool
}

func (o *outer) MarshalWire(s *Serializer) *Serializer {
	return s.Uint32(o.ID).Value(&o.Position).Bool(o.Active)
}

func (o *outer) UnmarshalWire(d *Deserializer) *Deserializer {
	return d.Uint32(&o.ID).Value(&o.Position).Bool(&o.Active)
}

func TestSerializePrimitiveTypes(t *testing.T) {
	buf := buffer.NewLinearBuffer(1024)
	s := NewSerializer(buf)

	s.Uint8(0x42).Uint16(0x1234).Uint32(0x12345678).Uint64(0x123456789ABCDEF0).
		Int8(-42).Int16(-1234).Int32(-123456).Int64(-123456789)

	want := 1 + 2 + 4 + 8 + 1 + 2 + 4 + 8
	if s.N() != want {
		t.Fatalf("bytes written = %d, want %d", s.N(), want)
	}
	if buf.AvailableData() != want {
		t.Fatalf("buffer holds %d bytes, want %d", buf.AvailableData(), want)
	}
	if s.Err() != nil {
		t.Fatalf("unexpected error: %v", s.Err())
	}
}

func TestDeserializePrimitiveTypes(t *testing.T) {
	buf := buffer.NewLinearBuffer(1024)
	NewSerializer(buf).Uint8(0x42).Uint16(0x1234).Uint32(0x12345678)

	var u8 uint8
	var u16 uint16
	var u32 uint32
	d := NewDeserializer(buf)
	d.Uint8(&u8).Uint16(&u16).Uint32(&u32)

	if u8 != 0x42 || u16 != 0x1234 || u32 != 0x12345678 {
		t.Fatalf("got (%x, %x, %x)", u8, u16, u32)
	}
	if d.N() != 1+2+4 {
		t.Fatalf("bytes read = %d, want %d", d.N(), 7)
	}
	if buf.AvailableData() != 0 {
		t.Fatalf("buffer should be drained, has %d bytes left", buf.AvailableData())
	}
}

func TestSerializeDeserializeBool(t *testing.T) {
	buf := buffer.NewLinearBuffer(64)
	NewSerializer(buf).Bool(true).Bool(false)

	var a, b bool
	NewDeserializer(buf).Bool(&a).Bool(&b)

	if !a || b {
		t.Fatalf("got a=%v b=%v, want a=true b=false", a, b)
	}
}

func TestSerializeUserDefinedStruct(t *testing.T) {
	buf := buffer.NewLinearBuffer(64)
	in := testData{ID: 42, Temperature: -15, Active: true}
	NewSerializer(buf).Value(&in)

	var out testData
	NewDeserializer(buf).Value(&out)

	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestNestedStructs(t *testing.T) {
	buf := buffer.NewLinearBuffer(64)
	in := outer{ID: 100, Position: inner{X: 50, Y: 75}, Active: true}
	NewSerializer(buf).Value(&in)

	var out outer
	NewDeserializer(buf).Value(&out)

	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestSerializerReset(t *testing.T) {
	buf := buffer.NewLinearBuffer(64)
	s := NewSerializer(buf)
	s.Uint32(0x12345678)

	if s.N() != 4 {
		t.Fatalf("bytes written = %d, want 4", s.N())
	}

	s.Reset()
	if s.N() != 0 {
		t.Fatalf("bytes written after reset = %d, want 0", s.N())
	}
}

func TestInsufficientBufferSpace(t *testing.T) {
	buf := buffer.NewLinearBuffer(4)
	s := NewSerializer(buf)

	s.Uint32(0x12345678)
	if s.N() != 4 || s.Err() != nil {
		t.Fatalf("first write should succeed cleanly, got n=%d err=%v", s.N(), s.Err())
	}

	s.Uint32(0x87654321)
	if s.N() != 4 {
		t.Fatalf("bytes written after failed write = %d, want unchanged 4", s.N())
	}
	if s.Err() == nil {
		t.Fatal("expected sticky error after overflow")
	}
}

func TestInsufficientDataForDeserialization(t *testing.T) {
	buf := buffer.NewLinearBuffer(64)
	NewSerializer(buf).Uint32(0x12345678)

	d := NewDeserializer(buf)
	var v1, v2 uint32
	d.Uint32(&v1)
	if v1 != 0x12345678 || d.N() != 4 {
		t.Fatalf("first read should succeed, got v1=%x n=%d", v1, d.N())
	}

	d.Uint32(&v2)
	if d.N() != 4 {
		t.Fatalf("bytes read after failed read = %d, want unchanged 4", d.N())
	}
	if d.Err() == nil {
		t.Fatal("expected sticky error after underflow")
	}
}

// TestSER1RoundTrip is the property from spec §8: deserialize(serialize(v)) == v.
func TestSER1RoundTrip(t *testing.T) {
	values := []testData{
		{ID: 0, Temperature: 0, Active: false},
		{ID: 1, Temperature: -1, Active: true},
		{ID: 0xFFFFFFFF, Temperature: 32767, Active: true},
	}

	for _, v := range values {
		buf := buffer.NewLinearBuffer(64)
		NewSerializer(buf).Value(&v)

		var out testData
		NewDeserializer(buf).Value(&out)

		if out != v {
			t.Fatalf("round trip = %+v, want %+v", out, v)
		}
	}
}
