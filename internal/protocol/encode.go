package protocol

import (
	"encoding/binary"
	"math"
)

// AppendVarInt appends the minimal varint encoding of v. Negative values
// use their two's-complement bit pattern and always take five bytes.
func AppendVarInt(buf []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		buf = append(buf, byte(u)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}

func AppendVarLong(buf []byte, v int64) []byte {
	u := uint64(v)
	for u >= 0x80 {
		buf = append(buf, byte(u)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}

// VarIntSize returns the number of bytes v occupies on the wire.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

func WriteVarInt(s Stream, v int32) error {
	var scratch [MaxVarIntLen]byte
	_, err := s.Write(AppendVarInt(scratch[:0], v))
	return err
}

func WriteVarLong(s Stream, v int64) error {
	var scratch [MaxVarLongLen]byte
	_, err := s.Write(AppendVarLong(scratch[:0], v))
	return err
}

func WriteString(s Stream, v string) error {
	if len(v) > math.MaxInt32 {
		return ErrInvalidLength
	}
	if err := WriteVarInt(s, int32(len(v))); err != nil {
		return err
	}
	_, err := s.Write([]byte(v))
	return err
}

func WriteBool(s Stream, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, err := s.Write([]byte{b})
	return err
}

func WriteUint16(s Stream, v uint16) error {
	_, err := s.Write(binary.BigEndian.AppendUint16(nil, v))
	return err
}

func WriteInt16(s Stream, v int16) error {
	return WriteUint16(s, uint16(v))
}

func WriteUint32(s Stream, v uint32) error {
	_, err := s.Write(binary.BigEndian.AppendUint32(nil, v))
	return err
}

func WriteInt32(s Stream, v int32) error {
	return WriteUint32(s, uint32(v))
}

func WriteUint64(s Stream, v uint64) error {
	_, err := s.Write(binary.BigEndian.AppendUint64(nil, v))
	return err
}

func WriteInt64(s Stream, v int64) error {
	return WriteUint64(s, uint64(v))
}

func WriteFloat32(s Stream, v float32) error {
	return WriteUint32(s, math.Float32bits(v))
}

func WriteFloat64(s Stream, v float64) error {
	return WriteUint64(s, math.Float64bits(v))
}
