package protocol

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

const (
	MaxVarIntLen  = 5
	MaxVarLongLen = 10

	// DefaultMaxStringLen is the protocol-wide ceiling in characters.
	DefaultMaxStringLen = 32767
)

func ReadVarInt(s Stream) (int32, error) {
	var result uint32
	for i := 0; ; i++ {
		if i >= MaxVarIntLen {
			return 0, ErrVarIntTooBig
		}
		b, err := s.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int32(result), nil
		}
	}
}

func ReadVarLong(s Stream) (int64, error) {
	var result uint64
	for i := 0; ; i++ {
		if i >= MaxVarLongLen {
			return 0, ErrVarLongTooBig
		}
		b, err := s.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int64(result), nil
		}
	}
}

// ReadString reads a varint byte length followed by UTF-8 bytes. maxChars
// bounds the decoded character count; zero means DefaultMaxStringLen.
func ReadString(s Stream, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxStringLen
	}
	n, err := ReadVarInt(s)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", ErrInvalidLength
	}
	if int(n) > maxChars*utf8.UTFMax {
		return "", ErrStringTooLong
	}
	raw, err := s.ReadExact(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", ErrInvalidEncoding
	}
	if utf8.RuneCount(raw) > maxChars {
		return "", ErrStringTooLong
	}
	return string(raw), nil
}

func ReadBool(s Stream) (bool, error) {
	b, err := s.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func ReadUint16(s Stream) (uint16, error) {
	b, err := s.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func ReadInt16(s Stream) (int16, error) {
	v, err := ReadUint16(s)
	return int16(v), err
}

func ReadUint32(s Stream) (uint32, error) {
	b, err := s.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func ReadInt32(s Stream) (int32, error) {
	v, err := ReadUint32(s)
	return int32(v), err
}

func ReadUint64(s Stream) (uint64, error) {
	b, err := s.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func ReadInt64(s Stream) (int64, error) {
	v, err := ReadUint64(s)
	return int64(v), err
}

func ReadFloat32(s Stream) (float32, error) {
	v, err := ReadUint32(s)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func ReadFloat64(s Stream) (float64, error) {
	v, err := ReadUint64(s)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}
