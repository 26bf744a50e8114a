package pe

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding/unicode"
)

func RoundUpToWordAlignment(offset int64) int64 {
	return AlignInt(offset, 4)
}

// MemoryBuffer is an in-memory reader that can also be patched. The
// header views of a PEImage are backed by one.
type MemoryBuffer []byte

func (self MemoryBuffer) ReadAt(buff []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(self)) {
		return 0, io.EOF
	}

	n := copy(buff, self[off:])
	if n < len(buff) {
		return n, io.EOF
	}
	return n, nil
}

func (self MemoryBuffer) WriteAt(buff []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(buff)) > int64(len(self)) {
		return 0, ErrOutOfBounds
	}
	return copy(self[off:], buff), nil
}

func UTF16ToStringLE(in []byte) string {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	utf8, err := decoder.Bytes(in)
	if err != nil {
		return string(in)
	}
	return string(utf8)
}

// Reads length bytes of UTF-16LE text.
func ParseUTF16String(reader io.ReaderAt, offset int64, length int64) string {
	if length <= 0 {
		return ""
	}

	data := make([]byte, length)
	n, _ := reader.ReadAt(data, offset)
	return UTF16ToStringLE(data[:n-n%2])
}

// Reads a UTF-16LE string up to the first null character.
func ParseTerminatedUTF16String(reader io.ReaderAt, offset int64) string {
	data := make([]byte, 1024)
	n, _ := reader.ReadAt(data, offset)
	data = data[:n-n%2]

	for i := 0; i < len(data); i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			return UTF16ToStringLE(data[:i])
		}
	}
	return UTF16ToStringLE(data)
}

func ParseString(reader io.ReaderAt, offset int64, length int64) string {
	if length <= 0 {
		return ""
	}

	data := make([]byte, length)
	n, _ := reader.ReadAt(data, offset)
	return string(data[:n])
}

// Reads at most length bytes, stopping at the first null.
func ParseTerminatedString(reader io.ReaderAt, offset int64, length int64) string {
	data := []byte(ParseString(reader, offset, length))
	idx := bytes.IndexByte(data, 0)
	if idx >= 0 {
		data = data[:idx]
	}
	return string(data)
}

func CapUint32(v uint32, max uint32) uint32 {
	if v > max {
		return max
	}
	return v
}

func CapUint16(v uint16, max uint16) uint16 {
	if v > max {
		return max
	}
	return v
}

func CapInt64(v int64, max int64) int64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
