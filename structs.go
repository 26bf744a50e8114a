package pe

// On-disk resource directory structures. Unlike the header views
// these are decoded into values: the rebuild engine keeps them in its
// bookkeeping list, patches them and encodes them back.
//
// https://learn.microsoft.com/en-us/windows/win32/debug/pe-format#the-rsrc-section

import (
	"encoding/binary"
)

const (
	SIZEOF_IMAGE_RESOURCE_DIRECTORY       = 16
	SIZEOF_IMAGE_RESOURCE_DIRECTORY_ENTRY = 8
	SIZEOF_IMAGE_RESOURCE_DATA_ENTRY      = 16

	resourceHighBit = 0x80000000
)

// ResourceStructure is implemented by the three structure types that
// make up a resource directory.
type ResourceStructure interface {
	Size() int
	Encode() []byte
}

type IMAGE_RESOURCE_DIRECTORY struct {
	Characteristics      uint32
	TimeDateStamp        uint32
	MajorVersion         uint16
	MinorVersion         uint16
	NumberOfNamedEntries uint16
	NumberOfIdEntries    uint16
}

func (self *IMAGE_RESOURCE_DIRECTORY) Size() int {
	return SIZEOF_IMAGE_RESOURCE_DIRECTORY
}

func (self *IMAGE_RESOURCE_DIRECTORY) NumberOfEntries() int {
	return int(self.NumberOfNamedEntries) + int(self.NumberOfIdEntries)
}

func (self *IMAGE_RESOURCE_DIRECTORY) Encode() []byte {
	data := make([]byte, SIZEOF_IMAGE_RESOURCE_DIRECTORY)
	binary.LittleEndian.PutUint32(data[0:], self.Characteristics)
	binary.LittleEndian.PutUint32(data[4:], self.TimeDateStamp)
	binary.LittleEndian.PutUint16(data[8:], self.MajorVersion)
	binary.LittleEndian.PutUint16(data[10:], self.MinorVersion)
	binary.LittleEndian.PutUint16(data[12:], self.NumberOfNamedEntries)
	binary.LittleEndian.PutUint16(data[14:], self.NumberOfIdEntries)
	return data
}

func DecodeResourceDirectory(data []byte, offset int64) (*IMAGE_RESOURCE_DIRECTORY, error) {
	buf, err := structureBytes(data, offset, SIZEOF_IMAGE_RESOURCE_DIRECTORY,
		"IMAGE_RESOURCE_DIRECTORY")
	if err != nil {
		return nil, err
	}

	return &IMAGE_RESOURCE_DIRECTORY{
		Characteristics:      binary.LittleEndian.Uint32(buf[0:]),
		TimeDateStamp:        binary.LittleEndian.Uint32(buf[4:]),
		MajorVersion:         binary.LittleEndian.Uint16(buf[8:]),
		MinorVersion:         binary.LittleEndian.Uint16(buf[10:]),
		NumberOfNamedEntries: binary.LittleEndian.Uint16(buf[12:]),
		NumberOfIdEntries:    binary.LittleEndian.Uint16(buf[14:]),
	}, nil
}

type IMAGE_RESOURCE_DIRECTORY_ENTRY struct {
	Name         uint32
	OffsetToData uint32
}

func (self *IMAGE_RESOURCE_DIRECTORY_ENTRY) Size() int {
	return SIZEOF_IMAGE_RESOURCE_DIRECTORY_ENTRY
}

func (self *IMAGE_RESOURCE_DIRECTORY_ENTRY) NameIsString() bool {
	return self.Name&resourceHighBit != 0
}

// Offset of the length prefixed name, relative to the resource directory.
func (self *IMAGE_RESOURCE_DIRECTORY_ENTRY) NameOffset() uint32 {
	return self.Name &^ resourceHighBit
}

func (self *IMAGE_RESOURCE_DIRECTORY_ENTRY) Id() uint16 {
	return uint16(self.Name)
}

func (self *IMAGE_RESOURCE_DIRECTORY_ENTRY) DataIsDirectory() bool {
	return self.OffsetToData&resourceHighBit != 0
}

// Offset of the subdirectory or data entry, relative to the resource
// directory.
func (self *IMAGE_RESOURCE_DIRECTORY_ENTRY) OffsetToDirectory() uint32 {
	return self.OffsetToData &^ resourceHighBit
}

func (self *IMAGE_RESOURCE_DIRECTORY_ENTRY) Encode() []byte {
	data := make([]byte, SIZEOF_IMAGE_RESOURCE_DIRECTORY_ENTRY)
	binary.LittleEndian.PutUint32(data[0:], self.Name)
	binary.LittleEndian.PutUint32(data[4:], self.OffsetToData)
	return data
}

func DecodeResourceDirectoryEntry(data []byte, offset int64) (*IMAGE_RESOURCE_DIRECTORY_ENTRY, error) {
	buf, err := structureBytes(data, offset, SIZEOF_IMAGE_RESOURCE_DIRECTORY_ENTRY,
		"IMAGE_RESOURCE_DIRECTORY_ENTRY")
	if err != nil {
		return nil, err
	}

	return &IMAGE_RESOURCE_DIRECTORY_ENTRY{
		Name:         binary.LittleEndian.Uint32(buf[0:]),
		OffsetToData: binary.LittleEndian.Uint32(buf[4:]),
	}, nil
}

type IMAGE_RESOURCE_DATA_ENTRY struct {
	// This is an RVA, not an offset into the resource directory.
	OffsetToData uint32
	DataSize     uint32
	CodePage     uint32
	Reserved     uint32
}

func (self *IMAGE_RESOURCE_DATA_ENTRY) Size() int {
	return SIZEOF_IMAGE_RESOURCE_DATA_ENTRY
}

func (self *IMAGE_RESOURCE_DATA_ENTRY) Encode() []byte {
	data := make([]byte, SIZEOF_IMAGE_RESOURCE_DATA_ENTRY)
	binary.LittleEndian.PutUint32(data[0:], self.OffsetToData)
	binary.LittleEndian.PutUint32(data[4:], self.DataSize)
	binary.LittleEndian.PutUint32(data[8:], self.CodePage)
	binary.LittleEndian.PutUint32(data[12:], self.Reserved)
	return data
}

func DecodeResourceDataEntry(data []byte, offset int64) (*IMAGE_RESOURCE_DATA_ENTRY, error) {
	buf, err := structureBytes(data, offset, SIZEOF_IMAGE_RESOURCE_DATA_ENTRY,
		"IMAGE_RESOURCE_DATA_ENTRY")
	if err != nil {
		return nil, err
	}

	return &IMAGE_RESOURCE_DATA_ENTRY{
		OffsetToData: binary.LittleEndian.Uint32(buf[0:]),
		DataSize:     binary.LittleEndian.Uint32(buf[4:]),
		CodePage:     binary.LittleEndian.Uint32(buf[8:]),
		Reserved:     binary.LittleEndian.Uint32(buf[12:]),
	}, nil
}

// Decodes the uint16 length prefixed UTF-16 name at offset.
func DecodeResourceName(data []byte, offset int64) (string, error) {
	buf, err := structureBytes(data, offset, 2, "resource name length")
	if err != nil {
		return "", err
	}

	length := int64(binary.LittleEndian.Uint16(buf))
	if length > MAX_RESOURCE_NAME_LENGTH {
		return "", newParseError(offset, nil,
			"resource name too long (%d characters)", length)
	}

	buf, err = structureBytes(data, offset+2, length*2, "resource name")
	if err != nil {
		return "", err
	}
	return UTF16ToStringLE(buf), nil
}

// The bytes taken by a decoded name, including its length prefix.
func resourceNameSize(data []byte, offset int64) int64 {
	return 2 + 2*int64(binary.LittleEndian.Uint16(data[offset:]))
}

func structureBytes(data []byte, offset int64, size int64, what string) ([]byte, error) {
	if offset < 0 || size < 0 || offset+size > int64(len(data)) {
		return nil, newParseError(offset, ErrOutOfBounds,
			"%s needs %d bytes, image is %d bytes", what, size, len(data))
	}
	return data[offset : offset+size], nil
}
