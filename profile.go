package pe

// Fixed layout views over PE structures. Each view is a cheap handle
// (reader, offset, profile); fields are decoded on access. Header
// views are backed by an in-memory copy of the header region so that
// the setters can patch them in place.

import (
	"encoding/binary"
	"io"
)

type PeProfile struct {
	Off_IMAGE_DOS_HEADER_E_magic  int64
	Off_IMAGE_DOS_HEADER_E_lfanew int64

	Off_IMAGE_NT_HEADERS_Signature      int64
	Off_IMAGE_NT_HEADERS_FileHeader     int64
	Off_IMAGE_NT_HEADERS_OptionalHeader int64

	Off_IMAGE_FILE_HEADER_Machine              int64
	Off_IMAGE_FILE_HEADER_NumberOfSections     int64
	Off_IMAGE_FILE_HEADER_TimeDateStamp        int64
	Off_IMAGE_FILE_HEADER_SizeOfOptionalHeader int64
	Off_IMAGE_FILE_HEADER_Characteristics      int64

	Off_IMAGE_OPTIONAL_HEADER_Magic               int64
	Off_IMAGE_OPTIONAL_HEADER_ImageBase           int64
	Off_IMAGE_OPTIONAL_HEADER_SectionAlignment    int64
	Off_IMAGE_OPTIONAL_HEADER_FileAlignment       int64
	Off_IMAGE_OPTIONAL_HEADER_SizeOfImage         int64
	Off_IMAGE_OPTIONAL_HEADER_SizeOfHeaders       int64
	Off_IMAGE_OPTIONAL_HEADER_CheckSum            int64
	Off_IMAGE_OPTIONAL_HEADER_NumberOfRvaAndSizes int64
	Off_IMAGE_OPTIONAL_HEADER_DataDirectory       int64

	Off_IMAGE_OPTIONAL_HEADER64_ImageBase           int64
	Off_IMAGE_OPTIONAL_HEADER64_NumberOfRvaAndSizes int64
	Off_IMAGE_OPTIONAL_HEADER64_DataDirectory       int64

	Off_IMAGE_DATA_DIRECTORY_VirtualAddress int64
	Off_IMAGE_DATA_DIRECTORY_Size           int64

	Off_IMAGE_SECTION_HEADER_Name             int64
	Off_IMAGE_SECTION_HEADER_VirtualSize      int64
	Off_IMAGE_SECTION_HEADER_VirtualAddress   int64
	Off_IMAGE_SECTION_HEADER_SizeOfRawData    int64
	Off_IMAGE_SECTION_HEADER_PointerToRawData int64
	Off_IMAGE_SECTION_HEADER_Characteristics  int64

	Off_WIN_CERTIFICATE_Length          int64
	Off_WIN_CERTIFICATE_Revision        int64
	Off_WIN_CERTIFICATE_CertificateType int64
	Off_WIN_CERTIFICATE_Certificate     int64

	Off_VS_VERSIONINFO_Length      int64
	Off_VS_VERSIONINFO_ValueLength int64
	Off_VS_VERSIONINFO_Type        int64
	Off_VS_VERSIONINFO_szKey       int64

	Off_TagVS_FIXEDFILEINFO_Signature        int64
	Off_TagVS_FIXEDFILEINFO_FileVersionMS    int64
	Off_TagVS_FIXEDFILEINFO_FileVersionLS    int64
	Off_TagVS_FIXEDFILEINFO_ProductVersionMS int64
	Off_TagVS_FIXEDFILEINFO_ProductVersionLS int64

	Off_MESSAGE_RESOURCE_DATA_NumberOfBlocks int64
	Off_MESSAGE_RESOURCE_DATA__Blocks        int64

	Off_MESSAGE_RESOURCE_BLOCK_LowId           int64
	Off_MESSAGE_RESOURCE_BLOCK_HighId          int64
	Off_MESSAGE_RESOURCE_BLOCK_OffsetToEntries int64

	Off_MESSAGE_RESOURCE_ENTRY_Length int64
	Off_MESSAGE_RESOURCE_ENTRY_Flags  int64
	Off_MESSAGE_RESOURCE_ENTRY_Text   int64
}

func NewPeProfile() *PeProfile {
	return &PeProfile{
		Off_IMAGE_DOS_HEADER_E_magic:  0,
		Off_IMAGE_DOS_HEADER_E_lfanew: 0x3c,

		Off_IMAGE_NT_HEADERS_Signature:      0,
		Off_IMAGE_NT_HEADERS_FileHeader:     4,
		Off_IMAGE_NT_HEADERS_OptionalHeader: 24,

		Off_IMAGE_FILE_HEADER_Machine:              0,
		Off_IMAGE_FILE_HEADER_NumberOfSections:     2,
		Off_IMAGE_FILE_HEADER_TimeDateStamp:        4,
		Off_IMAGE_FILE_HEADER_SizeOfOptionalHeader: 16,
		Off_IMAGE_FILE_HEADER_Characteristics:      18,

		Off_IMAGE_OPTIONAL_HEADER_Magic:               0,
		Off_IMAGE_OPTIONAL_HEADER_ImageBase:           28,
		Off_IMAGE_OPTIONAL_HEADER_SectionAlignment:    32,
		Off_IMAGE_OPTIONAL_HEADER_FileAlignment:       36,
		Off_IMAGE_OPTIONAL_HEADER_SizeOfImage:         56,
		Off_IMAGE_OPTIONAL_HEADER_SizeOfHeaders:       60,
		Off_IMAGE_OPTIONAL_HEADER_CheckSum:            64,
		Off_IMAGE_OPTIONAL_HEADER_NumberOfRvaAndSizes: 92,
		Off_IMAGE_OPTIONAL_HEADER_DataDirectory:       96,

		Off_IMAGE_OPTIONAL_HEADER64_ImageBase:           24,
		Off_IMAGE_OPTIONAL_HEADER64_NumberOfRvaAndSizes: 108,
		Off_IMAGE_OPTIONAL_HEADER64_DataDirectory:       112,

		Off_IMAGE_DATA_DIRECTORY_VirtualAddress: 0,
		Off_IMAGE_DATA_DIRECTORY_Size:           4,

		Off_IMAGE_SECTION_HEADER_Name:             0,
		Off_IMAGE_SECTION_HEADER_VirtualSize:      8,
		Off_IMAGE_SECTION_HEADER_VirtualAddress:   12,
		Off_IMAGE_SECTION_HEADER_SizeOfRawData:    16,
		Off_IMAGE_SECTION_HEADER_PointerToRawData: 20,
		Off_IMAGE_SECTION_HEADER_Characteristics:  36,

		Off_WIN_CERTIFICATE_Length:          0,
		Off_WIN_CERTIFICATE_Revision:        4,
		Off_WIN_CERTIFICATE_CertificateType: 6,
		Off_WIN_CERTIFICATE_Certificate:     8,

		Off_VS_VERSIONINFO_Length:      0,
		Off_VS_VERSIONINFO_ValueLength: 2,
		Off_VS_VERSIONINFO_Type:        4,
		Off_VS_VERSIONINFO_szKey:       6,

		Off_TagVS_FIXEDFILEINFO_Signature:        0,
		Off_TagVS_FIXEDFILEINFO_FileVersionMS:    8,
		Off_TagVS_FIXEDFILEINFO_FileVersionLS:    12,
		Off_TagVS_FIXEDFILEINFO_ProductVersionMS: 16,
		Off_TagVS_FIXEDFILEINFO_ProductVersionLS: 20,

		Off_MESSAGE_RESOURCE_DATA_NumberOfBlocks: 0,
		Off_MESSAGE_RESOURCE_DATA__Blocks:        4,

		Off_MESSAGE_RESOURCE_BLOCK_LowId:           0,
		Off_MESSAGE_RESOURCE_BLOCK_HighId:          4,
		Off_MESSAGE_RESOURCE_BLOCK_OffsetToEntries: 8,

		Off_MESSAGE_RESOURCE_ENTRY_Length: 0,
		Off_MESSAGE_RESOURCE_ENTRY_Flags:  2,
		Off_MESSAGE_RESOURCE_ENTRY_Text:   4,
	}
}

type IMAGE_DOS_HEADER struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) IMAGE_DOS_HEADER(reader io.ReaderAt, offset int64) *IMAGE_DOS_HEADER {
	return &IMAGE_DOS_HEADER{Reader: reader, Offset: offset, Profile: self}
}

func (self *IMAGE_DOS_HEADER) E_magic() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_IMAGE_DOS_HEADER_E_magic+self.Offset)
}

func (self *IMAGE_DOS_HEADER) E_lfanew() int32 {
	return int32(ParseUint32(self.Reader, self.Profile.Off_IMAGE_DOS_HEADER_E_lfanew+self.Offset))
}

type IMAGE_NT_HEADERS struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) IMAGE_NT_HEADERS(reader io.ReaderAt, offset int64) *IMAGE_NT_HEADERS {
	return &IMAGE_NT_HEADERS{Reader: reader, Offset: offset, Profile: self}
}

func (self *IMAGE_NT_HEADERS) Signature() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_NT_HEADERS_Signature+self.Offset)
}

func (self *IMAGE_NT_HEADERS) FileHeader() *IMAGE_FILE_HEADER {
	return self.Profile.IMAGE_FILE_HEADER(self.Reader,
		self.Profile.Off_IMAGE_NT_HEADERS_FileHeader+self.Offset)
}

func (self *IMAGE_NT_HEADERS) OptionalHeader() *IMAGE_OPTIONAL_HEADER {
	return self.Profile.IMAGE_OPTIONAL_HEADER(self.Reader,
		self.Profile.Off_IMAGE_NT_HEADERS_OptionalHeader+self.Offset)
}

type IMAGE_FILE_HEADER struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) IMAGE_FILE_HEADER(reader io.ReaderAt, offset int64) *IMAGE_FILE_HEADER {
	return &IMAGE_FILE_HEADER{Reader: reader, Offset: offset, Profile: self}
}

func (self *IMAGE_FILE_HEADER) Machine() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_IMAGE_FILE_HEADER_Machine+self.Offset)
}

func (self *IMAGE_FILE_HEADER) NumberOfSections() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_IMAGE_FILE_HEADER_NumberOfSections+self.Offset)
}

func (self *IMAGE_FILE_HEADER) TimeDateStamp() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_FILE_HEADER_TimeDateStamp+self.Offset)
}

func (self *IMAGE_FILE_HEADER) SizeOfOptionalHeader() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_IMAGE_FILE_HEADER_SizeOfOptionalHeader+self.Offset)
}

func (self *IMAGE_FILE_HEADER) Characteristics() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_IMAGE_FILE_HEADER_Characteristics+self.Offset)
}

// The PE32 and PE32+ optional headers share every field this package
// needs except ImageBase, NumberOfRvaAndSizes and the data directory
// position, which are resolved through Magic().
type IMAGE_OPTIONAL_HEADER struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) IMAGE_OPTIONAL_HEADER(reader io.ReaderAt, offset int64) *IMAGE_OPTIONAL_HEADER {
	return &IMAGE_OPTIONAL_HEADER{Reader: reader, Offset: offset, Profile: self}
}

func (self *IMAGE_OPTIONAL_HEADER) Magic() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER_Magic+self.Offset)
}

func (self *IMAGE_OPTIONAL_HEADER) Is64Bit() bool {
	return self.Magic() == 0x20b
}

func (self *IMAGE_OPTIONAL_HEADER) ImageBase() uint64 {
	if self.Is64Bit() {
		return ParseUint64(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER64_ImageBase+self.Offset)
	}
	return uint64(ParseUint32(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER_ImageBase+self.Offset))
}

func (self *IMAGE_OPTIONAL_HEADER) SectionAlignment() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER_SectionAlignment+self.Offset)
}

func (self *IMAGE_OPTIONAL_HEADER) FileAlignment() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER_FileAlignment+self.Offset)
}

func (self *IMAGE_OPTIONAL_HEADER) SizeOfImage() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER_SizeOfImage+self.Offset)
}

func (self *IMAGE_OPTIONAL_HEADER) SetSizeOfImage(value uint32) error {
	return WriteUint32(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER_SizeOfImage+self.Offset, value)
}

func (self *IMAGE_OPTIONAL_HEADER) SizeOfHeaders() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER_SizeOfHeaders+self.Offset)
}

func (self *IMAGE_OPTIONAL_HEADER) CheckSum() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER_CheckSum+self.Offset)
}

func (self *IMAGE_OPTIONAL_HEADER) SetCheckSum(value uint32) error {
	return WriteUint32(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER_CheckSum+self.Offset, value)
}

func (self *IMAGE_OPTIONAL_HEADER) NumberOfRvaAndSizes() uint32 {
	if self.Is64Bit() {
		return ParseUint32(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER64_NumberOfRvaAndSizes+self.Offset)
	}
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_OPTIONAL_HEADER_NumberOfRvaAndSizes+self.Offset)
}

type IMAGE_DATA_DIRECTORY struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) IMAGE_DATA_DIRECTORY(reader io.ReaderAt, offset int64) *IMAGE_DATA_DIRECTORY {
	return &IMAGE_DATA_DIRECTORY{Reader: reader, Offset: offset, Profile: self}
}

func (self *IMAGE_DATA_DIRECTORY) Size() int {
	return 8
}

func (self *IMAGE_DATA_DIRECTORY) VirtualAddress() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_DATA_DIRECTORY_VirtualAddress+self.Offset)
}

func (self *IMAGE_DATA_DIRECTORY) SetVirtualAddress(value uint32) error {
	return WriteUint32(self.Reader, self.Profile.Off_IMAGE_DATA_DIRECTORY_VirtualAddress+self.Offset, value)
}

func (self *IMAGE_DATA_DIRECTORY) DirSize() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_DATA_DIRECTORY_Size+self.Offset)
}

func (self *IMAGE_DATA_DIRECTORY) SetDirSize(value uint32) error {
	return WriteUint32(self.Reader, self.Profile.Off_IMAGE_DATA_DIRECTORY_Size+self.Offset, value)
}

type IMAGE_SECTION_HEADER struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) IMAGE_SECTION_HEADER(reader io.ReaderAt, offset int64) *IMAGE_SECTION_HEADER {
	return &IMAGE_SECTION_HEADER{Reader: reader, Offset: offset, Profile: self}
}

func (self *IMAGE_SECTION_HEADER) Size() int {
	return 40
}

func (self *IMAGE_SECTION_HEADER) Name() string {
	return ParseTerminatedString(self.Reader,
		self.Profile.Off_IMAGE_SECTION_HEADER_Name+self.Offset, 8)
}

func (self *IMAGE_SECTION_HEADER) VirtualSize() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_SECTION_HEADER_VirtualSize+self.Offset)
}

func (self *IMAGE_SECTION_HEADER) SetVirtualSize(value uint32) error {
	return WriteUint32(self.Reader, self.Profile.Off_IMAGE_SECTION_HEADER_VirtualSize+self.Offset, value)
}

func (self *IMAGE_SECTION_HEADER) VirtualAddress() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_SECTION_HEADER_VirtualAddress+self.Offset)
}

func (self *IMAGE_SECTION_HEADER) SizeOfRawData() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_SECTION_HEADER_SizeOfRawData+self.Offset)
}

func (self *IMAGE_SECTION_HEADER) SetSizeOfRawData(value uint32) error {
	return WriteUint32(self.Reader, self.Profile.Off_IMAGE_SECTION_HEADER_SizeOfRawData+self.Offset, value)
}

func (self *IMAGE_SECTION_HEADER) PointerToRawData() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_SECTION_HEADER_PointerToRawData+self.Offset)
}

func (self *IMAGE_SECTION_HEADER) SetPointerToRawData(value uint32) error {
	return WriteUint32(self.Reader, self.Profile.Off_IMAGE_SECTION_HEADER_PointerToRawData+self.Offset, value)
}

func (self *IMAGE_SECTION_HEADER) Characteristics() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_IMAGE_SECTION_HEADER_Characteristics+self.Offset)
}

type WIN_CERTIFICATE struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) WIN_CERTIFICATE(reader io.ReaderAt, offset int64) *WIN_CERTIFICATE {
	return &WIN_CERTIFICATE{Reader: reader, Offset: offset, Profile: self}
}

func (self *WIN_CERTIFICATE) Length() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_WIN_CERTIFICATE_Length+self.Offset)
}

func (self *WIN_CERTIFICATE) CertificateType() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_WIN_CERTIFICATE_CertificateType+self.Offset)
}

// Primitive decoders. Like the rest of the views they return zero
// values for reads that fall outside the reader.

func ParseUint16(reader io.ReaderAt, offset int64) uint16 {
	data := make([]byte, 2)
	n, _ := reader.ReadAt(data, offset)
	if n < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(data)
}

func ParseUint32(reader io.ReaderAt, offset int64) uint32 {
	data := make([]byte, 4)
	n, _ := reader.ReadAt(data, offset)
	if n < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

func ParseUint64(reader io.ReaderAt, offset int64) uint64 {
	data := make([]byte, 8)
	n, _ := reader.ReadAt(data, offset)
	if n < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(data)
}

// Views whose reader is also an io.WriterAt can be patched in place.
func WriteUint32(reader io.ReaderAt, offset int64, value uint32) error {
	writer, ok := reader.(io.WriterAt)
	if !ok {
		return ErrNotSupported
	}

	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, value)
	_, err := writer.WriteAt(data, offset)
	return err
}
