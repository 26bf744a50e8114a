package pe

import (
	"fmt"
	"io"

	"github.com/Velocidex/ordereddict"
)

// Exported API

// A Section owns the bytes of one section of the image. They are read
// from the file on first use and may be replaced wholesale (this is
// what the resource rebuild does).
type Section struct {
	header *IMAGE_SECTION_HEADER
	reader io.ReaderAt

	data     []byte
	loaded   bool
	modified bool

	// Overrides the header once the mapped size changed.
	virtual_size int64
}

func (self *Section) Name() string {
	return self.header.Name()
}

func (self *Section) VirtualAddress() uint32 {
	return self.header.VirtualAddress()
}

func (self *Section) Header() *IMAGE_SECTION_HEADER {
	return self.header
}

func (self *Section) Data() ([]byte, error) {
	if self.loaded {
		return self.data, nil
	}

	data, err := readFull(self.reader,
		int64(self.header.PointerToRawData()),
		int64(self.header.SizeOfRawData()))
	if err != nil {
		return nil, fmt.Errorf("reading section %v: %w", self.Name(), err)
	}

	self.data = data
	self.loaded = true
	return data, nil
}

func (self *Section) SetData(data []byte) {
	self.data = data
	self.loaded = true
	self.modified = true
}

// VirtualSize is the number of bytes the loader maps.
func (self *Section) VirtualSize() int64 {
	if self.virtual_size > 0 {
		return self.virtual_size
	}
	return int64(self.header.VirtualSize())
}

// SetVirtualSize changes the mapped size written out for the section.
// SetData alone leaves it unchanged.
func (self *Section) SetVirtualSize(size int64) {
	self.virtual_size = size
	self.modified = true
}

func (self *Section) Modified() bool {
	return self.modified
}

func (self *Section) ToDict() *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Name", self.Name()).
		Set("Perm", self.header.Permissions()).
		Set("FileOffset", int64(self.header.PointerToRawData())).
		Set("VMA", int64(self.VirtualAddress())).
		Set("VirtualSize", self.VirtualSize()).
		Set("Size", int64(self.header.SizeOfRawData())).
		Set("Modified", self.modified)
}

// PEImage is the container the resource editor works on. Headers are
// copied into memory so they can be patched; section data is loaded on
// demand from the underlying reader.
type PEImage struct {
	reader io.ReaderAt
	size   int64

	profile    *PeProfile
	headers    MemoryBuffer
	dos_header *IMAGE_DOS_HEADER
	nt_header  *IMAGE_NT_HEADERS

	// Used to resolve RVA to file offsets.
	rva_resolver *RVAResolver

	sections []*Section

	// File offset of data appended after the last section.
	overlay_offset int64

	// Set by StripSignature()
	strip_certificate_offset int64
	strip_certificate_size   int64

	resources *ResourceManager
}

func NewPEImage(reader io.ReaderAt, size int64) (*PEImage, error) {
	profile := NewPeProfile()
	dos_header := profile.IMAGE_DOS_HEADER(reader, 0)
	if dos_header.E_magic() != 0x5a4d {
		return nil, fmt.Errorf("%w: invalid IMAGE_DOS_HEADER", ErrInvalidHeader)
	}

	nt_header := dos_header.NTHeader()
	if nt_header.Signature() != 0x4550 {
		return nil, fmt.Errorf("%w: invalid IMAGE_NT_HEADERS", ErrInvalidHeader)
	}

	// Keep a private copy of everything up to the end of the section
	// table so header fields can be rewritten.
	header_size := int64(nt_header.OptionalHeader().SizeOfHeaders())
	section_table_end := nt_header.SectionTableEnd()
	if header_size < section_table_end {
		header_size = section_table_end
	}
	if header_size > size {
		return nil, fmt.Errorf("%w: headers extend past end of file",
			ErrInvalidHeader)
	}

	headers, err := readFull(reader, 0, header_size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	result := &PEImage{
		reader:  reader,
		size:    size,
		profile: profile,
		headers: MemoryBuffer(headers),
	}
	result.dos_header = profile.IMAGE_DOS_HEADER(result.headers, 0)
	result.nt_header = result.dos_header.NTHeader()

	result.overlay_offset = header_size
	for _, header := range result.nt_header.Sections() {
		result.sections = append(result.sections, &Section{
			header: header,
			reader: reader,
		})

		end := int64(header.PointerToRawData()) + int64(header.SizeOfRawData())
		if header.SizeOfRawData() > 0 && end > result.overlay_offset {
			result.overlay_offset = end
		}
	}
	if result.overlay_offset > size {
		return nil, fmt.Errorf("%w: section data extends past end of file",
			ErrInvalidHeader)
	}

	result.rva_resolver = NewRVAResolver(result.nt_header, result.sections)

	return result, nil
}

func (self *PEImage) NTHeader() *IMAGE_NT_HEADERS {
	return self.nt_header
}

func (self *PEImage) Sections() []*Section {
	return self.sections
}

func (self *PEImage) SectionByName(name string) *Section {
	for _, section := range self.sections {
		if section.Name() == name {
			return section
		}
	}
	return nil
}

func (self *PEImage) SectionByRVA(rva uint32) *Section {
	run := self.rva_resolver.GetRun(rva)
	if run == nil {
		return nil
	}
	return run.Section
}

func (self *PEImage) FileAlignment() int64 {
	return int64(self.nt_header.OptionalHeader().FileAlignment())
}

func (self *PEImage) SectionAlignment() int64 {
	return int64(self.nt_header.OptionalHeader().SectionAlignment())
}

// Read reads size bytes at a raw file offset.
func (self *PEImage) Read(offset int64, size int) ([]byte, error) {
	return readFull(self.reader, offset, int64(size))
}

// VirtualRead reads size bytes at a relative virtual address. Reads
// go through the section buffers so they observe rebuilt sections.
func (self *PEImage) VirtualRead(rva uint32, size int) ([]byte, error) {
	section := self.SectionByRVA(rva)
	if section == nil {
		return nil, fmt.Errorf("%w: RVA %#x is not mapped by any section",
			ErrOutOfBounds, rva)
	}

	data, err := section.Data()
	if err != nil {
		return nil, err
	}

	start := int64(rva - section.VirtualAddress())
	end := start + int64(size)
	if size < 0 || end > int64(len(data)) {
		return nil, fmt.Errorf("%w: RVA %#x+%#x past end of section %v",
			ErrOutOfBounds, rva, size, section.Name())
	}

	result := make([]byte, size)
	copy(result, data[start:end])
	return result, nil
}

// ReadImageDirectory returns the bytes covered by data directory index.
func (self *PEImage) ReadImageDirectory(index int64) ([]byte, error) {
	dir := self.nt_header.DataDirectory(index)
	if dir == nil || dir.VirtualAddress() == 0 || dir.DirSize() == 0 {
		return nil, fmt.Errorf("%w: image directory %d is empty",
			ErrResourceNotFound, index)
	}
	return self.VirtualRead(dir.VirtualAddress(), int(dir.DirSize()))
}

func (self *PEImage) ImageDirectoryAddress(index int64) uint32 {
	dir := self.nt_header.DataDirectory(index)
	if dir == nil {
		return 0
	}
	return dir.VirtualAddress()
}

func (self *PEImage) SetImageDirectorySize(index int64, size uint32) error {
	dir := self.nt_header.DataDirectory(index)
	if dir == nil {
		return fmt.Errorf("%w: image directory %d", ErrOutOfBounds, index)
	}
	return dir.SetDirSize(size)
}

// Resources returns the resource manager for the image, parsing the
// resource directory on first use.
func (self *PEImage) Resources() (*ResourceManager, error) {
	if self.resources != nil {
		return self.resources, nil
	}

	resources, err := NewResourceManager(self)
	if err != nil {
		return nil, err
	}
	self.resources = resources
	return resources, nil
}

func (self *PEImage) ToDict() *ordereddict.Dict {
	file_header := self.nt_header.FileHeader()
	optional_header := self.nt_header.OptionalHeader()

	sections := make([]*ordereddict.Dict, 0, len(self.sections))
	for _, section := range self.sections {
		sections = append(sections, section.ToDict())
	}

	resource_rva := self.ImageDirectoryAddress(IMAGE_DIRECTORY_ENTRY_RESOURCE)

	return ordereddict.NewDict().
		Set("Machine", file_header.MachineName()).
		Set("TimeDateStamp", file_header.TimeStamp().String()).
		Set("Is64Bit", optional_header.Is64Bit()).
		Set("ImageBase", fmt.Sprintf("%#x", optional_header.ImageBase())).
		Set("FileAlignment", self.FileAlignment()).
		Set("SectionAlignment", self.SectionAlignment()).
		Set("ResourceRVA", int64(resource_rva)).
		Set("ResourceFileOffset", int64(
			self.rva_resolver.GetFileAddress(resource_rva))).
		Set("Sections", sections)
}
