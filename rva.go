package pe

// An RVA resolver maps a VirtualAddress to a file physical
// address. When the physical file is mapped into memory, sections in
// the file are mapped at different memory addresses. Internally the
// PE file contains pointers to those virtual addresses. This means we
// need to convert these pointers to mapped memory back into the file
// (or into the section buffers) so we can read their data. The
// RVAResolver is responsible for this - it is populated from the
// image's sections.
type Run struct {
	VirtualAddress  uint32
	VirtualEnd      uint32
	PhysicalAddress uint32
	Section         *Section
}

// A rebuilt section may have grown past its header sizes.
func (self *Run) end() uint32 {
	if self.Section != nil && self.Section.loaded {
		end := self.VirtualAddress + uint32(len(self.Section.data))
		if end > self.VirtualEnd {
			return end
		}
	}
	return self.VirtualEnd
}

type RVAResolver struct {
	// For now very simple O(n) search.
	Runs      []*Run
	ImageBase uint64
	Is64Bit   bool
}

func (self *RVAResolver) GetRun(offset uint32) *Run {
	for _, run := range self.Runs {
		if offset >= run.VirtualAddress &&
			offset < run.end() {
			return run
		}
	}
	return nil
}

func (self *RVAResolver) GetFileAddress(offset uint32) uint32 {
	run := self.GetRun(offset)
	if run == nil {
		return 0
	}
	return offset - run.VirtualAddress + run.PhysicalAddress
}

func NewRVAResolver(header *IMAGE_NT_HEADERS, sections []*Section) *RVAResolver {
	optional_header := header.OptionalHeader()
	result := &RVAResolver{
		ImageBase: optional_header.ImageBase(),
		Is64Bit:   optional_header.Is64Bit(),
	}

	for _, section := range sections {
		// Sections with no raw data (e.g. .bss) have nothing to read.
		size := section.header.SizeOfRawData()
		if size == 0 {
			continue
		}

		// The loader maps at most VirtualSize bytes of the raw data.
		virtual_size := section.header.VirtualSize()
		if virtual_size > size {
			size = virtual_size
		}

		result.Runs = append(result.Runs, &Run{
			VirtualAddress:  section.VirtualAddress(),
			VirtualEnd:      section.VirtualAddress() + size,
			PhysicalAddress: section.header.PointerToRawData(),
			Section:         section,
		})
	}

	return result
}
