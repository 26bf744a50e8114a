// Serialize a PEImage back to a file after sections were modified.
//
// Sections keep their order in the file. A section whose data grew is
// given more raw space and every following section (and the overlay)
// is shifted by the same amount. Virtual addresses never move so a
// grown section must still fit below the next section in memory.

package pe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

type sectionLayout struct {
	section *Section

	// Header view over the output copy of the headers.
	header *IMAGE_SECTION_HEADER
	data   []byte

	old_pointer  int64
	old_raw_size int64
	new_pointer  int64
	new_raw_size int64
	virtual_size int64
}

// WriteTo writes the image, including every modified section, to w.
// The image itself is not changed and can be written again.
func (self *PEImage) WriteTo(w io.Writer) (int64, error) {
	data, err := self.Bytes()
	if err != nil {
		return 0, err
	}

	n, err := w.Write(data)
	return int64(n), err
}

// Bytes serializes the image into memory.
func (self *PEImage) Bytes() ([]byte, error) {
	headers := append(MemoryBuffer{}, self.headers...)
	nt_header := self.profile.IMAGE_DOS_HEADER(headers, 0).NTHeader()
	optional_header := nt_header.OptionalHeader()
	file_alignment := self.FileAlignment()

	layouts, err := self.layoutSections(nt_header)
	if err != nil {
		return nil, err
	}

	// Raw space is handed out in file order.
	sort.SliceStable(layouts, func(i, j int) bool {
		return layouts[i].old_pointer < layouts[j].old_pointer
	})

	shift := int64(0)
	for _, layout := range layouts {
		layout.new_pointer = layout.old_pointer
		if layout.old_raw_size > 0 {
			layout.new_pointer += shift
		}

		layout.new_raw_size = layout.old_raw_size
		if layout.section.Modified() && layout.old_raw_size > 0 {
			aligned := AlignInt(int64(len(layout.data)), file_alignment)
			if aligned > layout.new_raw_size {
				layout.new_raw_size = aligned
			}
		}
		shift += layout.new_raw_size - layout.old_raw_size
	}

	err = checkSectionOverlap(layouts)
	if err != nil {
		return nil, err
	}

	// Patch the header copy.
	image_end := int64(0)
	for _, layout := range layouts {
		for _, err := range []error{
			layout.header.SetPointerToRawData(uint32(layout.new_pointer)),
			layout.header.SetSizeOfRawData(uint32(layout.new_raw_size)),
			layout.header.SetVirtualSize(uint32(layout.virtual_size)),
		} {
			if err != nil {
				return nil, err
			}
		}

		end := int64(layout.header.VirtualAddress()) + layout.virtual_size
		if end > image_end {
			image_end = end
		}
	}

	err = optional_header.SetSizeOfImage(uint32(
		AlignInt(image_end, self.SectionAlignment())))
	if err != nil {
		return nil, err
	}

	overlay, err := self.patchOverlay(nt_header, shift)
	if err != nil {
		return nil, err
	}

	// Now assemble the file.
	out := bytes.NewBuffer(nil)
	out.Write(headers)

	old_end := int64(len(self.headers))
	for _, layout := range layouts {
		if layout.old_raw_size == 0 {
			continue
		}

		// Whatever sits between two sections is carried over.
		if layout.old_pointer > old_end {
			gap, err := self.Read(old_end, int(layout.old_pointer-old_end))
			if err != nil {
				return nil, err
			}
			out.Write(gap)
		}
		if int64(out.Len()) < layout.new_pointer {
			out.Write(Pad(int(layout.new_pointer - int64(out.Len()))))
		}
		if int64(out.Len()) != layout.new_pointer {
			return nil, fmt.Errorf("%w: section %v overlaps the headers or another section",
				ErrSectionOverflow, layout.section.Name())
		}

		section_data := layout.data
		if int64(len(section_data)) > layout.new_raw_size {
			section_data = section_data[:layout.new_raw_size]
		}
		out.Write(section_data)
		out.Write(Pad(int(layout.new_raw_size - int64(len(section_data)))))

		old_end = layout.old_pointer + layout.old_raw_size
	}
	out.Write(overlay)

	result := out.Bytes()
	if optional_header.CheckSum() != 0 {
		checksum_offset := optional_header.Offset +
			self.profile.Off_IMAGE_OPTIONAL_HEADER_CheckSum
		binary.LittleEndian.PutUint32(result[checksum_offset:],
			PEChecksum(result, checksum_offset))
	}

	return result, nil
}

// Loads every section and works out its virtual size. Loading happens
// up front so a read error leaves nothing half written.
func (self *PEImage) layoutSections(nt_header *IMAGE_NT_HEADERS) (
	[]*sectionLayout, error) {
	headers := nt_header.Sections()
	if len(headers) != len(self.sections) {
		return nil, fmt.Errorf("%w: section table changed", ErrInvalidHeader)
	}

	result := make([]*sectionLayout, 0, len(self.sections))
	for idx, section := range self.sections {
		layout := &sectionLayout{
			section:      section,
			header:       headers[idx],
			old_pointer:  int64(section.header.PointerToRawData()),
			old_raw_size: int64(section.header.SizeOfRawData()),
			virtual_size: section.VirtualSize(),
		}

		if layout.old_raw_size > 0 || section.Modified() {
			data, err := section.Data()
			if err != nil {
				return nil, err
			}
			layout.data = data
		}

		result = append(result, layout)
	}
	return result, nil
}

// Virtual addresses are fixed so a grown section must end below the
// section that follows it in memory.
func checkSectionOverlap(layouts []*sectionLayout) error {
	by_address := append([]*sectionLayout{}, layouts...)
	sort.SliceStable(by_address, func(i, j int) bool {
		return by_address[i].header.VirtualAddress() <
			by_address[j].header.VirtualAddress()
	})

	for i := 0; i+1 < len(by_address); i++ {
		current := by_address[i]
		next := by_address[i+1]

		end := int64(current.header.VirtualAddress()) + current.virtual_size
		if end > int64(next.header.VirtualAddress()) {
			return fmt.Errorf("%w: %v ends at %#x, %v starts at %#x",
				ErrSectionOverflow, current.section.Name(), end,
				next.section.Name(), next.header.VirtualAddress())
		}
	}
	return nil
}

// The security directory holds a file offset rather than an RVA, so it
// is shifted with the overlay. A stripped certificate is cut out.
func (self *PEImage) patchOverlay(
	nt_header *IMAGE_NT_HEADERS, shift int64) ([]byte, error) {
	overlay, err := self.Read(self.overlay_offset,
		int(self.size-self.overlay_offset))
	if err != nil {
		return nil, err
	}

	security := nt_header.DataDirectory(IMAGE_DIRECTORY_ENTRY_SECURITY)
	if security == nil || security.VirtualAddress() == 0 {
		return overlay, nil
	}

	if self.strip_certificate_size > 0 {
		start := self.strip_certificate_offset - self.overlay_offset
		end := start + self.strip_certificate_size
		if start >= 0 && end <= int64(len(overlay)) {
			overlay = append(append([]byte{}, overlay[:start]...), overlay[end:]...)
		}

		err = security.SetVirtualAddress(0)
		if err != nil {
			return nil, err
		}
		return overlay, security.SetDirSize(0)
	}

	if int64(security.VirtualAddress()) >= self.overlay_offset {
		err = security.SetVirtualAddress(uint32(
			int64(security.VirtualAddress()) + shift))
		if err != nil {
			return nil, err
		}
	}
	return overlay, nil
}

// PEChecksum computes the optional header checksum of a whole file. The
// four bytes at checksum_offset are treated as zero.
func PEChecksum(data []byte, checksum_offset int64) uint32 {
	sum := uint64(0)
	length := int64(len(data))

	for i := int64(0); i < length; i += 2 {
		if i == checksum_offset || i == checksum_offset+2 {
			continue
		}

		word := uint64(data[i])
		if i+1 < length {
			word |= uint64(data[i+1]) << 8
		}

		sum += word
		sum = (sum & 0xffff) + (sum >> 16)
	}

	sum = (sum & 0xffff) + (sum >> 16)
	return uint32(sum) + uint32(length)
}
