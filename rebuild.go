// Rebuilding the resource section after a payload changed.
//
// Payloads are laid out in the order of their original section
// offsets. Everything before the first resized or moved payload keeps
// its place; from there on each payload starts at the end of the
// previous one, rounded up to the data alignment. The directory
// structures are then written back at their original offsets with the
// data entries pointing at the new locations.

package pe

import (
	"bytes"
	"fmt"
	"sort"
)

func (self *ResourceManager) updateResource(resource *Resource, data []byte) error {
	entry := resource.dataEntry()
	old_payload := resource.payload
	old_size := entry.DataSize

	data = append([]byte{}, data...)
	resource.payload = resourcePayload{state: payloadLoaded, data: data}
	if uint32(len(data)) != entry.DataSize {
		entry.DataSize = uint32(len(data))
	}

	err := self.Rebuild()
	if err != nil {
		resource.payload = old_payload
		entry.DataSize = old_size
		return err
	}
	return nil
}

// The data entry records ordered by payload offset.
func (self *ResourceManager) dataRecords() []*RawResourceRecord {
	result := []*RawResourceRecord{}
	for _, record := range self.records {
		if record.Kind == DataEntryRecord {
			result = append(result, record)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DataOffset < result[j].DataOffset
	})
	return result
}

// The directory, entry and data entry structures ordered by their
// position in the directory.
func (self *ResourceManager) structureRecords() []*RawResourceRecord {
	result := append([]*RawResourceRecord{}, self.records...)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Offset < result[j].Offset
	})
	return result
}

// EstimateSectionSize adds up the directory header and the aligned
// payload sizes. It does not account for gaps kept in front of the
// first changed payload so it is only reported, never used for layout.
func (self *ResourceManager) EstimateSectionSize() int64 {
	records := self.dataRecords()
	if len(records) == 0 {
		return 0
	}

	new_size := records[0].DataOffset
	for resource := range self.Resources() {
		new_size += AlignInt(int64(resource.Size()), self.data_alignment)
	}
	return new_size
}

// Rebuild lays out all payloads again and replaces the section buffer.
// Either everything is committed or nothing is changed.
func (self *ResourceManager) Rebuild() error {
	section_data, err := self.section.Data()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRebuild, err)
	}

	data_records := self.dataRecords()
	if len(data_records) == 0 {
		return nil
	}

	// Load every payload before touching anything.
	payloads := make([][]byte, len(data_records))
	for i, record := range data_records {
		payloads[i], err = self.arena[record.Resource].Data()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRebuild, err)
		}
	}

	// Offset pass.
	new_offsets := make(map[*RawResourceRecord]int64)
	new_sizes := make(map[*RawResourceRecord]uint32)
	header_size := data_records[0].DataOffset
	preserved := int64(-1)
	original_end := int64(0)
	prev_end := int64(0)

	for i, record := range data_records {
		offset := record.DataOffset
		size := int64(len(payloads[i]))

		if i > 0 && preserved >= 0 {
			expected := AlignInt(prev_end, self.data_alignment)
			if offset != expected {
				DebugPrint("Moving resource %v from %#x to %#x\n",
					self.arena[record.Resource].PathString(), offset, expected)
				offset = expected
			}
		}

		// Everything before the first change is kept verbatim.
		if preserved < 0 && (offset != record.DataOffset || size != record.placed_size) {
			preserved = offset
		}

		new_offsets[record] = offset
		new_sizes[record] = uint32(size)
		if offset+size > prev_end {
			prev_end = offset + size
		}

		original := record.DataOffset + record.placed_size
		if original > original_end {
			original_end = original
		}
	}
	if preserved < 0 {
		preserved = original_end
	}
	if preserved < header_size {
		preserved = header_size
	}
	if preserved > int64(len(section_data)) {
		preserved = int64(len(section_data))
	}

	DebugPrint("Rebuilding resources: data end %#x -> %#x, estimated size %#x\n",
		original_end, prev_end, self.EstimateSectionSize())

	// Serialization pass.
	buffer := make([]byte, preserved)
	copy(buffer, section_data[:preserved])

	for i, record := range data_records {
		buffer = writeAt(buffer, new_offsets[record], payloads[i])
	}
	data_end := int64(len(buffer))

	for _, record := range self.structureRecords() {
		structure := record.Structure()
		if record.Kind == DataEntryRecord {
			updated := *record.DataEntry
			updated.OffsetToData = self.section.VirtualAddress() +
				uint32(new_offsets[record])
			updated.DataSize = new_sizes[record]
			structure = &updated
		}

		position := self.directory_base + record.Offset
		if position+int64(structure.Size()) > header_size {
			return fmt.Errorf("%w: %v at %#x overlaps resource data at %#x",
				ErrRebuild, record.Kind, position, header_size)
		}
		buffer = writeAt(buffer, position, structure.Encode())
	}

	// Keep whatever followed the resource data, dropping as much of
	// its zero padding as the data grew by.
	if data_end < original_end {
		buffer = append(buffer, Pad(int(original_end-data_end))...)
	}
	if original_end < int64(len(section_data)) {
		tail := section_data[original_end:]
		growth := int64(len(buffer)) - original_end
		for growth > 0 && len(tail) > 0 && tail[0] == 0 {
			tail = tail[1:]
			growth--
		}
		buffer = append(buffer, tail...)
	}

	// Names are carried over from the old buffer, so they must not
	// have been overwritten or shifted.
	for _, offset := range self.nameOffsets() {
		position := self.directory_base + offset
		end := position + self.names[offset]
		if end > int64(len(buffer)) || end > int64(len(section_data)) ||
			!bytes.Equal(buffer[position:end], section_data[position:end]) {
			return fmt.Errorf("%w: resource name at %#x overlaps resource data",
				ErrRebuild, position)
		}
	}

	// Nothing moved or changed size.
	if bytes.Equal(buffer, section_data) {
		return nil
	}

	// The directory grows or shrinks with the end of the data.
	directory_size := self.directory_size + data_end - original_end
	err = self.container.SetImageDirectorySize(
		IMAGE_DIRECTORY_ENTRY_RESOURCE, uint32(directory_size))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRebuild, err)
	}

	// Commit
	for i, record := range data_records {
		record.DataOffset = new_offsets[record]
		record.DataEntry.OffsetToData = self.section.VirtualAddress() +
			uint32(record.DataOffset)
		record.DataEntry.DataSize = uint32(len(payloads[i]))
		record.placed_size = int64(len(payloads[i]))
	}
	self.section.SetData(buffer)
	self.section.SetVirtualSize(self.section.VirtualSize() + data_end - original_end)
	self.section_size = int64(len(buffer))
	self.directory_size = directory_size

	return nil
}

func (self *ResourceManager) nameOffsets() []int64 {
	result := make([]int64, 0, len(self.names))
	for offset := range self.names {
		result = append(result, offset)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	return result
}

// Writes data at offset, growing buffer with zeros as needed.
func writeAt(buffer []byte, offset int64, data []byte) []byte {
	end := offset + int64(len(data))
	if end > int64(len(buffer)) {
		buffer = append(buffer, Pad(int(end-int64(len(buffer))))...)
	}
	copy(buffer[offset:end], data)
	return buffer
}
