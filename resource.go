package pe

import (
	"fmt"
	"strings"
)

type payloadState int

const (
	payloadUnloaded payloadState = iota
	payloadLoaded
)

// A resource payload is read from the container the first time it is
// needed, unless it was supplied by SetData().
type resourcePayload struct {
	state payloadState
	data  []byte
}

// Resource is a leaf of the resource tree. The location, size and
// codepage live in the IMAGE_RESOURCE_DATA_ENTRY held by the manager's
// bookkeeping list; the resource refers to it by index.
type Resource struct {
	// Key of this leaf in its parent.
	Name string

	// Key of the type (root level) this leaf is filed under.
	Type string

	// Offset of the directory entry pointing at the data entry.
	EntryOffset int64

	path    []string
	manager *ResourceManager
	record  int
	payload resourcePayload
}

func (self *Resource) dataEntry() *IMAGE_RESOURCE_DATA_ENTRY {
	return self.manager.records[self.record].DataEntry
}

// Offset is the RVA of the payload.
func (self *Resource) Offset() uint32 {
	return self.dataEntry().OffsetToData
}

// SectionOffset is the payload offset relative to the start of the
// resource section.
func (self *Resource) SectionOffset() int64 {
	return self.manager.records[self.record].DataOffset
}

// Size always agrees with the length of the payload.
func (self *Resource) Size() int {
	if self.payload.state == payloadLoaded {
		return len(self.payload.data)
	}
	return int(self.dataEntry().DataSize)
}

func (self *Resource) CodePage() uint32 {
	return self.dataEntry().CodePage
}

// Path is the list of keys leading from the root of the tree to this
// resource, e.g. ["RT_ICON", "1", "1033"].
func (self *Resource) Path() []string {
	return append([]string{}, self.path...)
}

func (self *Resource) PathString() string {
	return strings.Join(self.path, "/")
}

func (self *Resource) Loaded() bool {
	return self.payload.state == payloadLoaded
}

func (self *Resource) Data() ([]byte, error) {
	if self.payload.state == payloadLoaded {
		return self.payload.data, nil
	}

	entry := self.dataEntry()
	if int64(entry.DataSize) > GetResourceSizeLimit() {
		return nil, fmt.Errorf("%w: resource %v is %d bytes",
			ErrOutOfBounds, self.PathString(), entry.DataSize)
	}

	data, err := self.manager.container.VirtualRead(
		entry.OffsetToData, int(entry.DataSize))
	if err != nil {
		return nil, fmt.Errorf("reading resource %v: %w", self.PathString(), err)
	}

	self.payload = resourcePayload{state: payloadLoaded, data: data}
	return data, nil
}

// SetData replaces the payload and rebuilds the resource section so
// that every other resource keeps a valid, non overlapping location.
// On error the resource and the section are left unchanged.
func (self *Resource) SetData(data []byte) error {
	return self.manager.updateResource(self, data)
}

func (self *Resource) String() string {
	return fmt.Sprintf("<ResourceEntry name=%v id=%v offset=0x%02x size=0x%02x codepage=0x%02x>",
		self.Name, self.Type, self.Offset(), self.Size(), self.CodePage())
}
