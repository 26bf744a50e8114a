// Parse the resource directory into an ordered tree. Every structure
// decoded on the way is also recorded in the manager's bookkeeping
// list so the section can be rebuilt after a payload changes.

package pe

import (
	"strconv"

	"github.com/Velocidex/ordereddict"
)

type NodeKind int

const (
	SubtreeNode NodeKind = iota
	LeafNode
)

// ResourceNode is either a nested tree or a resource, as given by Kind.
type ResourceNode struct {
	Kind     NodeKind
	Tree     *ResourceTree
	Resource *Resource
}

// ResourceTree maps keys to nodes, preserving the on-disk order of the
// directory entries. That order is also the serialization order.
type ResourceTree struct {
	Name     string
	children *ordereddict.Dict
}

func NewResourceTree(name string) *ResourceTree {
	return &ResourceTree{
		Name:     name,
		children: ordereddict.NewDict(),
	}
}

func (self *ResourceTree) Keys() []string {
	return self.children.Keys()
}

func (self *ResourceTree) Len() int {
	return self.children.Len()
}

func (self *ResourceTree) Get(key string) (*ResourceNode, bool) {
	value, pres := self.children.Get(key)
	if !pres {
		return nil, false
	}
	node, ok := value.(*ResourceNode)
	return node, ok
}

func (self *ResourceTree) set(key string, node *ResourceNode) bool {
	_, pres := self.children.Get(key)
	if pres {
		return false
	}
	self.children.Set(key, node)
	return true
}

// ToDict renders the tree shape with a short description of every leaf.
func (self *ResourceTree) ToDict() *ordereddict.Dict {
	result := ordereddict.NewDict()
	for _, key := range self.Keys() {
		node, _ := self.Get(key)
		switch node.Kind {
		case SubtreeNode:
			result.Set(key, node.Tree.ToDict())

		case LeafNode:
			resource := node.Resource
			result.Set(key, ordereddict.NewDict().
				Set("Offset", int64(resource.Offset())).
				Set("Size", resource.Size()).
				Set("CodePage", int64(resource.CodePage())))
		}
	}
	return result
}

type parseState struct {
	data []byte

	// Directories on the current path, to detect loops.
	visiting map[int64]bool
}

func (self *ResourceManager) parseResources() error {
	data, err := self.container.ReadImageDirectory(IMAGE_DIRECTORY_ENTRY_RESOURCE)
	if err != nil {
		return newParseError(0, err, "reading resource directory")
	}

	self.directory_rva = self.container.ImageDirectoryAddress(
		IMAGE_DIRECTORY_ENTRY_RESOURCE)
	self.section = self.container.SectionByRVA(self.directory_rva)
	if self.section == nil {
		return newParseError(0, nil,
			"resource directory RVA %#x is not in a section", self.directory_rva)
	}
	self.directory_base = int64(self.directory_rva - self.section.VirtualAddress())
	self.directory_size = int64(len(data))
	self.names = make(map[int64]int64)

	section_data, err := self.section.Data()
	if err != nil {
		return newParseError(0, err, "reading resource section")
	}
	self.section_size = int64(len(section_data))

	state := &parseState{
		data:     data,
		visiting: make(map[int64]bool),
	}

	tree, err := self.readResource(state, 0, "_root", 1, nil)
	if err != nil {
		return err
	}

	self.resources = tree
	self.data_alignment = self.inferDataAlignment()
	return nil
}

func (self *ResourceManager) readEntries(
	state *parseState, offset int64,
	directory *IMAGE_RESOURCE_DIRECTORY) ([]*RawResourceRecord, error) {

	count := directory.NumberOfEntries()
	if count > MAX_RESOURCE_DIRECTORY_LENGTH {
		return nil, newParseError(offset, nil,
			"directory has too many entries (%d)", count)
	}

	entries := make([]*RawResourceRecord, 0, count)
	for i := 0; i < count; i++ {
		entry_offset := offset + int64(directory.Size()) +
			int64(i)*SIZEOF_IMAGE_RESOURCE_DIRECTORY_ENTRY
		entry, err := DecodeResourceDirectoryEntry(state.data, entry_offset)
		if err != nil {
			return nil, err
		}

		record := &RawResourceRecord{
			Kind:       DirectoryEntryRecord,
			Offset:     entry_offset,
			DataOffset: entry_offset,
			Entry:      entry,
			Resource:   -1,
		}
		self.records = append(self.records, record)
		entries = append(entries, record)
	}
	return entries, nil
}

func (self *ResourceManager) entryKey(
	state *parseState, entry *IMAGE_RESOURCE_DIRECTORY_ENTRY,
	level int) (string, error) {

	if entry.NameIsString() {
		offset := int64(entry.NameOffset())
		name, err := DecodeResourceName(state.data, offset)
		if err != nil {
			return "", err
		}
		self.names[offset] = resourceNameSize(state.data, offset)
		return name, nil
	}

	if level == 1 {
		return ResourceType(entry.Id()).String(), nil
	}
	return strconv.Itoa(int(entry.Id())), nil
}

func (self *ResourceManager) readResource(
	state *parseState, offset int64, name string, level int,
	path []string) (*ResourceTree, error) {

	if level > MAX_RESOURCE_DEPTH {
		return nil, newParseError(offset, nil,
			"resource tree deeper than %d levels", MAX_RESOURCE_DEPTH)
	}

	if state.visiting[offset] {
		return nil, newParseError(offset, nil, "resource directory loop")
	}
	state.visiting[offset] = true
	defer delete(state.visiting, offset)

	directory, err := DecodeResourceDirectory(state.data, offset)
	if err != nil {
		return nil, err
	}
	self.records = append(self.records, &RawResourceRecord{
		Kind:       DirectoryRecord,
		Offset:     offset,
		DataOffset: offset,
		Directory:  directory,
		Resource:   -1,
	})

	entries, err := self.readEntries(state, offset, directory)
	if err != nil {
		return nil, err
	}

	result := NewResourceTree(name)
	for _, record := range entries {
		entry := record.Entry
		key, err := self.entryKey(state, entry, level)
		if err != nil {
			return nil, err
		}

		child_path := append(append([]string{}, path...), key)

		var node *ResourceNode
		if entry.DataIsDirectory() {
			subtree, err := self.readResource(state,
				int64(entry.OffsetToDirectory()), key, level+1, child_path)
			if err != nil {
				return nil, err
			}
			node = &ResourceNode{Kind: SubtreeNode, Tree: subtree}

		} else {
			resource, err := self.handleDataEntry(state, record, child_path)
			if err != nil {
				return nil, err
			}
			node = &ResourceNode{Kind: LeafNode, Resource: resource}
		}

		if !result.set(key, node) {
			return nil, newParseError(offset, nil,
				"duplicate resource key %q", key)
		}
	}

	return result, nil
}

// Decodes the data entry an entry points at and files a Resource for
// it. The payload itself is only read on demand.
func (self *ResourceManager) handleDataEntry(
	state *parseState, entry_record *RawResourceRecord,
	path []string) (*Resource, error) {

	entry := entry_record.Entry

	if len(self.arena) >= MAX_RESOURCE_COUNT {
		return nil, newParseError(int64(entry.OffsetToDirectory()), nil,
			"too many resources")
	}

	offset := int64(entry.OffsetToDirectory())
	data_entry, err := DecodeResourceDataEntry(state.data, offset)
	if err != nil {
		return nil, err
	}

	raw_offset := int64(data_entry.OffsetToData) -
		int64(self.section.VirtualAddress())
	if raw_offset < 0 ||
		raw_offset+int64(data_entry.DataSize) > self.section_size {
		return nil, newParseError(offset, ErrOutOfBounds,
			"resource data at RVA %#x (%d bytes) is outside section %v",
			data_entry.OffsetToData, data_entry.DataSize, self.section.Name())
	}

	resource := &Resource{
		Name:        path[len(path)-1],
		Type:        path[0],
		EntryOffset: entry_record.Offset,
		path:        path,
		manager:     self,
		record:      len(self.records),
	}

	self.records = append(self.records, &RawResourceRecord{
		Kind:        DataEntryRecord,
		Offset:      offset,
		DataOffset:  raw_offset,
		DataEntry:   data_entry,
		Resource:    len(self.arena),
		placed_size: int64(data_entry.DataSize),
	})
	self.arena = append(self.arena, resource)

	return resource, nil
}

// The largest power of two (up to MAX_DATA_ALIGNMENT) that every
// payload RVA is a multiple of.
func (self *ResourceManager) inferDataAlignment() int64 {
	alignment := int64(MAX_DATA_ALIGNMENT)
	for _, record := range self.records {
		if record.Kind != DataEntryRecord {
			continue
		}

		for alignment > 1 && int64(record.DataEntry.OffsetToData)%alignment != 0 {
			alignment /= 2
		}
	}
	return alignment
}
