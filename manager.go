package pe

import (
	"fmt"
	"io"
	"iter"
	"strings"
)

// ResourceContainer is what the resource manager needs from the image
// holding the resource directory. *PEImage implements it.
type ResourceContainer interface {
	ReadImageDirectory(index int64) ([]byte, error)
	ImageDirectoryAddress(index int64) uint32
	SetImageDirectorySize(index int64, size uint32) error
	SectionByRVA(rva uint32) *Section
	VirtualRead(rva uint32, size int) ([]byte, error)
}

type RecordKind int

const (
	DirectoryRecord RecordKind = iota
	DirectoryEntryRecord
	DataEntryRecord
)

func (self RecordKind) String() string {
	switch self {
	case DirectoryRecord:
		return "IMAGE_RESOURCE_DIRECTORY"
	case DirectoryEntryRecord:
		return "IMAGE_RESOURCE_DIRECTORY_ENTRY"
	case DataEntryRecord:
		return "IMAGE_RESOURCE_DATA_ENTRY"
	}
	return "Unknown"
}

// RawResourceRecord remembers one structure decoded from the resource
// directory so the section can be serialized again.
type RawResourceRecord struct {
	Kind RecordKind

	// Offset of the structure within the resource directory.
	Offset int64

	// Sort key for the rebuild: the section relative payload offset
	// for data entries, the structure offset otherwise.
	DataOffset int64

	// Exactly one of these is set, according to Kind.
	Directory *IMAGE_RESOURCE_DIRECTORY
	Entry     *IMAGE_RESOURCE_DIRECTORY_ENTRY
	DataEntry *IMAGE_RESOURCE_DATA_ENTRY

	// Index of the owning Resource for data entries, -1 otherwise.
	Resource int

	// Payload size currently laid out in the section buffer.
	placed_size int64
}

func (self *RawResourceRecord) Structure() ResourceStructure {
	switch self.Kind {
	case DirectoryRecord:
		return self.Directory
	case DirectoryEntryRecord:
		return self.Entry
	default:
		return self.DataEntry
	}
}

// ResourceManager owns everything parsed from one resource directory:
// the tree, the resources and the bookkeeping list used to rebuild the
// section. It is not safe for concurrent use; mutating one resource
// rewrites state shared by all of them.
type ResourceManager struct {
	container ResourceContainer

	// The section holding the resource directory.
	section        *Section
	section_size   int64
	directory_rva  uint32
	directory_base int64
	directory_size int64

	resources *ResourceTree
	records   []*RawResourceRecord
	arena     []*Resource

	// Name strings are not part of the records. Maps their offset in
	// the directory to their size.
	names map[int64]int64

	data_alignment int64
}

func NewResourceManager(container ResourceContainer) (*ResourceManager, error) {
	result := &ResourceManager{
		container: container,
	}

	err := result.parseResources()
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (self *ResourceManager) Tree() *ResourceTree {
	return self.resources
}

func (self *ResourceManager) Section() *Section {
	return self.section
}

// Records returns a snapshot of the bookkeeping list.
func (self *ResourceManager) Records() []RawResourceRecord {
	result := make([]RawResourceRecord, 0, len(self.records))
	for _, record := range self.records {
		result = append(result, *record)
	}
	return result
}

func (self *ResourceManager) DataAlignment() int64 {
	return self.data_alignment
}

// SetDataAlignment overrides the payload alignment used when the
// rebuild has to move resources. By default it is inferred from the
// original layout.
func (self *ResourceManager) SetDataAlignment(alignment int64) error {
	if !isPowerOfTwo(alignment) {
		return fmt.Errorf("%w: %d", ErrInvalidAlignment, alignment)
	}
	self.data_alignment = alignment
	return nil
}

// Get returns the node filed under name at the root of the tree.
func (self *ResourceManager) Get(name string) (*ResourceNode, error) {
	node, pres := self.resources.Get(name)
	if !pres {
		return nil, fmt.Errorf("%w: resource %v", ErrResourceNotFound, name)
	}
	return node, nil
}

// Lookup follows a path of keys from the root to a resource.
func (self *ResourceManager) Lookup(path ...string) (*Resource, error) {
	tree := self.resources
	for idx, key := range path {
		node, pres := tree.Get(key)
		if !pres {
			return nil, fmt.Errorf("%w: resource %v", ErrResourceNotFound,
				strings.Join(path[:idx+1], "/"))
		}

		if node.Kind == LeafNode {
			if idx != len(path)-1 {
				break
			}
			return node.Resource, nil
		}
		tree = node.Tree
	}

	return nil, fmt.Errorf("%w: %v is not a resource", ErrResourceNotFound,
		strings.Join(path, "/"))
}

// ResourcesOfType yields every resource filed under the named type.
// Each range over the sequence walks the tree again.
func (self *ResourceManager) ResourcesOfType(name string) (iter.Seq[*Resource], error) {
	node, pres := self.resources.Get(name)
	if !pres {
		return nil, fmt.Errorf("%w: resource with ID %v", ErrResourceNotFound, name)
	}

	if node.Kind == LeafNode {
		return func(yield func(*Resource) bool) {
			yield(node.Resource)
		}, nil
	}
	return Flatten(node.Tree), nil
}

func (self *ResourceManager) ResourcesOfTypeID(id ResourceType) (iter.Seq[*Resource], error) {
	return self.ResourcesOfType(id.String())
}

// Resources yields every resource in the tree in on-disk order.
func (self *ResourceManager) Resources() iter.Seq[*Resource] {
	return Flatten(self.resources)
}

// Flatten yields the leaves of tree depth first, in insertion order.
func Flatten(tree *ResourceTree) iter.Seq[*Resource] {
	return func(yield func(*Resource) bool) {
		walkTree(tree, yield)
	}
}

func walkTree(tree *ResourceTree, yield func(*Resource) bool) bool {
	for _, key := range tree.Keys() {
		node, _ := tree.Get(key)
		switch node.Kind {
		case LeafNode:
			if !yield(node.Resource) {
				return false
			}

		case SubtreeNode:
			if !walkTree(node.Tree, yield) {
				return false
			}
		}
	}
	return true
}

func (self *ResourceManager) ShowResourceTree(w io.Writer) {
	showResourceTree(w, self.resources, 0)
}

func showResourceTree(w io.Writer, tree *ResourceTree, indent int) {
	for _, name := range tree.Keys() {
		node, _ := tree.Get(name)
		switch node.Kind {
		case LeafNode:
			fmt.Fprintf(w, "%s - name: %s ID: %s\n",
				strings.Repeat(" ", indent), name, node.Resource.Type)

		case SubtreeNode:
			fmt.Fprintf(w, "%s + name: %s\n", strings.Repeat(" ", indent), name)
			showResourceTree(w, node.Tree, indent+1)
		}
	}
}

// ShowResourceInfo prints the location and the first bytes of every
// resource. This loads all payloads.
func (self *ResourceManager) ShowResourceInfo(w io.Writer) {
	for resource := range self.Resources() {
		data, err := resource.Data()
		if err != nil {
			fmt.Fprintf(w, "* resource: %s error: %v\n", resource.Name, err)
			continue
		}

		if len(data) > 64 {
			data = data[:64]
		}
		fmt.Fprintf(w, "* resource: %s offset=0x%02x size=0x%02x header: %q\n",
			resource.Name, resource.Offset(), resource.Size(), data)
	}
}

func (self *ResourceManager) AddResource(name string, data []byte) error {
	return fmt.Errorf("%w: adding resource %v", ErrNotSupported, name)
}

func (self *ResourceManager) DeleteResource(name string) error {
	return fmt.Errorf("%w: deleting resource %v", ErrNotSupported, name)
}
