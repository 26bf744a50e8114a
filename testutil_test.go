package pe

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/alecthomas/assert"
)

// Builders for small synthetic PE32 images.

const (
	testFileAlignment    = 0x200
	testSectionAlignment = 0x1000
	testHeaderSize       = 0x200

	testOptionalHeader  = 0x58
	testCheckSumOffset  = testOptionalHeader + 64
	testDataDirectories = testOptionalHeader + 96
	testSectionTable    = testOptionalHeader + 0xE0
)

// A node of a resource tree to lay out. Nodes without children are
// leaves.
type testNode struct {
	Id       uint16
	Name     string
	Children []*testNode
	Data     []byte
	CodePage uint32
}

func dirNode(id uint16, name string, children ...*testNode) *testNode {
	return &testNode{Id: id, Name: name, Children: children}
}

func leafNode(id uint16, name string, data []byte) *testNode {
	return &testNode{Id: id, Name: name, Data: data, CodePage: 1252}
}

func putUint16(data []byte, offset int64, value uint16) {
	binary.LittleEndian.PutUint16(data[offset:], value)
}

func putUint32(data []byte, offset int64, value uint32) {
	binary.LittleEndian.PutUint32(data[offset:], value)
}

func utf16Bytes(value string) []byte {
	result := []byte{}
	for _, c := range utf16.Encode([]rune(value)) {
		result = binary.LittleEndian.AppendUint16(result, c)
	}
	return result
}

// buildResourceSection lays out the tree the way resource compilers
// do: all directories breadth first, then the data entries, then the
// names, then the payloads each aligned to alignment. Returns the
// section bytes (padded to the file alignment) and the directory size.
func buildResourceSection(va uint32, alignment int64, root []*testNode) ([]byte, uint32) {
	dir_offsets := make(map[*testNode]int64)
	entry_offsets := make(map[*testNode]int64)
	name_offsets := make(map[*testNode]int64)
	payload_offsets := make(map[*testNode]int64)

	offset := int64(16 + 8*len(root))
	queue := [][]*testNode{root}
	for len(queue) > 0 {
		children := queue[0]
		queue = queue[1:]
		for _, child := range children {
			if child.Children != nil {
				dir_offsets[child] = offset
				offset += int64(16 + 8*len(child.Children))
				queue = append(queue, child.Children)
			}
		}
	}

	var nodes []*testNode
	var walk func(children []*testNode)
	walk = func(children []*testNode) {
		for _, child := range children {
			nodes = append(nodes, child)
			if child.Children != nil {
				walk(child.Children)
			}
		}
	}
	walk(root)

	for _, node := range nodes {
		if node.Children == nil {
			entry_offsets[node] = offset
			offset += 16
		}
	}

	for _, node := range nodes {
		if node.Name != "" {
			name_offsets[node] = offset
			offset += int64(2 + 2*len(node.Name))
		}
	}

	for _, node := range nodes {
		if node.Children == nil {
			offset = AlignInt(offset, alignment)
			payload_offsets[node] = offset
			offset += int64(len(node.Data))
		}
	}
	directory_size := offset

	section := make([]byte, AlignInt(directory_size, testFileAlignment))

	var writeDir func(children []*testNode, at int64)
	writeDir = func(children []*testNode, at int64) {
		named := 0
		for _, child := range children {
			if child.Name != "" {
				named++
			}
		}
		putUint16(section, at+12, uint16(named))
		putUint16(section, at+14, uint16(len(children)-named))

		for i, child := range children {
			entry := at + 16 + int64(8*i)

			name := uint32(child.Id)
			if child.Name != "" {
				name = resourceHighBit | uint32(name_offsets[child])
			}
			putUint32(section, entry, name)

			if child.Children != nil {
				putUint32(section, entry+4, resourceHighBit|uint32(dir_offsets[child]))
				writeDir(child.Children, dir_offsets[child])
			} else {
				putUint32(section, entry+4, uint32(entry_offsets[child]))
			}
		}
	}
	writeDir(root, 0)

	for _, node := range nodes {
		if node.Name != "" {
			at := name_offsets[node]
			putUint16(section, at, uint16(len(node.Name)))
			copy(section[at+2:], utf16Bytes(node.Name))
		}

		if node.Children == nil {
			at := entry_offsets[node]
			putUint32(section, at, va+uint32(payload_offsets[node]))
			putUint32(section, at+4, uint32(len(node.Data)))
			putUint32(section, at+8, node.CodePage)
			copy(section[payload_offsets[node]:], node.Data)
		}
	}

	return section, uint32(directory_size)
}

type testSection struct {
	Name           string
	VirtualAddress uint32
	VirtualSize    uint32

	// Raw data, padded to the file alignment by the builder.
	Data []byte
}

type testImage struct {
	Sections []testSection

	ResourceRVA  uint32
	ResourceSize uint32

	Overlay     []byte
	Certificate []byte
	CheckSum    bool
}

func (self *testImage) Build() []byte {
	out := make([]byte, testHeaderSize)
	copy(out, "MZ")
	putUint32(out, 0x3c, 0x40)
	copy(out[0x40:], "PE\x00\x00")

	// IMAGE_FILE_HEADER
	putUint16(out, 0x44, 0x14c)
	putUint16(out, 0x46, uint16(len(self.Sections)))
	putUint32(out, 0x48, 0x5f000000)
	putUint16(out, 0x54, 0xE0)
	putUint16(out, 0x56, 0x0102)

	// IMAGE_OPTIONAL_HEADER
	putUint16(out, testOptionalHeader, 0x10b)
	putUint32(out, testOptionalHeader+28, 0x400000)
	putUint32(out, testOptionalHeader+32, testSectionAlignment)
	putUint32(out, testOptionalHeader+36, testFileAlignment)
	putUint32(out, testOptionalHeader+60, testHeaderSize)
	putUint32(out, testOptionalHeader+92, 16)

	putUint32(out, testDataDirectories+8*IMAGE_DIRECTORY_ENTRY_RESOURCE, self.ResourceRVA)
	putUint32(out, testDataDirectories+8*IMAGE_DIRECTORY_ENTRY_RESOURCE+4, self.ResourceSize)

	image_end := int64(0)
	pointer := int64(testHeaderSize)
	for i, section := range self.Sections {
		header := int64(testSectionTable + 40*i)
		raw_size := AlignInt(int64(len(section.Data)), testFileAlignment)

		copy(out[header:header+8], section.Name)
		putUint32(out, header+8, section.VirtualSize)
		putUint32(out, header+12, section.VirtualAddress)
		putUint32(out, header+16, uint32(raw_size))
		putUint32(out, header+20, uint32(pointer))
		putUint32(out, header+36, 0x40000040)

		out = append(out, AlignData(append([]byte{}, section.Data...), testFileAlignment)...)
		pointer += raw_size

		end := int64(section.VirtualAddress) + int64(section.VirtualSize)
		if end > image_end {
			image_end = end
		}
	}
	putUint32(out, testOptionalHeader+56, uint32(AlignInt(image_end, testSectionAlignment)))

	out = append(out, self.Overlay...)

	if self.Certificate != nil {
		putUint32(out, testDataDirectories+8*IMAGE_DIRECTORY_ENTRY_SECURITY, uint32(len(out)))
		putUint32(out, testDataDirectories+8*IMAGE_DIRECTORY_ENTRY_SECURITY+4,
			uint32(len(self.Certificate)))
		out = append(out, self.Certificate...)
	}

	if self.CheckSum {
		putUint32(out, testCheckSumOffset, PEChecksum(out, testCheckSumOffset))
	}

	return out
}

// A single .rsrc section at RVA 0x3000 holding root.
func resourceImage(alignment int64, root []*testNode) *testImage {
	section, size := buildResourceSection(0x3000, alignment, root)
	return &testImage{
		Sections: []testSection{{
			Name:           ".rsrc",
			VirtualAddress: 0x3000,
			VirtualSize:    size,
			Data:           section,
		}},
		ResourceRVA:  0x3000,
		ResourceSize: size,
	}
}

func openTestImage(t *testing.T, data []byte) *PEImage {
	image, err := NewPEImage(bytes.NewReader(data), int64(len(data)))
	assert.NoError(t, err)
	return image
}

func openTestResources(t *testing.T, data []byte) (*PEImage, *ResourceManager) {
	image := openTestImage(t, data)
	resources, err := image.Resources()
	assert.NoError(t, err)
	return image, resources
}

// RT_ICON with two named leaves directly under the type.
func iconTree() []*testNode {
	return []*testNode{
		dirNode(uint16(RT_ICON), "",
			leafNode(0, "ICON_A", []byte("AAAA")),
			leafNode(0, "ICON_B", []byte("BBBBBBBB"))),
	}
}

// A type/name/language tree like a real executable carries.
func richTree() []*testNode {
	return []*testNode{
		dirNode(uint16(RT_ICON), "",
			dirNode(1, "", leafNode(1033, "", bytes.Repeat([]byte{0x11}, 40))),
			dirNode(2, "", leafNode(1033, "", bytes.Repeat([]byte{0x22}, 29)))),
		dirNode(uint16(RT_VERSION), "",
			dirNode(1, "", leafNode(1033, "", buildVersionInfo("Velocidex")))),
		dirNode(uint16(RT_MESSAGETABLE), "",
			dirNode(1, "", leafNode(1033, "", buildMessageTable()))),
		dirNode(0, "CUSTOM",
			dirNode(0, "CONFIG", leafNode(1033, "", []byte("hello")))),
		dirNode(uint16(RT_MANIFEST), "",
			dirNode(1, "", leafNode(1033, "", []byte("<assembly/>")))),
	}
}

func richPayloads() map[string][]byte {
	return map[string][]byte{
		"RT_ICON/1/1033":         bytes.Repeat([]byte{0x11}, 40),
		"RT_ICON/2/1033":         bytes.Repeat([]byte{0x22}, 29),
		"RT_VERSION/1/1033":      buildVersionInfo("Velocidex"),
		"RT_MESSAGETABLE/1/1033": buildMessageTable(),
		"CUSTOM/CONFIG/1033":     []byte("hello"),
		"RT_MANIFEST/1/1033":     []byte("<assembly/>"),
	}
}

// One node of a VS_VERSIONINFO tree. Text values count characters in
// wValueLength.
func versionNode(key string, value []byte, text bool, children ...[]byte) []byte {
	out := make([]byte, 6)
	out = append(out, utf16Bytes(key)...)
	out = append(out, 0, 0)
	out = AlignData(out, 4)

	value_length := len(value)
	if text {
		putUint16(out, 4, 1)
		value_length = len(value) / 2
	}
	putUint16(out, 2, uint16(value_length))

	out = append(out, value...)
	for _, child := range children {
		out = AlignData(out, 4)
		out = append(out, child...)
	}
	putUint16(out, 0, uint16(len(out)))
	return out
}

func versionString(key, value string) []byte {
	return versionNode(key, append(utf16Bytes(value), 0, 0), true)
}

func buildVersionInfo(company string) []byte {
	fixed := make([]byte, 52)
	putUint32(fixed, 0, VS_FIXEDFILEINFO_SIGNATURE)
	putUint32(fixed, 4, 0x10000)
	putUint32(fixed, 8, 1<<16|2)
	putUint32(fixed, 12, 3<<16|4)
	putUint32(fixed, 16, 5<<16|6)
	putUint32(fixed, 20, 7<<16|8)

	return versionNode("VS_VERSION_INFO", fixed, false,
		versionNode("StringFileInfo", nil, true,
			versionNode("040904b0", nil, true,
				versionString("CompanyName", company),
				versionString("FileVersion", "1.2.3.4"),
				versionString("ProductName", "Widget"))),
		versionNode("VarFileInfo", nil, true,
			versionNode("Translation", []byte{0x09, 0x04, 0xb0, 0x04}, false)))
}

// One block with a unicode and an ANSI message.
func buildMessageTable() []byte {
	out := make([]byte, 16)
	putUint32(out, 0, 1)
	putUint32(out, 4, 1)
	putUint32(out, 8, 2)
	putUint32(out, 12, 16)

	unicode_text := append(utf16Bytes("Hello"), 0, 0)
	entry := make([]byte, 4)
	putUint16(entry, 0, uint16(4+len(unicode_text)))
	putUint16(entry, 2, 1)
	out = append(out, append(entry, unicode_text...)...)

	ansi_text := []byte("World\x00\x00\x00")
	entry = make([]byte, 4)
	putUint16(entry, 0, uint16(4+len(ansi_text)))
	putUint16(entry, 2, 0)
	out = append(out, append(entry, ansi_text...)...)

	return out
}
