package pe

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/alecthomas/assert"
)

func TestRoundTripIdentity(t *testing.T) {
	for _, alignment := range []int64{1, 2, 4, 8} {
		data := resourceImage(alignment, richTree()).Build()
		image, resources := openTestResources(t, data)

		section := image.SectionByName(".rsrc")
		before, err := section.Data()
		assert.NoError(t, err)
		before = append([]byte{}, before...)

		assert.NoError(t, resources.Rebuild())

		after, err := section.Data()
		assert.NoError(t, err)
		assert.Equal(t, before, after)
		assert.False(t, section.Modified())

		output, err := image.Bytes()
		assert.NoError(t, err)
		assert.Equal(t, data, output)
	}
}

func TestIconScenario(t *testing.T) {
	cases := []struct {
		alignment int64
		shift     uint32
	}{
		// The shift is the size delta rounded up to the alignment.
		{1, 2},
		{2, 2},
		{0, 4}, // inferred from the layout
		{8, 8},
	}

	for _, test_case := range cases {
		image, resources := openTestResources(t, resourceImage(2, iconTree()).Build())
		if test_case.alignment > 0 {
			assert.NoError(t, resources.SetDataAlignment(test_case.alignment))
		}

		icon_a, err := resources.Lookup("RT_ICON", "ICON_A")
		assert.NoError(t, err)

		icon_b, err := resources.Lookup("RT_ICON", "ICON_B")
		assert.NoError(t, err)

		old_a := icon_a.Offset()
		old_b := icon_b.Offset()
		assert.Equal(t, old_a+4, old_b)

		assert.NoError(t, icon_a.SetData([]byte("aaaaaa")))
		assert.Equal(t, 6, icon_a.Size())
		assert.Equal(t, old_a, icon_a.Offset())
		assert.Equal(t, old_b+test_case.shift, icon_b.Offset())

		// ICON_B's bytes moved unchanged.
		section_data, err := image.SectionByName(".rsrc").Data()
		assert.NoError(t, err)

		offset := icon_b.SectionOffset()
		assert.Equal(t, []byte("BBBBBBBB"), section_data[offset:offset+8])

		offset = icon_a.SectionOffset()
		assert.Equal(t, []byte("aaaaaa"), section_data[offset:offset+6])

		// And the written image agrees.
		output, err := image.Bytes()
		assert.NoError(t, err)

		_, reparsed := openTestResources(t, output)
		reparsed_b, err := reparsed.Lookup("RT_ICON", "ICON_B")
		assert.NoError(t, err)
		assert.Equal(t, old_b+test_case.shift, reparsed_b.Offset())

		data, err := reparsed_b.Data()
		assert.NoError(t, err)
		assert.Equal(t, []byte("BBBBBBBB"), data)

		reparsed_a, err := reparsed.Lookup("RT_ICON", "ICON_A")
		assert.NoError(t, err)
		data, err = reparsed_a.Data()
		assert.NoError(t, err)
		assert.Equal(t, []byte("aaaaaa"), data)
	}
}

func assertMonotonic(t *testing.T, resources *ResourceManager) {
	all := []*Resource{}
	for resource := range resources.Resources() {
		all = append(all, resource)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].SectionOffset() < all[j].SectionOffset()
	})

	for i := 0; i+1 < len(all); i++ {
		assert.True(t, all[i+1].SectionOffset() >=
			all[i].SectionOffset()+int64(all[i].Size()),
			"%v overlaps %v", all[i].PathString(), all[i+1].PathString())
	}
}

func TestOffsetMonotonicity(t *testing.T) {
	image, resources := openTestResources(t, resourceImage(4, richTree()).Build())
	expected := richPayloads()

	updates := []struct {
		path string
		data []byte
	}{
		{"RT_ICON/1/1033", bytes.Repeat([]byte{0x33}, 100)},
		{"RT_MANIFEST/1/1033", []byte("<a/>")},
		{"RT_ICON/2/1033", []byte{}},
		{"CUSTOM/CONFIG/1033", bytes.Repeat([]byte("config"), 200)},
		{"RT_ICON/2/1033", []byte{1, 2, 3}},
	}

	for _, update := range updates {
		resource, err := resources.Lookup(strings.Split(update.path, "/")...)
		assert.NoError(t, err)

		assert.NoError(t, resource.SetData(update.data))
		assert.Equal(t, len(update.data), resource.Size())
		expected[update.path] = update.data

		assertMonotonic(t, resources)

		for resource := range resources.Resources() {
			data, err := resource.Data()
			assert.NoError(t, err)
			assert.Equal(t, expected[resource.PathString()], data)
		}
	}

	// Everything survives a trip through the file.
	output, err := image.Bytes()
	assert.NoError(t, err)

	_, reparsed := openTestResources(t, output)
	assertMonotonic(t, reparsed)

	count := 0
	for resource := range reparsed.Resources() {
		data, err := resource.Data()
		assert.NoError(t, err)
		assert.Equal(t, expected[resource.PathString()], data, resource.PathString())
		count++
	}
	assert.Equal(t, len(expected), count)
}

func TestSizeDerivation(t *testing.T) {
	_, resources := openTestResources(t, resourceImage(8, richTree()).Build())

	resource, err := resources.Lookup("RT_MANIFEST", "1", "1033")
	assert.NoError(t, err)

	for _, size := range []int{0, 1, 7, 100, 0x300, 11} {
		payload := bytes.Repeat([]byte{'m'}, size)
		assert.NoError(t, resource.SetData(payload))
		assert.Equal(t, size, resource.Size())

		data, err := resource.Data()
		assert.NoError(t, err)
		assert.Equal(t, payload, data)
	}
}

func TestDirectorySizeTracksData(t *testing.T) {
	image, resources := openTestResources(t, resourceImage(2, iconTree()).Build())
	directory := image.NTHeader().DataDirectory(IMAGE_DIRECTORY_ENTRY_RESOURCE)
	assert.Equal(t, uint32(0x80), directory.DirSize())

	icon_b, err := resources.Lookup("RT_ICON", "ICON_B")
	assert.NoError(t, err)

	assert.NoError(t, icon_b.SetData(bytes.Repeat([]byte{'b'}, 0x20)))
	assert.Equal(t, uint32(0x80+0x18), directory.DirSize())

	assert.NoError(t, icon_b.SetData([]byte{'b'}))
	assert.Equal(t, uint32(0x80-7), directory.DirSize())
}

// Refuses to patch the data directory.
type readOnlyContainer struct {
	*PEImage
}

func (self *readOnlyContainer) SetImageDirectorySize(index int64, size uint32) error {
	return errors.New("read only")
}

func TestRebuildRollback(t *testing.T) {
	image := openTestImage(t, resourceImage(4, richTree()).Build())
	resources, err := NewResourceManager(&readOnlyContainer{image})
	assert.NoError(t, err)

	resource, err := resources.Lookup("RT_ICON", "1", "1033")
	assert.NoError(t, err)

	before, err := resource.Data()
	assert.NoError(t, err)
	records := resources.Records()

	err = resource.SetData([]byte("new icon payload"))
	assert.True(t, errors.Is(err, ErrRebuild))

	data, err := resource.Data()
	assert.NoError(t, err)
	assert.Equal(t, before, data)
	assert.Equal(t, len(before), resource.Size())
	assert.Equal(t, records, resources.Records())
	assert.False(t, image.SectionByName(".rsrc").Modified())
}

func TestEstimateSectionSize(t *testing.T) {
	_, resources := openTestResources(t, resourceImage(2, iconTree()).Build())

	// Payloads start at 0x74 and are each rounded up to 4 bytes.
	assert.Equal(t, int64(0x74+4+8), resources.EstimateSectionSize())
}

// Two named RT_RCDATA leaves whose name strings follow the payloads:
// payloads at 0x58 and 0x60, names at 0x80 and 0x88.
func namesAfterDataImage() []byte {
	data := make([]byte, 0x200)

	putUint16(data, 14, 1)
	putUint32(data, 16, uint32(RT_RCDATA))
	putUint32(data, 20, resourceHighBit|0x18)

	putUint16(data, 0x18+12, 2)
	putUint32(data, 0x28, resourceHighBit|0x80)
	putUint32(data, 0x2c, 0x38)
	putUint32(data, 0x30, resourceHighBit|0x88)
	putUint32(data, 0x34, 0x48)

	putUint32(data, 0x38, 0x3058)
	putUint32(data, 0x3c, 4)
	putUint32(data, 0x48, 0x3060)
	putUint32(data, 0x4c, 4)

	copy(data[0x58:], "AAAA")
	copy(data[0x60:], "BBBB")

	putUint16(data, 0x80, 1)
	copy(data[0x82:], utf16Bytes("A"))
	putUint16(data, 0x88, 1)
	copy(data[0x8a:], utf16Bytes("B"))

	return (&testImage{
		Sections: []testSection{{
			Name: ".rsrc", VirtualAddress: 0x3000, VirtualSize: 0x8c, Data: data,
		}},
		ResourceRVA:  0x3000,
		ResourceSize: 0x8c,
	}).Build()
}

func TestNamesAfterData(t *testing.T) {
	image, resources := openTestResources(t, namesAfterDataImage())

	resource_a, err := resources.Lookup("RT_RCDATA", "A")
	assert.NoError(t, err)

	// Growing A would run over both names.
	err = resource_a.SetData(bytes.Repeat([]byte{'a'}, 0x30))
	assert.True(t, errors.Is(err, ErrRebuild))

	data, err := resource_a.Data()
	assert.NoError(t, err)
	assert.Equal(t, []byte("AAAA"), data)
	assert.False(t, image.SectionByName(".rsrc").Modified())

	// B can grow into the padding in front of the names.
	resource_b, err := resources.Lookup("RT_RCDATA", "B")
	assert.NoError(t, err)
	assert.NoError(t, resource_b.SetData([]byte("BBBBBBBB")))

	output, err := image.Bytes()
	assert.NoError(t, err)

	_, reparsed := openTestResources(t, output)
	for name, expected := range map[string]string{"A": "AAAA", "B": "BBBBBBBB"} {
		resource, err := reparsed.Lookup("RT_RCDATA", name)
		assert.NoError(t, err)

		data, err := resource.Data()
		assert.NoError(t, err)
		assert.Equal(t, []byte(expected), data)
	}
}

func TestVirtualSizeTracksData(t *testing.T) {
	image, resources := openTestResources(t, resourceImage(2, iconTree()).Build())
	section := image.SectionByName(".rsrc")
	assert.Equal(t, int64(0x80), section.VirtualSize())

	icon_b, err := resources.Lookup("RT_ICON", "ICON_B")
	assert.NoError(t, err)

	assert.NoError(t, icon_b.SetData([]byte{'b'}))
	assert.Equal(t, int64(0x79), section.VirtualSize())

	output, err := image.Bytes()
	assert.NoError(t, err)

	reparsed := openTestImage(t, output)
	assert.Equal(t, uint32(0x79),
		reparsed.SectionByName(".rsrc").Header().VirtualSize())

	assert.NoError(t, icon_b.SetData(bytes.Repeat([]byte{'b'}, 0x10)))
	assert.Equal(t, int64(0x88), section.VirtualSize())
}

func TestSetDataCopiesPayload(t *testing.T) {
	_, resources := openTestResources(t, resourceImage(2, iconTree()).Build())

	icon_a, err := resources.Lookup("RT_ICON", "ICON_A")
	assert.NoError(t, err)

	payload := []byte("xxxx")
	assert.NoError(t, icon_a.SetData(payload))
	payload[0] = 'y'

	data, err := icon_a.Data()
	assert.NoError(t, err)
	assert.Equal(t, []byte("xxxx"), data)
}
