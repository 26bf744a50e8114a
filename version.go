// Parse the RT_VERSION resource. A version resource is a tree of
// nodes which all share the same header: wLength, wValueLength, wType
// and a null terminated UTF-16 key, followed by the value and the
// children, each aligned to 32 bits.
//
// https://learn.microsoft.com/en-us/windows/win32/menurc/vs-versioninfo

package pe

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Velocidex/ordereddict"
)

const VS_FIXEDFILEINFO_SIGNATURE = 0xFEEF04BD

type VS_VERSIONINFO struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) VS_VERSIONINFO(reader io.ReaderAt, offset int64) *VS_VERSIONINFO {
	return &VS_VERSIONINFO{Reader: reader, Offset: offset, Profile: self}
}

func (self *VS_VERSIONINFO) Length() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_VS_VERSIONINFO_Length+self.Offset)
}

func (self *VS_VERSIONINFO) ValueLength() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_VS_VERSIONINFO_ValueLength+self.Offset)
}

// 1 for text values, 0 for binary ones.
func (self *VS_VERSIONINFO) Type() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_VS_VERSIONINFO_Type+self.Offset)
}

func (self *VS_VERSIONINFO) Key() string {
	return ParseTerminatedUTF16String(self.Reader,
		self.Profile.Off_VS_VERSIONINFO_szKey+self.Offset)
}

// The Value is located after the szKey rounded up to the next word
// size.
func (self *VS_VERSIONINFO) valueOffset() int64 {
	return RoundUpToWordAlignment(self.Offset +
		self.Profile.Off_VS_VERSIONINFO_szKey +
		int64(len(self.Key())+1)*2)
}

// wValueLength counts characters for text values.
func (self *VS_VERSIONINFO) valueSize() int64 {
	if self.Type() == 1 {
		return int64(self.ValueLength()) * 2
	}
	return int64(self.ValueLength())
}

func (self *VS_VERSIONINFO) StringValue() string {
	if self.ValueLength() == 0 {
		return ""
	}
	return ParseTerminatedUTF16String(self.Reader, self.valueOffset())
}

// FixedFileInfo is only present on the root node.
func (self *VS_VERSIONINFO) FixedFileInfo() *TagVS_FIXEDFILEINFO {
	if self.valueSize() < 52 {
		return nil
	}

	value := self.Profile.TagVS_FIXEDFILEINFO(self.Reader, self.valueOffset())
	if value.Signature() != VS_FIXEDFILEINFO_SIGNATURE {
		return nil
	}
	return value
}

// Children follow the value rounded up to the next word size.
func (self *VS_VERSIONINFO) Children() []*VS_VERSIONINFO {
	result := []*VS_VERSIONINFO{}

	offset := RoundUpToWordAlignment(self.valueOffset() + self.valueSize())
	end := self.Offset + int64(self.Length())

	for offset < end && len(result) < MAX_VERSION_ENTRIES {
		child := self.Profile.VS_VERSIONINFO(self.Reader, offset)

		length := int64(child.Length())
		if length == 0 || offset+length > end {
			break
		}
		result = append(result, child)
		offset += RoundUpToWordAlignment(length)
	}

	return result
}

type TagVS_FIXEDFILEINFO struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) TagVS_FIXEDFILEINFO(reader io.ReaderAt, offset int64) *TagVS_FIXEDFILEINFO {
	return &TagVS_FIXEDFILEINFO{Reader: reader, Offset: offset, Profile: self}
}

func (self *TagVS_FIXEDFILEINFO) Signature() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_TagVS_FIXEDFILEINFO_Signature+self.Offset)
}

func (self *TagVS_FIXEDFILEINFO) FileVersion() string {
	return formatVersion(
		ParseUint32(self.Reader, self.Profile.Off_TagVS_FIXEDFILEINFO_FileVersionMS+self.Offset),
		ParseUint32(self.Reader, self.Profile.Off_TagVS_FIXEDFILEINFO_FileVersionLS+self.Offset))
}

func (self *TagVS_FIXEDFILEINFO) ProductVersion() string {
	return formatVersion(
		ParseUint32(self.Reader, self.Profile.Off_TagVS_FIXEDFILEINFO_ProductVersionMS+self.Offset),
		ParseUint32(self.Reader, self.Profile.Off_TagVS_FIXEDFILEINFO_ProductVersionLS+self.Offset))
}

func formatVersion(ms, ls uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", ms>>16, ms&0xffff, ls>>16, ls&0xffff)
}

// ParseVersionInformation collects the fixed versions and every string
// of every string table in a VS_VERSIONINFO blob. Later tables
// override earlier ones for the same key.
func ParseVersionInformation(data []byte) *ordereddict.Dict {
	result := ordereddict.NewDict()

	profile := NewPeProfile()
	vs_info := profile.VS_VERSIONINFO(bytes.NewReader(data), 0)
	if vs_info.Key() != "VS_VERSION_INFO" {
		return result
	}

	fixed := vs_info.FixedFileInfo()
	if fixed != nil {
		result.Set("FixedFileVersion", fixed.FileVersion())
		result.Set("FixedProductVersion", fixed.ProductVersion())
	}

	for _, child := range vs_info.Children() {
		if child.Key() != "StringFileInfo" {
			continue
		}

		for _, string_table := range child.Children() {
			for _, resource_string := range string_table.Children() {
				result.Set(resource_string.Key(), resource_string.StringValue())
			}
		}
	}

	return result
}

// VersionInformation parses every RT_VERSION resource. Payloads are
// read through the resources so edited version blocks are reflected.
func (self *ResourceManager) VersionInformation() (*ordereddict.Dict, error) {
	resources, err := self.ResourcesOfTypeID(RT_VERSION)
	if err != nil {
		return nil, err
	}

	result := ordereddict.NewDict()
	for resource := range resources {
		data, err := resource.Data()
		if err != nil {
			return nil, err
		}

		info := ParseVersionInformation(data)
		for _, key := range info.Keys() {
			value, _ := info.Get(key)
			result.Set(key, value)
		}
	}
	return result, nil
}
