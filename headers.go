package pe

const (
	IMAGE_DIRECTORY_ENTRY_RESOURCE = 2
	IMAGE_DIRECTORY_ENTRY_SECURITY = 4

	IMAGE_NUMBEROF_DIRECTORY_ENTRIES = 16
)

func (self *IMAGE_DOS_HEADER) NTHeader() *IMAGE_NT_HEADERS {
	return self.Profile.IMAGE_NT_HEADERS(
		self.Reader, int64(self.E_lfanew())+self.Offset)
}

// Offset of the first section header. The sections start immediately
// after the OptionalHeader.
func (self *IMAGE_NT_HEADERS) SectionTableOffset() int64 {
	return int64(self.FileHeader().SizeOfOptionalHeader()) +
		self.OptionalHeader().Offset
}

func (self *IMAGE_NT_HEADERS) SectionTableEnd() int64 {
	number_of_sections := CapUint16(self.FileHeader().NumberOfSections(),
		MAX_NUMBER_OF_SECTIONS)
	return self.SectionTableOffset() +
		int64(number_of_sections)*int64((&IMAGE_SECTION_HEADER{}).Size())
}

func (self *IMAGE_NT_HEADERS) Sections() []*IMAGE_SECTION_HEADER {
	result := []*IMAGE_SECTION_HEADER{}

	offset := self.SectionTableOffset()
	number_of_sections := CapUint16(self.FileHeader().NumberOfSections(),
		MAX_NUMBER_OF_SECTIONS)

	for i := 0; i < int(number_of_sections); i++ {
		section := self.Profile.IMAGE_SECTION_HEADER(
			self.Reader, offset)
		result = append(result, section)
		offset += int64(section.Size())
	}

	return result
}

func (self *IMAGE_SECTION_HEADER) Permissions() string {
	characteristics := self.Characteristics()

	result := ""
	if characteristics&0x20000000 > 0 {
		result += "x"
	} else {
		result += "-"
	}

	if characteristics&0x40000000 > 0 {
		result += "r"
	} else {
		result += "-"
	}

	if characteristics&0x80000000 > 0 {
		result += "w"
	} else {
		result += "-"
	}

	return result
}

// Returns nil when the optional header does not carry the requested
// directory.
func (self *IMAGE_NT_HEADERS) DataDirectory(index int64) *IMAGE_DATA_DIRECTORY {
	optional_header := self.OptionalHeader()
	if index < 0 || index >= int64(CapUint32(
		optional_header.NumberOfRvaAndSizes(), IMAGE_NUMBEROF_DIRECTORY_ENTRIES)) {
		return nil
	}

	directory_offset := optional_header.Offset +
		self.Profile.Off_IMAGE_OPTIONAL_HEADER_DataDirectory
	if optional_header.Is64Bit() {
		directory_offset = optional_header.Offset +
			self.Profile.Off_IMAGE_OPTIONAL_HEADER64_DataDirectory
	}

	size_of_image_data_dir := int64((&IMAGE_DATA_DIRECTORY{}).Size())
	return self.Profile.IMAGE_DATA_DIRECTORY(
		self.Reader, directory_offset+index*size_of_image_data_dir)
}

var machineNames = map[uint16]string{
	0x014c: "IMAGE_FILE_MACHINE_I386",
	0x0200: "IMAGE_FILE_MACHINE_IA64",
	0x8664: "IMAGE_FILE_MACHINE_AMD64",
	0x01c4: "IMAGE_FILE_MACHINE_ARMNT",
	0xaa64: "IMAGE_FILE_MACHINE_ARM64",
}

func (self *IMAGE_FILE_HEADER) MachineName() string {
	name, pres := machineNames[self.Machine()]
	if pres {
		return name
	}
	return "IMAGE_FILE_MACHINE_UNKNOWN"
}
