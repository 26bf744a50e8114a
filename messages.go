package pe

import (
	"bytes"
	"io"
	"strings"
)

// References: https://github.com/nsacyber/Windows-Event-Log-Messages/blob/master/welm/WelmLibrary/EventMessageFile.cs

// An RT_MESSAGETABLE payload. All offsets inside it are relative to the
// start of the payload.
type MESSAGE_RESOURCE_DATA struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) MESSAGE_RESOURCE_DATA(reader io.ReaderAt, offset int64) *MESSAGE_RESOURCE_DATA {
	return &MESSAGE_RESOURCE_DATA{Reader: reader, Offset: offset, Profile: self}
}

func (self *MESSAGE_RESOURCE_DATA) NumberOfBlocks() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_MESSAGE_RESOURCE_DATA_NumberOfBlocks+self.Offset)
}

func (self *MESSAGE_RESOURCE_DATA) Blocks() []*MESSAGE_RESOURCE_BLOCK {
	count := int(CapUint32(self.NumberOfBlocks(), MAX_RESOURCE_BLOCKS))
	result := make([]*MESSAGE_RESOURCE_BLOCK, 0, count)

	offset := self.Profile.Off_MESSAGE_RESOURCE_DATA__Blocks + self.Offset
	for i := 0; i < count; i++ {
		block := self.Profile.MESSAGE_RESOURCE_BLOCK(self.Reader, offset)
		result = append(result, block)
		offset += int64(block.Size())
	}
	return result
}

func (self *MESSAGE_RESOURCE_DATA) Messages() []*Message {
	result := []*Message{}

	for _, block := range self.Blocks() {
		result = append(result, block.Messages()...)
		if len(result) > MAX_MESSAGES {
			break
		}
	}

	return result
}

type MESSAGE_RESOURCE_BLOCK struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) MESSAGE_RESOURCE_BLOCK(reader io.ReaderAt, offset int64) *MESSAGE_RESOURCE_BLOCK {
	return &MESSAGE_RESOURCE_BLOCK{Reader: reader, Offset: offset, Profile: self}
}

func (self *MESSAGE_RESOURCE_BLOCK) Size() int {
	return 12
}

func (self *MESSAGE_RESOURCE_BLOCK) LowId() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_MESSAGE_RESOURCE_BLOCK_LowId+self.Offset)
}

func (self *MESSAGE_RESOURCE_BLOCK) HighId() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_MESSAGE_RESOURCE_BLOCK_HighId+self.Offset)
}

func (self *MESSAGE_RESOURCE_BLOCK) OffsetToEntries() uint32 {
	return ParseUint32(self.Reader, self.Profile.Off_MESSAGE_RESOURCE_BLOCK_OffsetToEntries+self.Offset)
}

type Message struct {
	Id      int64
	EventId int
	Message string
}

// Each block contains a list of entries.
func (self *MESSAGE_RESOURCE_BLOCK) Messages() []*Message {
	result := []*Message{}
	offset := int64(self.OffsetToEntries())
	high_id := self.HighId()

	for i := self.LowId(); i <= high_id; i++ {
		item := self.Profile.MESSAGE_RESOURCE_ENTRY(self.Reader, offset)
		length := int64(item.Length())
		if length == 0 {
			break
		}
		offset += length

		// Reserved bit 28
		is_reserved := ((i >> 28) & 1) > 0

		// Customer event is bit 29
		is_customer := ((i >> 29) & 1) > 0

		// Not a Microsoft event from observation, these look like
		// random string resources.
		if !is_customer && is_reserved {
			continue
		}

		// Bottom 16 bits are the event ID.
		result = append(result, &Message{
			Id:      int64(i),
			EventId: int(i & 0xFFFF),
			Message: item.Message()})

		if len(result) > MAX_MESSAGES || i == 0xFFFFFFFF {
			break
		}
	}

	return result
}

type MESSAGE_RESOURCE_ENTRY struct {
	Reader  io.ReaderAt
	Offset  int64
	Profile *PeProfile
}

func (self *PeProfile) MESSAGE_RESOURCE_ENTRY(reader io.ReaderAt, offset int64) *MESSAGE_RESOURCE_ENTRY {
	return &MESSAGE_RESOURCE_ENTRY{Reader: reader, Offset: offset, Profile: self}
}

// Length of the whole entry including the header.
func (self *MESSAGE_RESOURCE_ENTRY) Length() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_MESSAGE_RESOURCE_ENTRY_Length+self.Offset)
}

func (self *MESSAGE_RESOURCE_ENTRY) Flags() uint16 {
	return ParseUint16(self.Reader, self.Profile.Off_MESSAGE_RESOURCE_ENTRY_Flags+self.Offset)
}

func (self *MESSAGE_RESOURCE_ENTRY) Message() string {
	result := ""
	length := CapInt64(int64(self.Length())-self.Profile.Off_MESSAGE_RESOURCE_ENTRY_Text,
		MAX_MESSAGE_LENGTH)

	switch self.Flags() {
	case 0: // AnsiFlag
		result = ParseString(self.Reader,
			self.Profile.Off_MESSAGE_RESOURCE_ENTRY_Text+self.Offset, length)

	case 1: // UnicodeFlag
		result = ParseUTF16String(self.Reader,
			self.Profile.Off_MESSAGE_RESOURCE_ENTRY_Text+self.Offset, length)
	}

	return strings.Split(result, "\x00")[0]
}

// Messages decodes every RT_MESSAGETABLE resource.
func (self *ResourceManager) Messages() ([]*Message, error) {
	resources, err := self.ResourcesOfTypeID(RT_MESSAGETABLE)
	if err != nil {
		return nil, err
	}

	result := []*Message{}
	profile := NewPeProfile()
	for resource := range resources {
		data, err := resource.Data()
		if err != nil {
			return nil, err
		}

		message_data := profile.MESSAGE_RESOURCE_DATA(bytes.NewReader(data), 0)
		result = append(result, message_data.Messages()...)
	}
	return result, nil
}
