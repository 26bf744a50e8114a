package pe

import (
	"io"
	"time"
)

type UnixTimeStamp struct {
	time.Time
}

func (self *UnixTimeStamp) String() string {
	result, _ := self.UTC().MarshalText()
	return string(result)
}

// PE timestamps are 32 bit seconds since the epoch.
func (self *PeProfile) UnixTimeStamp(reader io.ReaderAt, offset int64) *UnixTimeStamp {
	timestamp := ParseUint32(reader, offset)
	return &UnixTimeStamp{time.Unix(int64(timestamp), 0)}
}

func (self *IMAGE_FILE_HEADER) TimeStamp() *UnixTimeStamp {
	return self.Profile.UnixTimeStamp(self.Reader,
		self.Profile.Off_IMAGE_FILE_HEADER_TimeDateStamp+self.Offset)
}
