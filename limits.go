package pe

import "sync/atomic"

const (
	// Resource trees are conventionally type -> name -> language.
	MAX_RESOURCE_DEPTH            = 8
	MAX_RESOURCE_DIRECTORY_LENGTH = 0x1000
	MAX_RESOURCE_NAME_LENGTH      = 0x400
	MAX_RESOURCE_COUNT            = 0x10000

	// Visual C++ pads resource data to 8 bytes.
	MAX_DATA_ALIGNMENT = 8

	MAX_NUMBER_OF_SECTIONS     = 96
	MAX_WIN_CERTIFICATE_LENGTH = 10 * 1024 * 1024

	MAX_RESOURCE_BLOCKS = 1000
	MAX_MESSAGES        = 10000
	MAX_MESSAGE_LENGTH  = 10000
	MAX_VERSION_ENTRIES = 200
)

var (
	RESOURCE_SIZE_LIMIT int64 = 100 * 1024 * 1024 // 100Mb
)

// Payloads larger than this are refused when loading resource data.
func SetResourceSizeLimit(limit int64) {
	atomic.SwapInt64(&RESOURCE_SIZE_LIMIT, limit)
}

func GetResourceSizeLimit() int64 {
	return atomic.LoadInt64(&RESOURCE_SIZE_LIMIT)
}
