package pe

// Helpers for keeping buffers and addresses on the boundaries the
// image expects (FileAlignment, SectionAlignment and resource data
// alignment). A blocksize below 2 means no alignment.

// AlignData pads data with trailing zero bytes until its length is a
// multiple of blocksize.
func AlignData(data []byte, blocksize int) []byte {
	if blocksize <= 1 {
		return data
	}

	needs_alignment := len(data) % blocksize
	if needs_alignment == 0 {
		return data
	}
	return append(data, Pad(blocksize-needs_alignment)...)
}

// AlignInt rounds value up to the next multiple of blocksize.
func AlignInt(value, blocksize int64) int64 {
	if blocksize <= 1 {
		return value
	}

	needs_alignment := value % blocksize
	if needs_alignment == 0 {
		return value
	}
	return value + (blocksize - needs_alignment)
}

func Pad(size int) []byte {
	if size <= 0 {
		return nil
	}
	return make([]byte, size)
}

func isPowerOfTwo(value int64) bool {
	return value > 0 && value&(value-1) == 0
}
