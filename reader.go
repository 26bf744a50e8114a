package pe

import "io"

// Reads exactly size bytes at offset.
func readFull(reader io.ReaderAt, offset int64, size int64) ([]byte, error) {
	if size < 0 || size > GetResourceSizeLimit() {
		return nil, ErrOutOfBounds
	}

	data := make([]byte, size)
	n, err := reader.ReadAt(data, offset)
	if int64(n) == size {
		return data, nil
	}
	if err == nil || err == io.EOF {
		err = ErrOutOfBounds
	}
	return nil, err
}
