package pe

import (
	"testing"

	"github.com/alecthomas/assert"
)

func TestAlignData(t *testing.T) {
	assert.Equal(t, []byte{1, 2, 3, 0}, AlignData([]byte{1, 2, 3}, 4))
	assert.Equal(t, []byte{1, 2, 3, 4}, AlignData([]byte{1, 2, 3, 4}, 4))
	assert.Equal(t, 0x200, len(AlignData([]byte{1}, 0x200)))
	assert.Equal(t, []byte{1}, AlignData([]byte{1}, 1))

	// An empty buffer is already aligned.
	assert.Equal(t, 0, len(AlignData(nil, 8)))
}

func TestAlignInt(t *testing.T) {
	assert.Equal(t, int64(8), AlignInt(1, 8))
	assert.Equal(t, int64(8), AlignInt(8, 8))
	assert.Equal(t, int64(16), AlignInt(9, 8))
	assert.Equal(t, int64(0x1000), AlignInt(0x1, 0x1000))
	assert.Equal(t, int64(7), AlignInt(7, 1))
}

func TestPad(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0}, Pad(3))
	assert.Equal(t, 0, len(Pad(0)))
}
