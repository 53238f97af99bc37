package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPartition(t *testing.T) {
	c := NewDefault()
	assert.Equal(t, 3, c.Waves())
	assert.Equal(t, WaveToolchain, c.Classify("gcc", "toolchain"))
	assert.Equal(t, WaveLibrary, c.Classify("zlib", "libs"))
	assert.Equal(t, WaveLibrary, c.Classify("openssl", "lib"))
	assert.Equal(t, WaveOther, c.Classify("vim", "editors"))
	assert.Equal(t, WaveOther, c.Classify("mystery", ""))
}

func TestCustomPartitionClampsOutOfRangeWaves(t *testing.T) {
	c := New(map[string]int{"core": 0, "weird": 9}, 2)
	assert.Equal(t, 2, c.Waves())
	assert.Equal(t, 0, c.Classify("base", "core"))
	// Mapped beyond the bucket count falls back to the last wave.
	assert.Equal(t, 1, c.Classify("x", "weird"))
}
