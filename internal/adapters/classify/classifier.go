// Package classify assigns packages to ordered upgrade waves.
package classify

import "go.porto.sh/porto/internal/core/ports"

var _ ports.WaveClassifier = (*Classifier)(nil)

// Wave indexes of the default partition. Toolchain packages go first so
// everything rebuilt later links against the upgraded compiler and libc,
// libraries second, everything else last.
const (
	WaveToolchain = 0
	WaveLibrary   = 1
	WaveOther     = 2
)

// Classifier implements ports.WaveClassifier over a category-to-wave map.
type Classifier struct {
	byCategory map[string]int
	waves      int
}

// NewDefault creates a Classifier with the standard three-wave partition.
func NewDefault() *Classifier {
	return New(map[string]int{
		"toolchain": WaveToolchain,
		"libs":      WaveLibrary,
		"lib":       WaveLibrary,
	}, 3)
}

// New creates a Classifier with a custom partition. Categories absent from
// the map land in the last wave.
func New(byCategory map[string]int, waves int) *Classifier {
	if waves < 1 {
		waves = 1
	}
	return &Classifier{byCategory: byCategory, waves: waves}
}

// Classify returns the wave index for a package.
func (c *Classifier) Classify(_, category string) int {
	if wave, ok := c.byCategory[category]; ok && wave < c.waves {
		return wave
	}
	return c.waves - 1
}

// Waves returns the number of wave buckets.
func (c *Classifier) Waves() int {
	return c.waves
}
