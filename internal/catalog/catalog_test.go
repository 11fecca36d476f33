package catalog

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/kindvoice/internal/tone"
)

func TestPickReturnsEntryOfTone(t *testing.T) {
	c := New(WithRand(rand.New(rand.NewPCG(1, 2))))

	for _, tn := range tone.All() {
		set := Entries(tn)
		require.NotEmpty(t, set, tn.String())
		for i := 0; i < 20; i++ {
			got := c.Pick(tn)
			assert.NotEmpty(t, got)
			assert.Contains(t, set, got, tn.String())
		}
	}
}

func TestPickUnknownToneUsesDefault(t *testing.T) {
	c := New()
	set := Entries(tone.Default)

	for _, tn := range []tone.Tone{0, 5, 200} {
		assert.NotPanics(t, func() {
			assert.Contains(t, set, c.Pick(tn))
		})
	}
	assert.Equal(t, set, Entries(tone.Tone(77)))
}

func TestPickIsRoughlyUniform(t *testing.T) {
	c := New(WithRand(rand.New(rand.NewPCG(7, 11))))
	set := Entries(tone.Validating)

	const n = 1000
	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		counts[c.Pick(tone.Validating)]++
	}

	require.Len(t, counts, len(set))
	expected := float64(n) / float64(len(set))
	for _, got := range counts {
		assert.InDelta(t, expected, float64(got), expected*0.2)
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	set := Entries(tone.Protective)
	set[0] = "changed"
	assert.NotEqual(t, "changed", Entries(tone.Protective)[0])
}
