package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySupersedes(t *testing.T) {
	r := NewRegistry[PinCallback]()
	var got []string

	r.Set(4, func(pin, value int) { got = append(got, "first") })
	r.Set(4, func(pin, value int) { got = append(got, "second") })
	assert.Equal(t, 1, r.Len())

	cb, ok := r.Get(4)
	require.True(t, ok)
	cb(4, 1)
	assert.Equal(t, []string{"second"}, got)
}

func TestRegistryRemoveAndReset(t *testing.T) {
	r := NewRegistry[DataCallback]()
	r.Set(1, func([]int) {})
	r.Set(2, func([]int) {})

	r.Remove(1)
	_, ok := r.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	r.Reset()
	assert.Equal(t, 0, r.Len())
}

func TestThresholdMet(t *testing.T) {
	cases := []struct {
		tt        ThresholdType
		value     int
		threshold int
		want      bool
	}{
		{ThresholdEQ, 5, 5, true},
		{ThresholdEQ, 4, 5, false},
		{ThresholdGT, 6, 5, true},
		{ThresholdGT, 5, 5, false},
		{ThresholdLT, 4, 5, true},
		{ThresholdGTE, 5, 5, true},
		{ThresholdLTE, 6, 5, false},
		{ThresholdType(99), 1, 1, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.tt.Met(c.value, c.threshold), "%v %d %d", c.tt, c.value, c.threshold)
	}
}
