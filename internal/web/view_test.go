package web

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/folio/internal/carousel"
	"github.com/Zachkp/folio/internal/catalog"
)

func TestWheelKeepsStepsNearActive(t *testing.T) {
	steps := catalog.Default().Process
	require.Len(t, steps, 5)

	angles := func(active int) []float64 {
		var out []float64
		for _, s := range wheel(steps, active) {
			out = append(out, s.Angle)
		}
		return out
	}

	if diff := cmp.Diff([]float64{-90, -55, -20, -160, -125}, angles(0)); diff != "" {
		t.Errorf("active 0 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{-55, -20, -160, -125, -90}, angles(4)); diff != "" {
		t.Errorf("active 4 (-want +got):\n%s", diff)
	}

	slots := wheel(steps, 2)
	assert.True(t, slots[2].Active)
	assert.Equal(t, steps[2].Number, slots[2].Number)
}

func TestStackOffsets(t *testing.T) {
	services := catalog.Default().Services
	var offsets []int
	for _, c := range stack(services, 2) {
		offsets = append(offsets, c.Offset)
	}
	assert.Equal(t, []int{1, -1, 0}, offsets)
}

func TestCommandFrom(t *testing.T) {
	values := map[string]string{"i": "3", "offset": "-80.5", "velocity": "120", "mode": "mobile"}
	get := func(k string) string { return values[k] }

	tests := []struct {
		action string
		want   carousel.Command
	}{
		{"next", carousel.Command{Action: carousel.ActionNext}},
		{"goto", carousel.Command{Action: carousel.ActionGoTo, Index: 3}},
		{"swipe-end", carousel.Command{Action: carousel.ActionSwipeEnd, Offset: -80.5, Velocity: 120}},
		{"swipe", carousel.Command{Action: actionSwipe, Offset: -80.5, Velocity: 120}},
		{"view", carousel.Command{Action: carousel.ActionView, View: "mobile"}},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			got, err := commandFrom(tt.action, get)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := commandFrom("goto", func(string) string { return "" })
	assert.ErrorIs(t, err, errBadCommand)
	_, err = commandFrom("swipe", func(string) string { return "far" })
	assert.ErrorIs(t, err, errBadCommand)
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := decodeCommand([]byte(`{"action":"goto","i":2,"HEADERS":{"HX-Request":"true"}}`))
	require.NoError(t, err)
	assert.Equal(t, carousel.Command{Action: carousel.ActionGoTo, Index: 2}, cmd)

	cmd, err = decodeCommand([]byte(`{"action":"swipe-end","offset":"-60","velocity":-900}`))
	require.NoError(t, err)
	assert.Equal(t, -60.0, cmd.Offset)
	assert.Equal(t, -900.0, cmd.Velocity)

	_, err = decodeCommand([]byte(`not json`))
	assert.ErrorIs(t, err, errBadCommand)
}
