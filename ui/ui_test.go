package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsLines(t *testing.T) {
	lines := Stats{
		FrameTime:  16700 * time.Microsecond,
		FPS:        59.88,
		Slot:       1,
		Slots:      2,
		Generation: 3,
		Width:      1280,
		Height:     720,
		Eye:        [3]float32{-820, 145, 0},
		Pitch:      14,
	}.Lines()

	assert.Equal(t, []string{
		"Frame Time (sec) 0.0167",
		"FPS 59.9",
		"Frame slot 1 of 2",
		"Swapchain #3 1280x720",
		"Eye -820.0 145.0 0.0",
		"Pitch 14.0 Yaw 0.0",
	}, lines)
}

func TestBuildLines(t *testing.T) {
	p := NewPanel()
	data := p.BuildLines([]string{"I"})
	require.NotEmpty(t, data.Rects)

	bg := data.Rects[0]
	assert.Equal(t, p.Background, bg.Color)
	assert.Equal(t, 10, bg.X)
	// One 7x13 cell plus padding on both sides.
	assert.Equal(t, 7+12, bg.Width)
	assert.Equal(t, 13+12, bg.Height)

	require.Greater(t, len(data.Rects), 1)
	for _, r := range data.Rects[1:] {
		assert.Equal(t, p.Foreground, r.Color)
		assert.GreaterOrEqual(t, r.X, bg.X+p.Padding)
		assert.LessOrEqual(t, r.X+r.Width, bg.X+bg.Width-p.Padding)
		assert.GreaterOrEqual(t, r.Y, bg.Y+p.Padding)
		assert.LessOrEqual(t, r.Y+r.Height, bg.Y+bg.Height-p.Padding)
		assert.Equal(t, 1, r.Height)
	}

	assert.Empty(t, p.BuildLines(nil).Rects)
}

func TestBuildScales(t *testing.T) {
	p := NewPanel()
	one := p.BuildLines([]string{"Hi"})
	p.Scale = 2
	two := p.BuildLines([]string{"Hi"})

	require.Equal(t, len(one.Rects), len(two.Rects))
	for i := 1; i < len(one.Rects); i++ {
		assert.Equal(t, 2*one.Rects[i].Width, two.Rects[i].Width)
		assert.Equal(t, 2, two.Rects[i].Height)
	}
}

func TestFrameTimer(t *testing.T) {
	var timer FrameTimer
	start := time.Unix(100, 0)

	timer.Tick(start)
	assert.Zero(t, timer.FPS())

	timer.Tick(start.Add(20 * time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, timer.Frame())
	assert.InDelta(t, 50, timer.FPS(), 1e-3)

	timer.Tick(start.Add(30 * time.Millisecond))
	assert.InDelta(t, 50+(100-50)*fpsSmoothing, timer.FPS(), 1e-3)

	timer.Reset()
	timer.Tick(start.Add(10 * time.Second))
	assert.Zero(t, timer.Frame())
	assert.InDelta(t, 50+(100-50)*fpsSmoothing, timer.FPS(), 1e-3)
}
