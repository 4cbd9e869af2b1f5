package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulkan-renderer/gpu"
	"vulkan-renderer/ui"
)

var (
	dark  = [4]float32{0, 0, 0, 0.8}
	white = [4]float32{1, 1, 1, 1}
)

func TestOverlayRender(t *testing.T) {
	eng, dev, _ := newEngine(t)
	cmd, done := recording(t, dev)
	view := eng.Swapchain().View(0)
	extent := gpu.Extent2D{Width: 100, Height: 50}

	o := NewOverlay()
	o.Render(cmd, view, extent, ui.DrawData{Rects: []ui.Rect{
		{X: 0, Y: 0, Width: 40, Height: 20, Color: dark},
		{X: 2, Y: 2, Width: 3, Height: 1, Color: white},
		{X: 90, Y: 45, Width: 20, Height: 20, Color: dark},
		{X: 7, Y: 2, Width: 1, Height: 1, Color: white},
		{X: 200, Y: 0, Width: 5, Height: 5, Color: white},
		{X: -5, Y: -5, Width: 5, Height: 5, Color: white},
	}})

	require.Equal(t, []string{"BeginRendering", "ClearAttachments", "ClearAttachments", "EndRendering"}, cmd.Ops())

	rendering := cmd.Commands[0].Rendering
	assert.Nil(t, rendering.Depth)
	assert.Equal(t, view, rendering.Color.View)
	assert.Equal(t, gpu.LayoutColorAttachment, rendering.Color.Layout)
	assert.Equal(t, gpu.LoadOpLoad, rendering.Color.Load)
	assert.Equal(t, extent, rendering.Area)

	assert.Equal(t, dark, cmd.Commands[1].Color)
	assert.Equal(t, []gpu.Rect2D{
		{X: 0, Y: 0, Width: 40, Height: 20},
		{X: 90, Y: 45, Width: 10, Height: 5},
	}, cmd.Commands[1].Rects)

	assert.Equal(t, white, cmd.Commands[2].Color)
	assert.Equal(t, []gpu.Rect2D{
		{X: 2, Y: 2, Width: 3, Height: 1},
		{X: 7, Y: 2, Width: 1, Height: 1},
	}, cmd.Commands[2].Rects)

	done()
	closeAndCheck(t, eng, dev)
}

func TestOverlayReusesBatches(t *testing.T) {
	o := NewOverlay()
	extent := gpu.Extent2D{Width: 10, Height: 10}

	first := o.batch(ui.DrawData{Rects: []ui.Rect{
		{Width: 1, Height: 1, Color: dark},
		{Width: 1, Height: 1, Color: white},
	}}, extent)
	assert.Len(t, first, 2)

	second := o.batch(ui.DrawData{Rects: []ui.Rect{{Width: 2, Height: 2, Color: white}}}, extent)
	require.Len(t, second, 1)
	assert.Equal(t, white, second[0].color)
	assert.Equal(t, []gpu.Rect2D{{Width: 2, Height: 2}}, second[0].rects)

	assert.Empty(t, o.batch(ui.DrawData{}, extent))
}
