package passes

import (
	"vulkan-renderer/gpu"
	"vulkan-renderer/ui"
)

// Overlay draws UI rectangles over an image already holding the frame.
type Overlay struct {
	batches []batch
}

type batch struct {
	color [4]float32
	rects []gpu.Rect2D
}

// NewOverlay returns an overlay pass.
func NewOverlay() *Overlay {
	return &Overlay{}
}

// Render records drawing data onto view, which is in the color attachment
// layout and keeps its contents. Rectangles are clipped to extent and drawn one
// clear per color, colors in the order they first appear.
func (o *Overlay) Render(cmd gpu.CommandBuffer, view gpu.ImageView, extent gpu.Extent2D, data ui.DrawData) {
	cmd.BeginRendering(gpu.RenderingInfo{
		Area: extent,
		Color: &gpu.Attachment{
			View:   view,
			Layout: gpu.LayoutColorAttachment,
			Load:   gpu.LoadOpLoad,
		},
	})
	defer cmd.EndRendering()

	for _, b := range o.batch(data, extent) {
		cmd.ClearAttachments(b.color, b.rects...)
	}
}

// batch groups the visible rectangles of data by color. The batches are reused
// between frames.
func (o *Overlay) batch(data ui.DrawData, extent gpu.Extent2D) []batch {
	for i := range o.batches {
		o.batches[i].rects = o.batches[i].rects[:0]
	}
	used := 0

	for _, r := range data.Rects {
		clipped, ok := clip(r, extent)
		if !ok {
			continue
		}

		i := 0
		for i < used && o.batches[i].color != r.Color {
			i++
		}
		if i == used {
			if used == len(o.batches) {
				o.batches = append(o.batches, batch{})
			}
			o.batches[used].color = r.Color
			used++
		}
		o.batches[i].rects = append(o.batches[i].rects, clipped)
	}
	return o.batches[:used]
}

func clip(r ui.Rect, extent gpu.Extent2D) (gpu.Rect2D, bool) {
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1 := min(r.X+r.Width, int(extent.Width))
	y1 := min(r.Y+r.Height, int(extent.Height))
	if x1 <= x0 || y1 <= y0 {
		return gpu.Rect2D{}, false
	}
	return gpu.Rect2D{
		X:      int32(x0),
		Y:      int32(y0),
		Width:  uint32(x1 - x0),
		Height: uint32(y1 - y0),
	}, true
}
