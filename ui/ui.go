// Package ui builds the statistics overlay as flat colored rectangles, ready
// for the overlay pass to draw.
package ui

import (
	"fmt"
	"image"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Rect is a filled rectangle in framebuffer pixels.
type Rect struct {
	X, Y          int
	Width, Height int
	Color         [4]float32
}

// DrawData is the overlay of one frame, in drawing order.
type DrawData struct {
	Rects []Rect
}

// Stats is what the statistics panel shows.
type Stats struct {
	FrameTime time.Duration
	FPS       float32

	Slot       int
	Slots      int
	Generation uint64
	Width      uint32
	Height     uint32

	Eye        [3]float32
	Pitch, Yaw float32
}

// Lines formats s the way the panel shows it.
func (s Stats) Lines() []string {
	return []string{
		fmt.Sprintf("Frame Time (sec) %.4f", s.FrameTime.Seconds()),
		fmt.Sprintf("FPS %.1f", s.FPS),
		fmt.Sprintf("Frame slot %d of %d", s.Slot, s.Slots),
		fmt.Sprintf("Swapchain #%d %dx%d", s.Generation, s.Width, s.Height),
		fmt.Sprintf("Eye %.1f %.1f %.1f", s.Eye[0], s.Eye[1], s.Eye[2]),
		fmt.Sprintf("Pitch %.1f Yaw %.1f", s.Pitch, s.Yaw),
	}
}

// Panel is a box of text lines in the top left corner.
type Panel struct {
	X, Y    int
	Padding int

	// Scale magnifies every font pixel into a Scale by Scale square.
	Scale int

	Background [4]float32
	Foreground [4]float32

	face font.Face
}

// NewPanel returns a panel with a translucent dark background and white text.
func NewPanel() *Panel {
	return &Panel{
		X:          10,
		Y:          10,
		Padding:    6,
		Scale:      1,
		Background: [4]float32{0.05, 0.05, 0.05, 0.8},
		Foreground: [4]float32{1, 1, 1, 1},
		face:       basicfont.Face7x13,
	}
}

// Build lays out the panel for stats.
func (p *Panel) Build(stats Stats) DrawData {
	return p.BuildLines(stats.Lines())
}

// BuildLines lays out a panel showing lines. The background comes first,
// followed by the text as horizontal runs of lit font pixels.
func (p *Panel) BuildLines(lines []string) DrawData {
	if len(lines) == 0 {
		return DrawData{}
	}
	face := p.face
	if face == nil {
		face = basicfont.Face7x13
	}
	scale := max(p.Scale, 1)

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()

	width := 0
	for _, line := range lines {
		width = max(width, font.MeasureString(face, line).Ceil())
	}
	height := lineHeight * len(lines)

	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	d := &font.Drawer{Dst: mask, Src: image.Opaque, Face: face}
	for i, line := range lines {
		d.Dot = fixed.P(0, i*lineHeight+ascent)
		d.DrawString(line)
	}

	data := DrawData{Rects: []Rect{{
		X:      p.X,
		Y:      p.Y,
		Width:  width*scale + 2*p.Padding,
		Height: height*scale + 2*p.Padding,
		Color:  p.Background,
	}}}

	originX, originY := p.X+p.Padding, p.Y+p.Padding
	for y := 0; y < height; y++ {
		for x := 0; x < width; {
			if mask.AlphaAt(x, y).A < 0x80 {
				x++
				continue
			}
			start := x
			for x < width && mask.AlphaAt(x, y).A >= 0x80 {
				x++
			}
			data.Rects = append(data.Rects, Rect{
				X:      originX + start*scale,
				Y:      originY + y*scale,
				Width:  (x - start) * scale,
				Height: scale,
				Color:  p.Foreground,
			})
		}
	}
	return data
}
