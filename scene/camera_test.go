package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xlab/linmath"
)

// project multiplies the column-major m with the point p.
func project(m linmath.Mat4x4, p linmath.Vec3) (x, y, z, w float32) {
	v := [4]float32{p[0], p[1], p[2], 1}
	var out [4]float32
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[row] += m[col][row] * v[col]
		}
	}
	return out[0], out[1], out[2], out[3]
}

func TestCameraLooksForward(t *testing.T) {
	c := DefaultCamera()
	f := c.Forward()
	target := linmath.Vec3{c.Eye[0] + 10*f[0], c.Eye[1] + 10*f[1], c.Eye[2] + 10*f[2]}

	x, y, _, w := project(c.Matrix(), target)
	assert.Greater(t, w, float32(0))
	assert.InDelta(t, 0, x/w, 1e-4)
	assert.InDelta(t, 0, y/w, 1e-4)

	above := linmath.Vec3{target[0], target[1] + 1, target[2]}
	_, y, _, w = project(c.Matrix(), above)
	assert.Greater(t, y/w, float32(0))
}

func TestCameraForwardAxes(t *testing.T) {
	c := Camera{}
	assert.InDeltaSlice(t, []float32{1, 0, 0}, vec(c.Forward()), 1e-6)

	c.Yaw = 90
	assert.InDeltaSlice(t, []float32{0, 0, 1}, vec(c.Forward()), 1e-6)
	assert.InDeltaSlice(t, []float32{-1, 0, 0}, vec(c.Right()), 1e-6)

	c = Camera{Pitch: 90}
	assert.InDeltaSlice(t, []float32{0, 1, 0}, vec(c.Forward()), 1e-6)
}

func TestCameraTurn(t *testing.T) {
	c := Camera{Pitch: 80, Yaw: 350}
	c.Turn(20, 20)
	assert.Equal(t, float32(89), c.Pitch)
	assert.InDelta(t, 10, c.Yaw, 1e-4)

	c.Turn(-200, -30)
	assert.Equal(t, float32(-89), c.Pitch)
	assert.InDelta(t, 340, c.Yaw, 1e-4)
}

func TestCameraMove(t *testing.T) {
	c := Camera{Up: linmath.Vec3{0, 1, 0}}
	c.Move(2, 3, 1)
	assert.InDeltaSlice(t, []float32{2, 1, 3}, c.Eye[:], 1e-6)
}

func vec(v linmath.Vec3) []float32 { return v[:] }
