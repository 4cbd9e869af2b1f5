package scene

import (
	"github.com/chewxy/math32"
	"github.com/xlab/linmath"
)

// maxPitch keeps the view direction away from the up vector.
const maxPitch = 89

// Camera is a perspective camera looking from Eye along the direction given by
// Pitch and Yaw, both in degrees. Yaw 0 looks along +X.
type Camera struct {
	Eye   linmath.Vec3
	Pitch float32
	Yaw   float32
	Up    linmath.Vec3

	// FovY is the vertical field of view in degrees.
	FovY   float32
	Aspect float32
	Near   float32
	Far    float32
}

// DefaultCamera returns the camera new scenes start with.
func DefaultCamera() Camera {
	return Camera{
		Eye:    linmath.Vec3{-820, 145, 0},
		Pitch:  14,
		Yaw:    0,
		Up:     linmath.Vec3{0, 1, 0},
		FovY:   70,
		Aspect: 16.0 / 9.0,
		Near:   0.1,
		Far:    10000,
	}
}

// Forward returns the unit view direction.
func (c *Camera) Forward() linmath.Vec3 {
	pitch := linmath.DegreesToRadians(c.Pitch)
	yaw := linmath.DegreesToRadians(c.Yaw)

	return linmath.Vec3{
		math32.Cos(pitch) * math32.Cos(yaw),
		math32.Sin(pitch),
		math32.Cos(pitch) * math32.Sin(yaw),
	}
}

// Right returns the unit vector pointing right of the view direction in the
// horizontal plane.
func (c *Camera) Right() linmath.Vec3 {
	yaw := linmath.DegreesToRadians(c.Yaw)
	return linmath.Vec3{-math32.Sin(yaw), 0, math32.Cos(yaw)}
}

// Matrix returns projection times view.
func (c *Camera) Matrix() linmath.Mat4x4 {
	forward := c.Forward()
	center := linmath.Vec3{
		c.Eye[0] + forward[0],
		c.Eye[1] + forward[1],
		c.Eye[2] + forward[2],
	}

	var view, proj, m linmath.Mat4x4
	view.LookAt(&c.Eye, &center, &c.Up)
	proj.Perspective(linmath.DegreesToRadians(c.FovY), c.Aspect, c.Near, c.Far)
	m.Mult(&proj, &view)
	return m
}

// Move translates the eye by forward units along the view direction, right
// units to the side and up units along the world up axis.
func (c *Camera) Move(forward, right, up float32) {
	f := c.Forward()
	r := c.Right()
	for i := range c.Eye {
		c.Eye[i] += f[i]*forward + r[i]*right + c.Up[i]*up
	}
}

// Turn adds to the pitch and yaw. Pitch stays within 89 degrees of the horizon
// and yaw is wrapped into [0, 360).
func (c *Camera) Turn(pitch, yaw float32) {
	c.Pitch = max(-maxPitch, min(maxPitch, c.Pitch+pitch))
	c.Yaw = math32.Mod(c.Yaw+yaw, 360)
	if c.Yaw < 0 {
		c.Yaw += 360
	}
}
