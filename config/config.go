// Package config holds the renderer settings: compiled-in defaults overlaid by
// a TOML file, which can be watched for changes while the program runs.
package config

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"vulkan-renderer/logging"
)

// Settings is the whole configuration.
type Settings struct {
	Window   Window   `toml:"window"`
	Log      Log      `toml:"log"`
	Renderer Renderer `toml:"renderer"`
	Scene    Scene    `toml:"scene"`
	Camera   Camera   `toml:"camera"`
	UI       UI       `toml:"ui"`
}

// Window configures the window and presentation.
type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	VSync  bool   `toml:"vsync"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Renderer configures the device.
type Renderer struct {
	Validation bool   `toml:"validation"`
	ShaderDir  string `toml:"shader_dir"`
}

// Scene names what is drawn.
type Scene struct {
	Path         string     `toml:"path"`
	WhiteTexture string     `toml:"white_texture"`
	Background   [3]float32 `toml:"background"`
}

// Camera is the starting camera and how fast the keyboard moves it.
type Camera struct {
	Eye   [3]float32 `toml:"eye"`
	Pitch float32    `toml:"pitch"`
	Yaw   float32    `toml:"yaw"`
	FovY  float32    `toml:"fov_y"`

	// MoveSpeed is in scene units per second.
	MoveSpeed float32 `toml:"move_speed"`
	// TurnSpeed is in degrees per second.
	TurnSpeed float32 `toml:"turn_speed"`
}

// UI configures the statistics overlay.
type UI struct {
	ShowStats bool `toml:"show_stats"`
	Scale     int  `toml:"scale"`
}

// Default returns the compiled-in settings.
func Default() Settings {
	return Settings{
		Window: Window{
			Title:  "Aurora",
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Log: Log{Level: "info"},
		Renderer: Renderer{
			ShaderDir: "shaders",
		},
		Scene: Scene{
			Path:         "assets/sponza/sponza.obj",
			WhiteTexture: "assets/white.png",
			Background:   [3]float32{0.1, 0.1, 0.1},
		},
		Camera: Camera{
			Eye:       [3]float32{-820, 145, 0},
			Pitch:     14,
			FovY:      70,
			MoveSpeed: 300,
			TurnSpeed: 90,
		},
		UI: UI{
			ShowStats: true,
			Scale:     1,
		},
	}
}

// Load reads the settings file at path on top of the defaults. Unknown keys are
// an error.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errors.Wrap(err, "reading settings")
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, errors.Wrapf(err, "settings %s", path)
	}
	return s, nil
}

// Parse decodes TOML settings on top of the defaults.
func Parse(data []byte) (Settings, error) {
	s := Default()

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Settings{}, errors.Newf("unknown keys:\n%s", strict.String())
		}
		return Settings{}, errors.Wrap(err, "decoding")
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports the first setting out of range.
func (s Settings) Validate() error {
	switch {
	case s.Window.Width <= 0 || s.Window.Height <= 0:
		return errors.Newf("window size %dx%d is not positive", s.Window.Width, s.Window.Height)
	case s.Camera.FovY <= 0 || s.Camera.FovY >= 180:
		return errors.Newf("camera fov_y %g is not within (0, 180)", s.Camera.FovY)
	case s.Camera.MoveSpeed < 0 || s.Camera.TurnSpeed < 0:
		return errors.New("camera speeds must not be negative")
	case s.UI.Scale < 1:
		return errors.Newf("ui scale %d is below 1", s.UI.Scale)
	}
	for _, c := range s.Scene.Background {
		if c < 0 || c > 1 {
			return errors.Newf("background component %g is not within [0, 1]", c)
		}
	}
	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		return err
	}
	return nil
}
