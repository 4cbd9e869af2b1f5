// Package app runs the renderer: it owns the scene and the passes, reacts to
// window events and composes every frame.
package app

import (
	"io/fs"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"vulkan-renderer/config"
	"vulkan-renderer/engine"
	"vulkan-renderer/gpu"
	"vulkan-renderer/input"
	"vulkan-renderer/logging"
	"vulkan-renderer/passes"
	"vulkan-renderer/scene"
	"vulkan-renderer/ui"
)

// idleSleep is how long the loop sleeps per iteration while rendering is
// disabled.
const idleSleep = 100 * time.Millisecond

// Window is the source of input events.
type Window interface {
	Poll() []input.Event
}

// Options configure an App.
type Options struct {
	Logger   *slog.Logger
	Settings config.Settings

	// Shaders holds the compiled shaders of the passes.
	Shaders fs.FS

	// Updates delivers changed settings. It may be nil.
	Updates <-chan config.Settings

	// Now and Sleep default to the time package.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// App is the main loop and what it draws.
type App struct {
	eng *engine.Engine
	win Window
	log *slog.Logger

	settings config.Settings
	updates  <-chan config.Settings

	forward *passes.Forward
	overlay *passes.Overlay
	loader  *scene.Loader
	scene   *scene.Scene

	panel *ui.Panel
	timer ui.FrameTimer
	keys  input.State

	renderingEnabled bool
	quit             bool

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates the sampler, the passes and the scene on eng. Their teardown is
// registered with the engine, so closing the engine releases them, also when New
// fails.
func New(eng *engine.Engine, win Window, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	a := &App{
		eng:              eng,
		win:              win,
		log:              opts.Logger,
		settings:         opts.Settings,
		updates:          opts.Updates,
		overlay:          passes.NewOverlay(),
		panel:            ui.NewPanel(),
		renderingEnabled: true,
		now:              opts.Now,
		sleep:            opts.Sleep,
	}
	if err := a.init(opts); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) init(opts Options) error {
	dev := a.eng.Device()

	sampler, err := dev.CreateSampler(gpu.SamplerInfo{
		Filter:  gpu.FilterLinear,
		Address: gpu.AddressRepeat,
	})
	if err != nil {
		return errors.Wrap(err, "createSampler")
	}
	a.eng.Defer(func() { dev.DestroySampler(sampler) })

	a.forward, err = passes.NewForward(a.eng, passes.ForwardOptions{
		Logger:  a.log,
		Shaders: opts.Shaders,
	})
	if err != nil {
		return errors.Wrap(err, "forwardPass")
	}
	a.eng.Defer(a.forward.Close)

	a.loader, err = scene.NewLoader(a.eng, scene.LoaderOptions{
		Logger:       a.log,
		Layout:       a.forward.MaterialLayout(),
		Sampler:      sampler,
		WhiteTexture: a.settings.Scene.WhiteTexture,
	})
	if err != nil {
		return errors.Wrap(err, "sceneLoader")
	}
	a.eng.Defer(a.loader.Close)

	a.scene = scene.New()
	if path := a.settings.Scene.Path; path != "" {
		a.scene, err = a.loader.LoadFile(path)
		if err != nil {
			return err
		}
	}
	s := a.scene
	a.eng.Defer(func() { a.loader.Destroy(s) })

	a.applyScene(a.settings)
	a.applyCamera(a.settings.Camera)
	a.panel.Scale = a.settings.UI.Scale
	return nil
}

// Scene returns the scene being drawn.
func (a *App) Scene() *scene.Scene { return a.scene }

// RenderingEnabled reports whether frames are drawn. It is off while the window
// is minimized.
func (a *App) RenderingEnabled() bool { return a.renderingEnabled }

// Run steps until the window asks to quit or a step fails.
func (a *App) Run() error {
	a.log.Info("running")
	for !a.quit {
		if err := a.Step(); err != nil {
			return err
		}
	}
	a.log.Info("quit requested", slog.Uint64("frames", a.eng.FrameNumber()))
	return nil
}

// Step handles pending events and settings, then draws one frame or, while
// rendering is disabled, sleeps.
func (a *App) Step() error {
	resized := false
	for _, e := range a.win.Poll() {
		switch e.Kind {
		case input.Quit:
			a.quit = true
		case input.Resize:
			resized = true
		case input.Minimize:
			a.renderingEnabled = false
			a.log.Debug("rendering disabled")
		case input.Restore:
			a.renderingEnabled = true
			a.timer.Reset()
			a.log.Debug("rendering enabled")
		case input.KeyPress:
			a.keys.Apply(e)
			a.onKey(e.Key)
		case input.KeyRelease:
			a.keys.Apply(e)
		}
	}
	a.applyUpdates()

	if a.quit {
		return nil
	}
	if resized {
		if err := a.eng.Resize(); err != nil {
			return errors.Wrap(err, "resize")
		}
	}
	if !a.renderingEnabled {
		a.sleep(idleSleep)
		return nil
	}

	a.timer.Tick(a.now())
	a.moveCamera(a.timer.Frame())

	return a.eng.DrawFrame(a.renderFrame)
}

func (a *App) onKey(k input.Key) {
	switch k {
	case input.KeyEscape:
		a.quit = true
	case input.KeyF1:
		a.settings.UI.ShowStats = !a.settings.UI.ShowStats
	}
}

// renderFrame draws the scene offscreen, copies it onto the swapchain image and
// draws the overlay on top.
func (a *App) renderFrame(f *engine.Frame) error {
	cmd := f.Command

	if err := a.forward.Render(cmd, a.scene); err != nil {
		return errors.Wrap(err, "forward")
	}

	target := a.forward.Target()
	engine.TransitionImage(cmd, target.Handle, gpu.LayoutGeneral, gpu.LayoutTransferSrc)
	engine.TransitionImage(cmd, f.Image, gpu.LayoutUndefined, gpu.LayoutTransferDst)
	engine.BlitImage(cmd, target.Handle, a.forward.Extent(), f.Image, f.Extent)

	engine.TransitionImage(cmd, f.Image, gpu.LayoutTransferDst, gpu.LayoutColorAttachment)
	if a.settings.UI.ShowStats {
		a.overlay.Render(cmd, f.View, f.Extent, a.panel.Build(a.stats(f)))
	}
	engine.TransitionImage(cmd, f.Image, gpu.LayoutColorAttachment, gpu.LayoutPresentSrc)
	return nil
}

func (a *App) stats(f *engine.Frame) ui.Stats {
	c := &a.scene.Camera
	return ui.Stats{
		FrameTime:  a.timer.Frame(),
		FPS:        a.timer.FPS(),
		Slot:       a.eng.Frames().Index(),
		Slots:      engine.FramesInFlight,
		Generation: a.eng.Swapchain().Generation(),
		Width:      f.Extent.Width,
		Height:     f.Extent.Height,
		Eye:        [3]float32(c.Eye),
		Pitch:      c.Pitch,
		Yaw:        c.Yaw,
	}
}

// moveCamera applies the held keys for a frame that took dt.
func (a *App) moveCamera(dt time.Duration) {
	if dt <= 0 {
		return
	}
	sec := float32(dt.Seconds())
	move := a.settings.Camera.MoveSpeed * sec
	turn := a.settings.Camera.TurnSpeed * sec

	c := &a.scene.Camera
	c.Move(
		a.keys.Axis(input.KeyW, input.KeyS)*move,
		a.keys.Axis(input.KeyD, input.KeyA)*move,
		a.keys.Axis(input.KeySpace, input.KeyShift)*move,
	)
	c.Turn(
		a.keys.Axis(input.KeyArrowUp, input.KeyArrowDown)*turn,
		a.keys.Axis(input.KeyArrowRight, input.KeyArrowLeft)*turn,
	)
}

// applyUpdates takes every pending settings update without blocking.
func (a *App) applyUpdates() {
	for a.updates != nil {
		select {
		case s, ok := <-a.updates:
			if !ok {
				a.updates = nil
				return
			}
			a.apply(s)
		default:
			return
		}
	}
}

// apply switches to s. Only the parts that can change while running are used;
// the others are reported and wait for a restart.
func (a *App) apply(s config.Settings) {
	old := a.settings

	if s.Scene.Background != old.Scene.Background {
		a.applyScene(s)
	}
	// The keyboard moves the camera, so it is reset only when the file changes it.
	if s.Camera != old.Camera {
		a.applyCamera(s.Camera)
	}
	a.panel.Scale = s.UI.Scale

	if s.Window != old.Window || s.Renderer != old.Renderer ||
		s.Scene.Path != old.Scene.Path || s.Scene.WhiteTexture != old.Scene.WhiteTexture {
		a.log.Warn("settings changed that take effect after a restart")
	}
	if s.Log != old.Log {
		a.log.Warn("log level changes take effect after a restart",
			slog.String("level", s.Log.Level))
	}

	a.settings = s
	a.log.Info("settings applied")
}

func (a *App) applyScene(s config.Settings) {
	a.scene.Background = s.Scene.Background
}

func (a *App) applyCamera(c config.Camera) {
	cam := &a.scene.Camera
	cam.Eye = c.Eye
	cam.Pitch = 0
	cam.Yaw = 0
	cam.Turn(c.Pitch, c.Yaw)
	if c.FovY > 0 {
		cam.FovY = c.FovY
	}
}
