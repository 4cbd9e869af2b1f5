package main

import (
	"context"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"

	"vulkan-renderer/app"
	"vulkan-renderer/config"
	"vulkan-renderer/engine"
	"vulkan-renderer/logging"
	"vulkan-renderer/vulkan"
	"vulkan-renderer/window"
)

func init() {
	// This is needed to arrange that main() runs on main thread.
	// See documentation for functions that are only allowed to be called
	// from the main thread.
	runtime.LockOSThread()

	flag.StringVar(&args.config, "config", "renderer.toml", "Settings file, watched for changes")
	flag.BoolVar(&args.debug, "debug", false, "Enable Vulkan validation layers")
	flag.StringVar(&args.logLevel, "log-level", "", "Overrides the log level of the settings file")
	flag.StringVar(&args.scene, "scene", "", "Overrides the scene of the settings file")
}

var args struct {
	config   string
	debug    bool
	logLevel string
	scene    string
}

func main() {
	flag.Parse()

	settings, err := loadSettings()
	if err != nil {
		slog.Error("loading settings", "err", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(settings.Log.Level)
	if err != nil {
		slog.Error("parsing log level", "err", err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, level)

	if err := run(settings, log); err != nil {
		log.Error("renderer failed", "err", err)
		os.Exit(1)
	}
}

func loadSettings() (config.Settings, error) {
	settings, err := config.Load(args.config)
	if errors.Is(err, fs.ErrNotExist) {
		settings, err = config.Default(), nil
	}
	if err != nil {
		return settings, err
	}

	if args.debug {
		settings.Renderer.Validation = true
	}
	if args.logLevel != "" {
		settings.Log.Level = args.logLevel
	}
	if args.scene != "" {
		settings.Scene.Path = args.scene
	}
	return settings, settings.Validate()
}

func run(settings config.Settings, log *slog.Logger) error {
	win, err := window.New(settings.Window.Title, settings.Window.Width, settings.Window.Height)
	if err != nil {
		return err
	}
	defer win.Destroy()

	dev, err := vulkan.Open(win.Native(), vulkan.Config{
		AppName:    settings.Window.Title,
		Validation: settings.Renderer.Validation,
		Logger:     log.With("component", "vulkan"),
	})
	if err != nil {
		return errors.Wrap(err, "opening device")
	}
	defer dev.Destroy()
	win.SetTitle(settings.Window.Title + " - " + dev.Name())

	eng, err := engine.New(dev, engine.Options{
		Logger:          log.With("component", "engine"),
		FramebufferSize: win.FramebufferSize,
		VSync:           settings.Window.VSync,
	})
	if err != nil {
		return errors.Wrap(err, "starting engine")
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Error("closing engine", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := config.Watch(ctx, args.config, settings, log.With("component", "config"))
	if err != nil {
		log.Warn("settings are not watched", "err", err)
		updates = nil
	}

	a, err := app.New(eng, win, app.Options{
		Logger:   log,
		Settings: settings,
		Shaders:  os.DirFS(settings.Renderer.ShaderDir),
		Updates:  updates,
	})
	if err != nil {
		return err
	}
	return a.Run()
}
