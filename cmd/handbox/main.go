package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/handbox/internal/app"
	"github.com/ayusman/handbox/internal/capture"
	"github.com/ayusman/handbox/internal/config"
	"github.com/ayusman/handbox/internal/hook"
	"github.com/ayusman/handbox/internal/log"
	"github.com/ayusman/handbox/internal/overlay"
	"github.com/ayusman/handbox/internal/server"
	"github.com/ayusman/handbox/internal/skeleton"
	"github.com/ayusman/handbox/internal/store"
	"github.com/ayusman/handbox/internal/tracker"
	"github.com/ayusman/handbox/internal/tray"
)

type options struct {
	configPath string
	addr       string
	bridge     string
	input      string
	replay     string
	record     bool
	realtime   bool
	tray       bool
	logLevel   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "configuration file")
	flag.StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&opts.bridge, "bridge", "", "sensor bridge command (overrides config)")
	flag.StringVar(&opts.input, "input", "", "read frames from a JSON lines file instead of the sensor")
	flag.StringVar(&opts.replay, "replay", "", "replay a recorded session by id")
	flag.BoolVar(&opts.realtime, "realtime", true, "pace replayed frames by their recorded timestamps")
	flag.BoolVar(&opts.record, "record", false, "record this session (overrides config)")
	flag.BoolVar(&opts.tray, "tray", false, "show a system tray icon")
	flag.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	log.Init(opts.logLevel)

	if err := run(opts); err != nil {
		log.Error("handbox failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	fmt.Println("Handbox - Skeletal Hand Tracking")

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.bridge != "" {
		cfg.Sensor.Command = strings.Fields(opts.bridge)
	}
	if opts.record {
		cfg.Store.Record = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	source, sourceName, err := openSource(st, cfg, opts)
	if err != nil {
		return err
	}

	trackerConfig := cfg.Tracker()

	var recorder *store.Recorder
	if cfg.Store.Record {
		recorder, err = st.Record(&store.Session{
			Name:          time.Now().Format("2006-01-02 15:04:05"),
			Source:        sourceName,
			DisplayWidth:  trackerConfig.Display.Width,
			DisplayHeight: trackerConfig.Display.Height,
		})
		if err != nil {
			return fmt.Errorf("start recording: %w", err)
		}
		defer recorder.Close()
		log.Info("recording session", "session", recorder.Session().ID)
	}

	var backdrop capture.Camera
	if cfg.Camera.Enabled {
		cam := capture.NewCamera(capture.Config{DeviceID: cfg.Camera.DeviceID, Mirror: true})
		if err := cam.Open(); err != nil {
			log.Warn("camera backdrop unavailable", "device", cfg.Camera.DeviceID, "error", err)
		} else {
			backdrop = cam
			defer cam.Close()
		}
	}

	var renderer *overlay.Renderer
	if cfg.Overlay.Enabled {
		renderer = overlay.New(overlay.Config{
			Display: trackerConfig.Display,
			Scale:   cfg.Overlay.Scale,
		}, backdrop)
	}

	var (
		srv *server.Server
		tr  *tray.Tray
	)
	publishers := []app.Publisher{
		app.PublisherFunc(func(res tracker.Result) { srv.Publish(res) }),
	}
	if renderer != nil {
		publishers = append(publishers, app.PublisherFunc(renderer.Update))
	}
	if cfg.Hooks.Enabled {
		manager := hook.NewManager(cfg.Hooks.Dir)
		if err := manager.Discover(); err != nil {
			log.Warn("hook discovery failed", "dir", cfg.Hooks.Dir, "error", err)
		} else if hooks := manager.List(); len(hooks) > 0 {
			dispatcher := hook.NewDispatcher(manager, hook.NewExecutor(cfg.Hooks.Timeout), hook.DefaultQueueSize)
			dispatcher.Start(ctx)
			defer func() {
				stop()
				dispatcher.Wait()
			}()
			publishers = append(publishers, dispatcher)
			log.Info("hooks loaded", "count", len(hooks), "dir", cfg.Hooks.Dir)
		}
	}
	if opts.tray {
		publishers = append(publishers, trayStatus(func() *tray.Tray { return tr }))
	}

	application := app.New(app.Config{
		Source:     source,
		Tracker:    trackerConfig,
		Recorder:   recorder,
		Publishers: publishers,
	})

	webDir := cfg.Server.StaticDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		log.Info("serving static files", "dir", webDir)
	}

	serverConfig := server.Config{
		StaticDir:  webDir,
		Store:      st,
		Tracker:    application,
		OverlayFPS: cfg.Overlay.FPS,
	}
	if renderer != nil {
		serverConfig.Overlay = renderer
	}
	srv = server.New(serverConfig)

	if opts.tray {
		tr = tray.New(viewerURL(cfg.Server.Addr))
		tr.OnToggle(application.SetEnabled)
		tr.OnCalibrate(application.Calibrate)
		tr.OnQuit(stop)
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start tracking: %w", err)
	}
	defer application.Stop()

	go func() {
		err := config.Watch(ctx, opts.configPath, func(c *config.Config) {
			if err := application.SetTuning(c.Tuning()); err != nil {
				log.Warn("failed to apply reloaded config", "error", err)
			}
		})
		if err != nil {
			log.Warn("config watch stopped", "error", err)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.Server.Addr)
		serveErr <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	if tr != nil {
		go func() {
			<-ctx.Done()
			tr.Quit()
		}()
		// The tray must own the main goroutine.
		tr.Run()
		stop()
	}

	select {
	case <-ctx.Done():
	case <-application.Done():
		log.Info("skeleton source finished")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}

	return nil
}

// openSource picks the frame source: a recorded session, a JSON lines file,
// the sensor bridge, or a looping mock when no sensor is configured.
func openSource(st *store.Store, cfg *config.Config, opts options) (skeleton.Source, string, error) {
	switch {
	case opts.replay != "":
		src, err := st.Replay(opts.replay, store.ReplayConfig{Realtime: opts.realtime})
		if err != nil {
			return nil, "", fmt.Errorf("replay session %s: %w", opts.replay, err)
		}
		log.Info("replaying session", "session", opts.replay)
		return src, "replay:" + opts.replay, nil

	case opts.input != "":
		f, err := os.Open(opts.input)
		if err != nil {
			return nil, "", fmt.Errorf("open input: %w", err)
		}
		log.Info("reading frames from file", "path", opts.input)
		return skeleton.NewStreamSource(f, cfg.Skeleton()), "file:" + filepath.Base(opts.input), nil

	case len(cfg.Sensor.Command) > 0:
		src, err := skeleton.NewBridgeSource(cfg.Skeleton())
		if err != nil {
			return nil, "", fmt.Errorf("sensor bridge: %w", err)
		}
		log.Info("using sensor bridge", "command", cfg.Sensor.Command[0])
		return src, "bridge", nil
	}

	log.Warn("no sensor bridge configured, using a standing mock player")
	frame := skeleton.Frame{
		Skeletons:   []skeleton.Skeleton{skeleton.StandingSkeleton(1)},
		ImageWidth:  cfg.Sensor.ImageWidth,
		ImageHeight: cfg.Sensor.ImageHeight,
	}
	return &pacedSource{Source: skeleton.NewMockSource([]skeleton.Frame{frame}, true), interval: time.Second / 30}, "mock", nil
}

// pacedSource throttles a source that would otherwise return frames as fast
// as they are requested.
type pacedSource struct {
	skeleton.Source
	interval time.Duration
}

func (p *pacedSource) Next(ctx context.Context) (skeleton.Frame, error) {
	select {
	case <-ctx.Done():
		return skeleton.Frame{}, ctx.Err()
	case <-time.After(p.interval):
	}
	return p.Source.Next(ctx)
}

// trayStatus mirrors the first status line of each result into the tray.
func trayStatus(get func() *tray.Tray) app.Publisher {
	var last string
	return app.PublisherFunc(func(res tracker.Result) {
		t := get()
		if t == nil {
			return
		}
		status := fmt.Sprintf("%d players", len(res.Players))
		if len(res.Status) > 0 {
			status = res.Status[0]
		}
		if status != last {
			last = status
			t.SetStatus(status)
		}
	})
}

func viewerURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.handbox/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.DefaultDir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
