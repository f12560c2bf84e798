package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AddisonG/timtamcam/internal/config"
	"github.com/AddisonG/timtamcam/internal/debug"
	"github.com/AddisonG/timtamcam/internal/hw/camera"
	"github.com/AddisonG/timtamcam/internal/hw/gpio"
	"github.com/AddisonG/timtamcam/internal/hw/scale"
	"github.com/AddisonG/timtamcam/internal/logic/capture"
	"github.com/AddisonG/timtamcam/internal/logic/monitor"
	"github.com/AddisonG/timtamcam/internal/logic/overlay"
	"github.com/AddisonG/timtamcam/internal/net/discovery"
	"github.com/AddisonG/timtamcam/internal/notify"
	"github.com/AddisonG/timtamcam/internal/store"
	"github.com/AddisonG/timtamcam/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4); -1 uses the config value")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := validateDebugOverride(*debugLevel); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	if *debugLevel >= 0 {
		cfg.Defaults.DebugLevel = *debugLevel
	}

	// Initialize debug system, mirroring output to the log file
	debug.Init(cfg.Defaults.DebugLevel)
	logOut := io.Writer(os.Stdout)
	if cfg.Defaults.LogFile != "none" {
		f, err := os.OpenFile(cfg.Defaults.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("open log file failed: %v", err)
		}
		defer f.Close()
		logOut = io.MultiWriter(os.Stdout, f)
		debug.SetOutput(logOut)
	}
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Info("Tim Tam Bot starting!")

	// The bot token comes from the environment (optionally via .env),
	// falling back to the configured token file.
	_ = godotenv.Load()
	token, err := resolveToken(cfg.Slack.TokenFile)
	if err != nil {
		log.Fatalf("slack token: %v", err)
	}

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize the scale
	debug.Step(2, "Setting up the scales")
	hx, err := scale.NewHX711(gpioDriver, cfg.Scale.DataPin, cfg.Scale.ClockPin, cfg.Scale.ReferenceUnit)
	if err != nil {
		log.Fatalf("init scale failed: %v", err)
	}
	if err := hx.Reset(); err != nil {
		log.Fatalf("reset scale failed: %v", err)
	}
	if err := hx.Tare(cfg.Scale.TareSamples); err != nil {
		log.Fatalf("tare scale failed: %v", err)
	}

	// Locate the camera
	debug.Step(3, "Locating the camera")
	host, err := locateCamera(ctx, cfg)
	if err != nil {
		log.Fatalf("locate camera failed: %v", err)
	}
	debug.Value("Camera host", host)
	cam := camera.NewRTSP(cfg.Camera.Username, cfg.Camera.Password, host, cfg.Camera.Stream)

	// Seasonal overlay, if this month has one and assets exist
	debug.Step(4, "Loading seasonal overlay")
	ov, err := overlay.Load(cfg.Capture.AssetsDir, time.Now().Month())
	if err != nil {
		log.Fatalf("load overlay failed: %v", err)
	}

	recorder := capture.NewRecorder(cam, ov, capture.Params{
		Duration:  cfg.CaptureDuration(),
		FPS:       cfg.Capture.FPS,
		OutputDir: cfg.Capture.OutputDir,
		Optimize:  cfg.Capture.Optimize,
	})

	// Slack
	debug.Step(5, "Connecting to Slack")
	bot, err := notify.NewSlack(token, cfg.Slack.ChannelID)
	if err != nil {
		log.Fatalf("init slack failed: %v", err)
	}
	if err := bot.Join(ctx); err != nil {
		log.Fatalf("join channel failed: %v", err)
	}
	if err := bot.PostMessage(ctx, "tim-tam-bot coming online!"); err != nil {
		debug.Error(err)
	}

	// Event log
	debug.Step(6, "Opening event log")
	db, err := store.Open(cfg.Defaults.DatabasePath)
	if err != nil {
		log.Fatalf("open event log failed: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("closing event log failed: %v", err)
		}
	}()

	mon := monitor.New(hx, recorder, bot, db, monitor.Params{
		ItemWeightG:  cfg.Watch.ItemWeightG,
		DeltaWeightG: cfg.Watch.DeltaWeightG,
		ItemFraction: cfg.Watch.ItemFraction,
		ReadSamples:  cfg.Scale.ReadSamples,
		PollInterval: cfg.PollInterval(),
		QuietStart:   cfg.Watch.QuietStartHour,
		QuietEnd:     cfg.Watch.QuietEndHour,
		SkipWeekends: cfg.Watch.SkipWeekends,
	})
	if cfg.Camera.MAC != "" {
		mon.SetRecoverFunc(func(ctx context.Context) error {
			ip, err := discovery.FindIPByMAC(ctx, cfg.Camera.Interface, cfg.Camera.Network, cfg.Camera.MAC)
			if err != nil {
				return err
			}
			cam.SetHost(ip.String())
			return nil
		})
	}

	if port := webPort.port(); port > 0 {
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(logOut, web.BroadcastWriter(broadcaster)))

		testCapture := func(ctx context.Context) error {
			path, err := recorder.Record(ctx)
			if err != nil {
				return err
			}
			return bot.UploadFile(ctx, path, "Test capture from timtamcam.")
		}
		srv := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, mon, db, testCapture)
		go func() {
			if err := srv.Run(ctx); err != nil {
				debug.Error(fmt.Errorf("web server: %w", err))
				cancel()
			}
		}()
	}

	debug.Section("Monitoring")
	if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("monitor stopped: %v", err)
	}
}

// locateCamera finds the camera's address, preferring ARP discovery by MAC
// and falling back to the configured static host.
func locateCamera(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Camera.MAC == "" {
		return cfg.Camera.Host, nil
	}
	ip, err := discovery.FindIPByMAC(ctx, cfg.Camera.Interface, cfg.Camera.Network, cfg.Camera.MAC)
	if err != nil {
		if cfg.Camera.Host != "" {
			debug.Error(fmt.Errorf("discovery failed, using static host %s: %w", cfg.Camera.Host, err))
			return cfg.Camera.Host, nil
		}
		return "", err
	}
	return ip.String(), nil
}

// resolveToken returns the Slack bot token from the environment,
// or from the given token file.
func resolveToken(tokenFile string) (string, error) {
	if token := strings.TrimSpace(os.Getenv("SLACK_BOT_TOKEN")); token != "" {
		return token, nil
	}
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", tokenFile)
	}
	return token, nil
}

// validateDebugOverride checks the -debug flag; -1 means "use config".
func validateDebugOverride(level int) error {
	if level < -1 || level > 4 {
		return fmt.Errorf("debug level must be 0-4, got %d", level)
	}
	return nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
