// Wayfinder announces nearby obstacles for blind and low-vision users.
//
// It detects objects with a YOLO model, estimates their distance from a
// stereo camera pair (or from known object widths with one camera) and
// speaks throttled alerts.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/teslashibe/go-wayfinder/internal/config"
	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/alert"
	"github.com/teslashibe/go-wayfinder/pkg/pipeline"
	"github.com/teslashibe/go-wayfinder/pkg/web"
	"github.com/teslashibe/go-wayfinder/pkg/wayfinder"
)

const (
	flagConfig     = "config"
	flagLogLevel   = "log-level"
	flagFrameSkip  = "frame-skip"
	flagNoVoice    = "no-voice"
	flagNoWindow   = "no-window"
	flagWebAddr    = "web-addr"
	flagMQTT       = "mqtt-broker"
	flagResolution = "resolution"
	flagAddr       = "addr"
)

func main() {
	app := &cli.App{
		Name:  "wayfinder",
		Usage: "announce nearby obstacles from a stereo camera",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{config.EnvConfigPath},
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run with a calibrated stereo camera pair",
				Flags:  sessionFlags(),
				Action: runAction(wayfinder.Stereo),
			},
			{
				Name:   "mono",
				Usage:  "run with a single camera using known object widths",
				Flags:  sessionFlags(),
				Action: runAction(wayfinder.Mono),
			},
			{
				Name:  "watch",
				Usage: "print frame reports streamed by a running dashboard",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagAddr,
						Value: "localhost:8080",
						Usage: "dashboard `HOST:PORT`",
					},
				},
				Action: watchAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "wayfinder:", err)
		os.Exit(1)
	}
}

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: flagFrameSkip, Usage: "process every `N`th frame"},
		&cli.BoolFlag{Name: flagNoVoice, Usage: "start with voice muted"},
		&cli.BoolFlag{Name: flagNoWindow, Usage: "do not open preview windows"},
		&cli.StringFlag{Name: flagWebAddr, Usage: "serve the dashboard on `ADDR`"},
		&cli.StringFlag{Name: flagMQTT, Usage: "publish alerts to MQTT broker `HOST:PORT`"},
		&cli.StringFlag{Name: flagResolution, Usage: "camera preset: vga, 720p, 1080p or low"},
	}
}

// loadConfig applies .env, the config file, the environment and then flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return cfg, err
	}

	if v := c.String(flagLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if c.IsSet(flagFrameSkip) {
		cfg.Session.FrameSkip = c.Int(flagFrameSkip)
	}
	if c.Bool(flagNoVoice) {
		cfg.Session.VoiceEnabled = false
	}
	if c.Bool(flagNoWindow) {
		cfg.Session.ShowWindow = false
	}
	if c.IsSet(flagWebAddr) {
		cfg.Web.Addr = c.String(flagWebAddr)
	}
	if c.IsSet(flagMQTT) {
		cfg.MQTT.Broker = c.String(flagMQTT)
	}
	if c.IsSet(flagResolution) {
		cfg.Session.Resolution = c.String(flagResolution)
	}
	return cfg, cfg.Validate()
}

func runAction(mode wayfinder.Mode) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		logger := log.Init(cfg.LogLevel, cfg.LogFormat)

		app, err := wayfinder.New(cfg, mode, devices(), logger)
		if err != nil {
			return err
		}
		if err := app.Init(); err != nil {
			return err
		}
		defer app.Shutdown()

		ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return app.Run(ctx)
	}
}

func watchAction(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	phrasing := alert.Phrasings["en"]
	return web.Watch(ctx, web.ResultsURL(c.String(flagAddr)), func(r pipeline.Report) {
		printReport(os.Stdout, r, phrasing)
	})
}
