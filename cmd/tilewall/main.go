// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/tilewall/tilewall/internal/config"
	"github.com/tilewall/tilewall/internal/decoder"
	"github.com/tilewall/tilewall/internal/layout"
	"github.com/tilewall/tilewall/internal/obslog"
	"github.com/tilewall/tilewall/internal/pane"
	"github.com/tilewall/tilewall/internal/supervisor"
)

// VERSION is injected by build flags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "tilewall"
	myApp.Usage = "low-latency multi-pane video wall"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "log_path", Value: "", Usage: "rotating log file (10MiB x 3), empty goes to stderr"},
		cli.StringFlag{Name: "log_level", Value: "info", Usage: "trace, debug, v, info, warn, error, fatal, no"},
		cli.IntFlag{Name: "ways", Value: 1, Usage: "pane count: 1, 4, 6, 8, 9, 16"},
		cli.IntFlag{Name: "gpu_ways", Value: 0, Usage: "panes eligible for hwdec, 0 means all of ways"},
		cli.StringFlag{Name: "video_url", Value: "", Usage: "local file path or network URL to fan out"},
		cli.StringFlag{Name: "profile", Value: "low-latency", Usage: "decoder profile"},
		cli.StringFlag{Name: "vo", Value: "", Usage: "video output driver"},
		cli.StringFlag{Name: "hwdec", Value: "auto", Usage: "hardware decode mode"},
		cli.StringFlag{Name: "gpu_api", Value: "", Usage: "gpu api, empty or auto to let the decoder choose"},
		cli.StringFlag{Name: "gpu_context", Value: "", Usage: "gpu context, empty or auto to let the decoder choose"},
		cli.StringFlag{Name: "mpv_log_level", Value: "v", Usage: "decoder log verbosity"},
		cli.IntFlag{Name: "window_left_pos", Value: 0},
		cli.IntFlag{Name: "window_top_pos", Value: 0},
		cli.IntFlag{Name: "window_width", Value: 0},
		cli.IntFlag{Name: "window_height", Value: 0},

		cli.StringFlag{Name: "control-listen", Value: "", Usage: "KCP/smux control listen address, empty disables the control tunnel"},
		cli.StringFlag{Name: "control-key", Value: "it's a secrect", Usage: "pre-shared secret for the control tunnel"},
		cli.StringFlag{Name: "control-crypt", Value: "aes", Usage: "control tunnel cipher"},
		cli.StringFlag{Name: "control-mode", Value: "fast", Usage: "control tunnel KCP profile: fast3, fast2, fast, normal"},
		cli.StringFlag{Name: "control-snmp-log", Value: "", Usage: "periodic per-pane telemetry CSV, time-formatted path"},
		cli.IntFlag{Name: "control-snmp-period", Value: 60, Usage: "telemetry collection period in seconds"},
		cli.StringFlag{Name: "config, c", Value: "", Usage: "config from a json file, overriding the flags above"},
	}

	myApp.Action = run
	if err := myApp.Run(os.Args); err != nil {
		log.Printf("%+v", err)
		os.Exit(config.ExitPaneConstructionFail)
	}
}

func run(c *cli.Context) error {
	cfg := config.Default()
	cfg.LogPath = c.String("log_path")
	cfg.LogLevel = c.String("log_level")
	cfg.Ways = c.Int("ways")
	cfg.GPUWays = c.Int("gpu_ways")
	cfg.VideoURL = c.String("video_url")
	cfg.Profile = c.String("profile")
	cfg.VO = c.String("vo")
	cfg.Hwdec = c.String("hwdec")
	cfg.GPUAPI = c.String("gpu_api")
	cfg.GPUContext = c.String("gpu_context")
	cfg.MpvLogLevel = c.String("mpv_log_level")
	cfg.WindowLeftPos = c.Int("window_left_pos")
	cfg.WindowTopPos = c.Int("window_top_pos")
	cfg.WindowWidth = c.Int("window_width")
	cfg.WindowHeight = c.Int("window_height")

	cfg.ControlListen = c.String("control-listen")
	cfg.ControlKey = c.String("control-key")
	cfg.ControlCrypt = c.String("control-crypt")
	cfg.ControlMode = c.String("control-mode")
	cfg.ControlSNMPLog = c.String("control-snmp-log")
	cfg.ControlSNMPPeriod = c.Int("control-snmp-period")

	if path := c.String("config"); path != "" {
		if err := config.LoadJSON(&cfg, path); err != nil {
			return err
		}
	}

	log.SetOutput(obslog.NewRotatingWriter(cfg.LogPath))
	logger := obslog.New(obslog.NewRotatingWriter(cfg.LogPath), "tilewall")

	if cfg.VideoURL == "" {
		color.Red("video_url must not be empty")
		os.Exit(config.ExitEmptyVideoURL)
	}

	logger.Printf("version: %s", VERSION)
	logger.Printf("ways: %d gpu_ways: %d video_url: %s", cfg.Ways, cfg.GPUWays, cfg.VideoURL)
	logger.Printf("profile: %s vo: %s hwdec: %s", cfg.Profile, cfg.VO, cfg.Hwdec)
	logger.Printf("control-listen: %s control-crypt: %s control-mode: %s", cfg.ControlListen, cfg.ControlCrypt, cfg.ControlMode)

	provider := layout.NewHeadless()
	supCfg := supervisor.Config{
		VideoURL:     cfg.VideoURL,
		Ways:         cfg.Ways,
		GPUWays:      cfg.GPUWays,
		Profile:      cfg.Profile,
		VO:           cfg.VO,
		Hwdec:        cfg.Hwdec,
		GPUAPI:       cfg.GPUAPI,
		GPUContext:   cfg.GPUContext,
		LogLevel:     config.MpvLogLevelToDecoder(cfg.MpvLogLevel),
		RingCapacity: 1 << 20,
	}

	factory := func(index int) pane.HandleFactory {
		return func() decoder.Handle {
			// No native decoder binding ships in this module; the Handle
			// contract in internal/decoder is meant to be satisfied by an
			// external mpv-IPC binding. A Fake stands in so the pipeline
			// is exercisable end to end.
			return decoder.NewFake()
		}
	}

	sup, err := supervisor.Start(supCfg, factory, provider, logger.Sub("supervisor"))
	if err != nil {
		logger.Printf("supervisor start failed: %v", err)
		os.Exit(config.ExitPaneConstructionFail)
	}
	defer sup.Stop()

	stopControl := make(chan struct{})
	if cfg.ControlListen != "" {
		go serveControl(cfg, sup, logger.Sub("control"), stopControl)
	}
	defer close(stopControl)

	waitForShutdownSignal(logger)
	return nil
}

func waitForShutdownSignal(logger *obslog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	logger.Printf("received %v, shutting down", sig)
}
