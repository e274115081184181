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

// tilewallctl is a one-shot command line client for a running tilewall
// process's control tunnel: it dials the KCP/smux listener, opens one
// stream, issues a single RPC call, prints the response, and exits.
package main

import (
	"encoding/json"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	kcp "github.com/xtaci/kcp-go/v5"
	"github.com/xtaci/smux"

	"github.com/tilewall/tilewall/internal/rpc"
	"github.com/tilewall/tilewall/internal/transport"
)

var VERSION = "SELFBUILD"

func main() {
	myApp := cli.NewApp()
	myApp.Name = "tilewallctl"
	myApp.Usage = "issue one remote control RPC against a tilewall control tunnel"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "remote", Value: "127.0.0.1:29900", Usage: "tilewall control-listen address"},
		cli.StringFlag{Name: "key", Value: "it's a secrect", Usage: "pre-shared control-key"},
		cli.StringFlag{Name: "crypt", Value: "aes", Usage: "control tunnel cipher"},
		cli.StringFlag{Name: "mode", Value: "fast", Usage: "KCP profile: fast3, fast2, fast, normal"},
		cli.IntFlag{Name: "pane", Value: 0, Usage: "target pane index"},
		cli.StringFlag{Name: "op", Usage: "play, pause, step, mute_get, mute_set, volume_get, volume_set, resolution_get, speed_get, speed_set, bitrate_get, fps_get, screenshot"},
		cli.Float64Flag{Name: "value", Usage: "numeric argument for *_set ops (volume_set, speed_set, mute_set: 0 or 1)"},
		cli.BoolFlag{Name: "telemetry", Usage: "print the first snappy-compressed telemetry sample (one pane) before issuing --op"},
	}
	myApp.Action = run
	if err := myApp.Run(os.Args); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	op := rpc.Op(c.String("op"))
	if op == "" {
		return errors.New("--op is required")
	}

	pass := transport.DeriveKey(c.String("key"))
	block, effectiveCrypt := transport.SelectBlockCrypt(c.String("crypt"), pass)
	nodelay, interval, resend, nc := transport.ModeParams(c.String("mode"))
	log.Printf("crypt: %s mode: %s", effectiveCrypt, c.String("mode"))

	kcpconn, err := kcp.DialWithOptions(c.String("remote"), block, 0, 0)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	kcpconn.SetStreamMode(true)
	kcpconn.SetWriteDelay(false)
	kcpconn.SetNoDelay(nodelay, interval, resend, nc)
	kcpconn.SetMtu(1350)
	kcpconn.SetWindowSize(256, 256)

	smuxCfg, err := transport.BuildSmuxConfig(
		transport.DefaultSmuxVersion,
		transport.DefaultMaxReceiveBuf,
		transport.DefaultMaxStreamBuf,
		transport.DefaultMaxFrameSize,
		transport.DefaultKeepAliveSecond,
	)
	if err != nil {
		return errors.Wrap(err, "smux config")
	}

	session, err := smux.Client(kcpconn, smuxCfg)
	if err != nil {
		return errors.Wrap(err, "smux.Client")
	}
	defer session.Close()

	// The server opens the telemetry stream first and writes snappy-
	// compressed JSON samples onto it once a second per pane.
	telemetryStream, err := session.AcceptStream()
	if err != nil {
		return errors.Wrap(err, "accept telemetry stream")
	}
	comp := transport.NewCompStream(telemetryStream)
	if c.Bool("telemetry") {
		if err := printOneTelemetrySample(comp); err != nil {
			color.Red("telemetry: %v", err)
		}
	}
	comp.Close()

	stream, err := session.OpenStream()
	if err != nil {
		return errors.Wrap(err, "open rpc stream")
	}
	defer stream.Close()

	client := rpc.NewClient(stream)
	req := rpc.Request{Op: op, Pane: c.Int("pane"), Args: buildArgs(c, op)}
	resp, err := client.Call(req)
	if err != nil {
		return errors.Wrap(err, "call")
	}

	if !resp.OK {
		color.Red("error: %s", resp.Error)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(resp.Result, "", "  ")
	color.Green("ok")
	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
	return nil
}

// printOneTelemetrySample decodes and prints the first Telemetry frame off
// a snappy-compressed stream, one pane at a time as the server ticks them.
func printOneTelemetrySample(r io.Reader) error {
	var t rpc.Telemetry
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return errors.Wrap(err, "decode telemetry sample")
	}
	out, _ := json.MarshalIndent(t, "", "  ")
	color.Cyan("telemetry sample (pane %d):", t.Pane)
	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
	return nil
}

// buildArgs folds the --value flag into the argument key each *_set op's
// dispatcher case reads (internal/rpc.Dispatcher.dispatch).
func buildArgs(c *cli.Context, op rpc.Op) map[string]any {
	if !c.IsSet("value") {
		return nil
	}
	v := c.Float64("value")
	switch op {
	case rpc.OpMuteSet:
		return map[string]any{"muted": v != 0}
	case rpc.OpVolumeSet:
		return map[string]any{"volume": v}
	case rpc.OpSpeedSet:
		return map[string]any{"speed": v}
	default:
		return nil
	}
}
