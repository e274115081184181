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
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"
	"github.com/xtaci/smux"

	"github.com/tilewall/tilewall/internal/config"
	"github.com/tilewall/tilewall/internal/obslog"
	"github.com/tilewall/tilewall/internal/rpc"
	"github.com/tilewall/tilewall/internal/supervisor"
	"github.com/tilewall/tilewall/internal/telemetry"
	"github.com/tilewall/tilewall/internal/transport"
)

// serveControl stands up the KCP/smux control tunnel: one UDP listener per
// port in --control-listen's range, terminating every smux session in an
// RPC dispatcher against sup instead of bridging to a dialed TCP or unix
// target.
func serveControl(cfg config.Config, sup *supervisor.Supervisor, logger *obslog.Logger, stop <-chan struct{}) {
	mp, err := transport.ParseMultiPort(cfg.ControlListen)
	if err != nil {
		logger.Printf("control-listen %q: %v", cfg.ControlListen, err)
		return
	}

	pass := transport.DeriveKey(cfg.ControlKey)
	block, effectiveCrypt := transport.SelectBlockCrypt(cfg.ControlCrypt, pass)
	nodelay, interval, resend, nc := transport.ModeParams(cfg.ControlMode)
	logger.Printf("control tunnel: crypt=%s mode=%s nodelay=%d,%d,%d,%d", effectiveCrypt, cfg.ControlMode, nodelay, interval, resend, nc)

	var wg sync.WaitGroup
	accept := func(lis *kcp.Listener) {
		defer wg.Done()
		go func() {
			<-stop
			lis.Close()
		}()
		for {
			conn, err := lis.AcceptKCP()
			if err != nil {
				logger.Printf("accept: %v", err)
				return
			}
			conn.SetStreamMode(true)
			conn.SetWriteDelay(false)
			conn.SetNoDelay(nodelay, interval, resend, nc)
			conn.SetMtu(1350)
			conn.SetWindowSize(256, 256)
			conn.SetACKNoDelay(false)

			go serveSession(conn, cfg, sup, logger)
		}
	}

	for port := mp.MinPort; port <= mp.MaxPort; port++ {
		addr := fmt.Sprintf("%s:%d", mp.Host, port)

		lis, err := kcp.ListenWithOptions(addr, block, 0, 0)
		if err != nil {
			logger.Printf("ListenWithOptions %s: %v", addr, err)
			continue
		}
		logger.Printf("control tunnel listening on %s/udp", addr)
		wg.Add(1)
		go accept(lis)
	}

	wg.Wait()
}

// serveSession negotiates a smux server session on top of one accepted KCP
// conversation, opens the first stream itself as the server-to-client
// telemetry feed, then dispatches every client-opened stream as one RPC
// call each.
func serveSession(conn net.Conn, cfg config.Config, sup *supervisor.Supervisor, logger *obslog.Logger) {
	smuxCfg, err := transport.BuildSmuxConfig(
		transport.DefaultSmuxVersion,
		transport.DefaultMaxReceiveBuf,
		transport.DefaultMaxStreamBuf,
		transport.DefaultMaxFrameSize,
		transport.DefaultKeepAliveSecond,
	)
	if err != nil {
		logger.Printf("smux config: %v", err)
		conn.Close()
		return
	}

	session, err := smux.Server(conn, smuxCfg)
	if err != nil {
		logger.Printf("smux.Server: %v", err)
		conn.Close()
		return
	}
	defer session.Close()

	telemetryStream, err := session.OpenStream()
	if err != nil {
		logger.Printf("open telemetry stream: %v", err)
		return
	}
	stopTelemetry := make(chan struct{})
	go func() {
		telemetry.Logger(cfg.ControlSNMPLog, cfg.ControlSNMPPeriod, telemetry.FromPanes(sup.Panes()), stopTelemetry)
	}()
	// The telemetry feed is small, repetitive JSON frames sent once a
	// second per pane; snappy earns its keep here even though the RPC
	// request/response stream (already short, already one-shot) does not.
	go streamTelemetry(transport.NewCompStream(telemetryStream), sup, stopTelemetry)
	defer close(stopTelemetry)

	dispatcher := &rpc.Dispatcher{Panes: sup, Logger: logger}
	for {
		stream, err := session.AcceptStream()
		if err != nil {
			logger.Printf("session closed: %v", err)
			return
		}
		go func(s *smux.Stream) {
			defer s.Close()
			dispatcher.Serve(s)
		}(stream)
	}
}

// streamTelemetry writes one Telemetry object per pane per tick onto a
// dedicated server-opened smux stream, independent of the CSV file logger
// that --control-snmp-log feeds. stream is snappy-compressed: this feed is
// the one case where the frames are small and repetitive enough for that
// to pay off.
func streamTelemetry(stream *transport.CompStream, sup *supervisor.Supervisor, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	enc := json.NewEncoder(stream)
	collect := telemetry.FromPanes(sup.Panes())

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, s := range collect() {
				t := rpc.Telemetry{
					Pane:       s.Pane,
					Bitrate:    s.Bitrate,
					LagSeconds: s.LagSeconds,
					Speed:      s.Speed,
					Width:      s.Width,
					Height:     s.Height,
					Restarts:   s.Restarts,
				}
				if err := enc.Encode(t); err != nil {
					return
				}
			}
		}
	}
}
