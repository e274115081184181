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

package transport

import (
	"time"

	"github.com/xtaci/smux"
)

// Default smux tuning for the control tunnel: one session per client, one
// stream per in-flight RPC call plus one long-lived telemetry stream, so
// buffers stay modest — there is no bulk payload to relay, just short
// JSON request/response frames and periodic telemetry samples.
const (
	DefaultSmuxVersion     = 2
	DefaultMaxReceiveBuf   = 1048576
	DefaultMaxStreamBuf    = 262144
	DefaultMaxFrameSize    = 4096
	DefaultKeepAliveSecond = 10
)

// BuildSmuxConfig constructs and verifies a smux.Config for the control
// tunnel.
func BuildSmuxConfig(version, maxReceiveBuffer, maxStreamBuffer, maxFrameSize, keepAliveSeconds int) (*smux.Config, error) {
	cfg := smux.DefaultConfig()
	cfg.Version = version
	cfg.MaxReceiveBuffer = maxReceiveBuffer
	cfg.MaxStreamBuffer = maxStreamBuffer
	cfg.MaxFrameSize = maxFrameSize
	cfg.KeepAliveInterval = time.Duration(keepAliveSeconds) * time.Second

	return cfg, smux.VerifyConfig(cfg)
}
