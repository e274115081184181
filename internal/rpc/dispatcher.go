package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tilewall/tilewall/internal/pane"
	"github.com/tilewall/tilewall/internal/transport"
)

// PaneLookup resolves a pane index to its *pane.Pane, mirroring
// supervisor.Supervisor.Pane without importing it directly, so dispatcher
// tests can stand up a fake supervisor.
type PaneLookup interface {
	Pane(index int) *pane.Pane
}

// Logger is satisfied by *obslog.Logger, and by any package's own narrow
// Logger interface.
type Logger interface {
	Printf(format string, args ...any)
}

// Dispatcher answers Requests against a pane set. One Dispatcher is
// shared by every control connection; it holds no per-connection state.
type Dispatcher struct {
	Panes  PaneLookup
	Logger Logger
}

// Serve reads newline-delimited JSON requests from rw and writes
// newline-delimited JSON responses back to it until rw is exhausted or a
// decode error forces the stream closed (after an error response is
// written), exactly the bound a bad control connection must respect: it
// never takes down the supervisor. A panic while serving is recovered and
// logged, and ends only this stream.
//
// A screenshot request is the one op whose response is followed by a raw
// byte payload rather than another request line: once dispatch hands back
// a file, Serve relays it onto rw with transport.Copy and then ends the
// stream, since the rest of it is spent as an image, not JSON lines.
func (d *Dispatcher) Serve(rw io.ReadWriter) {
	defer func() {
		if r := recover(); r != nil {
			d.logf("rpc: dispatcher panic: %v", r)
		}
	}()
	scanner := bufio.NewScanner(rw)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			d.logf("rpc: malformed request: %v", err)
			writeResponse(rw, Response{OK: false, Error: err.Error()})
			return
		}
		resp, payload := d.dispatch(req)
		if err := writeResponse(rw, resp); err != nil {
			d.logf("rpc: write response: %v", err)
			if payload != nil {
				payload.Close()
			}
			return
		}
		if payload != nil {
			if _, err := transport.Copy(rw, payload); err != nil {
				d.logf("rpc: screenshot relay: %v", err)
			}
			payload.Close()
			return
		}
	}
}

func (d *Dispatcher) logf(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
	}
}

func writeResponse(w io.Writer, resp Response) error {
	line, err := marshalLine(resp)
	if err != nil {
		return err
	}
	_, err = w.Write(line)
	return err
}

// dispatch answers req. The returned io.ReadCloser is non-nil only for
// OpScreenshot, carrying the captured image for Serve to relay.
func (d *Dispatcher) dispatch(req Request) (Response, io.ReadCloser) {
	p := d.Panes.Pane(req.Pane)
	if p == nil {
		return Response{OK: false, Error: fmt.Sprintf("no such pane: %d", req.Pane)}, nil
	}

	switch req.Op {
	case OpPlay:
		return errResponse(p.Play()), nil
	case OpPause:
		return errResponse(p.Pause()), nil
	case OpStep:
		return errResponse(p.Step()), nil
	case OpMuteGet:
		return Response{OK: true, Result: map[string]any{"muted": p.GetMute()}}, nil
	case OpMuteSet:
		muted, _ := req.Args["muted"].(bool)
		return errResponse(p.SetMute(muted)), nil
	case OpVolumeGet:
		return Response{OK: true, Result: map[string]any{"volume": p.GetVolume()}}, nil
	case OpVolumeSet:
		volume, _ := req.Args["volume"].(float64)
		return errResponse(p.SetVolume(volume)), nil
	case OpResolutionGet:
		w, h := p.GetResolution()
		return Response{OK: true, Result: map[string]any{"width": w, "height": h}}, nil
	case OpSpeedGet:
		return Response{OK: true, Result: map[string]any{"speed": p.GetSpeed()}}, nil
	case OpSpeedSet:
		speed, _ := req.Args["speed"].(float64)
		return errResponse(p.SetSpeedProp(speed)), nil
	case OpBitrateGet:
		return Response{OK: true, Result: map[string]any{"bitrate": p.GetBitrate()}}, nil
	case OpFPSGet:
		return Response{OK: true, Result: map[string]any{"fps": p.GetFPS()}}, nil
	case OpScreenshot:
		return d.screenshot(p)
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown op: %q", req.Op)}, nil
	}
}

// screenshot captures a pane frame to disk and opens it for Serve to relay
// onto the RPC stream, so a remote control client never needs filesystem
// access to the server's temp directory to retrieve the image.
func (d *Dispatcher) screenshot(p *pane.Pane) (Response, io.ReadCloser) {
	path, err := p.Screenshot()
	if err != nil {
		return Response{OK: false, Error: err.Error()}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Response{OK: false, Error: err.Error()}, nil
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return Response{OK: false, Error: err.Error()}, nil
	}
	return Response{OK: true, Result: map[string]any{"path": path, "bytes": info.Size()}}, f
}

func errResponse(err error) Response {
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true}
}
