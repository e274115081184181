// Package pane implements the per-tile pipeline: one Ring, one decoder
// Handle, one Event Pump goroutine, saved start configuration, and the
// adaptive latency controller, wired together through the lifecycle
// Fresh -> Running -> Restarting -> Running ... -> Stopped.
package pane

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tilewall/tilewall/internal/decoder"
	"github.com/tilewall/tilewall/internal/latency"
	"github.com/tilewall/tilewall/internal/pump"
	"github.com/tilewall/tilewall/internal/ring"
	"github.com/tilewall/tilewall/internal/stream"
)

// State is the pane lifecycle state.
type State int32

const (
	StateFresh State = iota
	StateRunning
	StateRestarting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateRunning:
		return "running"
	case StateRestarting:
		return "restarting"
	default:
		return "stopped"
	}
}

// Window is the per-pane slice of the Grid Layout Binder's contract: a
// native window handle and a visibility toggle. Supervisor/layout supply
// the concrete implementation; pane only borrows it.
type Window interface {
	Handle() (uint64, error)
	SetVisible(visible bool)
}

// HandleFactory constructs a fresh, uncreated decoder Handle. Each pane
// start (including restarts) gets a new Handle instance, mirroring the
// create/terminate lifecycle of the underlying decoder library.
type HandleFactory func() decoder.Handle

// Options holds the per-pane start configuration, saved across restarts.
type Options struct {
	Profile      string
	VO           string
	Hwdec        string
	GPUAPI       string
	GPUContext   string
	LogLevel     decoder.LogLevel
	RingCapacity uint32
}

// Logger receives pane-level structured records.
type Logger interface {
	Printf(format string, args ...any)
}

const screenshotPollInterval = 100 * time.Millisecond
const screenshotTimeout = 3 * time.Second
const screenshotMinBytes = 1024
const restartPollInterval = 5 * time.Millisecond

// Pane aggregates one ring, one decoder handle, one event pump, and the
// latency controller for a single grid tile.
type Pane struct {
	Index         int
	NewHandle     HandleFactory
	Window        Window
	Logger        Logger
	TempDir       string
	StatFunc      func(string) (os.FileInfo, error)
	NowFunc       func() time.Time

	mu      sync.Mutex
	state   State
	handle  decoder.Handle
	ring    *ring.Ring
	latency *latency.Controller

	url  string
	opts Options

	stopping   atomic.Bool
	restarting atomic.Bool

	pumpDone chan struct{}
	width    int
	height   int
	restarts int
}

// New returns a Fresh pane. capacity defaults applied by the caller via
// Options.RingCapacity; New only wires shared state.
func New(index int, factory HandleFactory, window Window, logger Logger) *Pane {
	return &Pane{
		Index:     index,
		NewHandle: factory,
		Window:    window,
		Logger:    logger,
		TempDir:   os.TempDir(),
		StatFunc:  os.Stat,
		NowFunc:   time.Now,
		ring:      ring.New(0),
		latency:   latency.New(),
	}
}

// State returns the pane's current lifecycle state.
func (p *Pane) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start runs the ordered start sequence: create handle, set wid, set
// profile/vo/hwdec/gpu-api/gpu-context, keepaspect=no, log level,
// initialize, spawn the event pump, reset the ring, choose the stream
// mode, and mark the window visible. Any failed step aborts, runs stop,
// and returns the error.
func (p *Pane) Start(url string, opts Options) error {
	p.mu.Lock()
	p.url = url
	p.opts = opts
	p.mu.Unlock()

	return p.doStart(true)
}

// doStart runs the ordered start sequence. resetRing is false only on the
// in-place restart path, where the ring and any bytes already queued in it
// must survive the decoder handle being torn down and recreated.
func (p *Pane) doStart(resetRing bool) error {
	p.mu.Lock()
	url := p.url
	opts := p.opts
	p.mu.Unlock()

	h := p.NewHandle()
	if err := p.call("create", nil, h.Create()); err != nil {
		return p.abort(err)
	}

	wid, err := p.Window.Handle()
	if err != nil {
		return p.abort(err)
	}
	if err := p.call("set_option(wid)", []any{wid}, h.SetOption("wid", decoder.Int(int64(wid)))); err != nil {
		return p.abort(err)
	}

	for _, opt := range []struct {
		name, value string
		skipAuto    bool
	}{
		{"profile", opts.Profile, false},
		{"vo", opts.VO, false},
		{"hwdec", opts.Hwdec, false},
		{"gpu-api", opts.GPUAPI, true},
		{"gpu-context", opts.GPUContext, true},
	} {
		if opt.value == "" {
			continue
		}
		if opt.skipAuto && opt.value == "auto" {
			continue
		}
		if err := p.call("set_option("+opt.name+")", []any{opt.value}, h.SetOption(opt.name, decoder.Text(opt.value))); err != nil {
			return p.abort(err)
		}
	}

	if err := p.call("set_option(keepaspect)", nil, h.SetOption("keepaspect", decoder.Text("no"))); err != nil {
		return p.abort(err)
	}

	if err := p.call("request_log_messages", []any{opts.LogLevel}, h.RequestLogMessages(opts.LogLevel)); err != nil {
		return p.abort(err)
	}

	if err := p.call("initialize", nil, h.Initialize()); err != nil {
		return p.abort(err)
	}

	p.mu.Lock()
	p.handle = h
	p.mu.Unlock()

	p.startEventPump(h)

	if resetRing {
		p.ring.Reset(opts.RingCapacity)
	} else {
		p.ring.Resume()
	}

	if fileExists(p.StatFunc, url) {
		src := stream.New(p.ring)
		if err := p.call("register_stream_callback", []any{stream.Scheme}, h.RegisterStreamCallback(stream.Scheme, src.Open())); err != nil {
			return p.abort(err)
		}
		if err := p.call("command(loadfile)", []any{"tilewall://fake"}, h.Command("loadfile", "tilewall://fake")); err != nil {
			return p.abort(err)
		}
	} else {
		if err := p.call("command(loadfile)", []any{url}, h.Command("loadfile", url)); err != nil {
			return p.abort(err)
		}
	}

	p.Window.SetVisible(true)

	p.mu.Lock()
	p.state = StateRunning
	p.mu.Unlock()
	return nil
}

func fileExists(stat func(string) (os.FileInfo, error), path string) bool {
	if stat == nil {
		stat = os.Stat
	}
	info, err := stat(path)
	return err == nil && !info.IsDir()
}

func (p *Pane) call(name string, args []any, err error) error {
	if decoder.Call(p.Logger, name, args, err) {
		return nil
	}
	return err
}

func (p *Pane) abort(cause error) error {
	p.Stop()
	return cause
}

func (p *Pane) startEventPump(h decoder.Handle) {
	done := make(chan struct{})
	p.mu.Lock()
	p.pumpDone = done
	p.mu.Unlock()

	pm := &pump.Pump{
		Handle:      h,
		VideoPrefix: "ffmpeg/video",
		Restarter:   p,
		Resolution:  p,
		Logger:      p.Logger,
		StoppingFunc: func() bool {
			return p.stopping.Load()
		},
	}
	go func() {
		pm.Run()
		close(done)
	}()
}

// SetResolution implements pump.ResolutionSink.
func (p *Pane) SetResolution(width, height int) {
	p.mu.Lock()
	p.width, p.height = width, height
	p.mu.Unlock()
	p.latency.SetMinBitrateForResolution(width, height)
}

// Restart implements pump.Restarter: it is invoked from inside the event
// pump's own goroutine, so the teardown step here must detach the pump
// rather than join it.
func (p *Pane) Restart() {
	p.mu.Lock()
	p.state = StateRestarting
	p.restarts++
	p.mu.Unlock()
	p.restarting.Store(true)

	p.stopInternal(true)

	if err := p.doStart(false); err != nil && p.Logger != nil {
		p.Logger.Printf("pane %d: restart failed: %v", p.Index, err)
	}

	p.restarting.Store(false)
}

// Stopping wakes any blocked producer write and the event pump without
// tearing down the decoder handle or window: it is the signal the fan-out
// reader broadcasts on exit so every pane's blocking put and 16ms poll
// loop notice and return promptly, short of the full Stop() teardown.
func (p *Pane) Stopping() {
	p.stopping.Store(true)
	p.ring.Stopping()
}

// Stop is idempotent: calling it on an already-Stopped pane is a no-op.
func (p *Pane) Stop() {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.stopInternal(false)

	p.mu.Lock()
	p.state = StateStopped
	if !p.restarting.Load() {
		p.url = ""
		p.opts = Options{}
	}
	p.mu.Unlock()
}

func (p *Pane) stopInternal(selfRestart bool) {
	p.stopping.Store(true)
	p.ring.Stopping()

	p.mu.Lock()
	done := p.pumpDone
	h := p.handle
	p.handle = nil
	p.mu.Unlock()

	if !selfRestart && done != nil {
		<-done
	}

	if h != nil {
		h.Terminate()
	}

	if p.Window != nil {
		p.Window.SetVisible(false)
	}

	// Only the in-place restart path clears the flag: a genuine Stop must
	// leave writers refused until a fresh Start.
	if selfRestart {
		p.stopping.Store(false)
	}
}

// Write blocks while the pane is Restarting, refuses while Stopping, and
// otherwise blocking-puts every byte into the ring before invoking the
// latency controller. It returns false only when the pane is stopping.
func (p *Pane) Write(buf []byte) bool {
	for p.restarting.Load() {
		time.Sleep(restartPollInterval)
	}
	if p.stopping.Load() {
		return false
	}

	p.ring.PutBlocking(buf)
	p.latency.OnWrite(len(buf), int(p.ring.Available()), p, p)
	return !p.stopping.Load()
}

// Read drains the ring non-blocking.
func (p *Pane) Read(dst []byte) int {
	return p.ring.Get(dst)
}

// GetFloatProperty implements latency.PropertyGetter.
func (p *Pane) GetFloatProperty(name string, fallback float64) float64 {
	p.mu.Lock()
	h := p.handle
	p.mu.Unlock()
	if h == nil {
		return fallback
	}
	v, err := h.GetProperty(name)
	if err != nil {
		return fallback
	}
	return v.AsFloat()
}

// SetSpeed implements latency.PropertySetter.
func (p *Pane) SetSpeed(speed float64) error {
	return p.SetSpeedProp(speed)
}

// CurrentSpeed implements latency.PropertySetter.
func (p *Pane) CurrentSpeed() float64 {
	return p.GetSpeed()
}

// --- control surface ---

func (p *Pane) withHandle(fn func(h decoder.Handle) error) error {
	p.mu.Lock()
	h := p.handle
	p.mu.Unlock()
	if h == nil {
		return fmt.Errorf("pane %d: no active decoder handle", p.Index)
	}
	return fn(h)
}

func (p *Pane) Play() error {
	return p.withHandle(func(h decoder.Handle) error { return h.Command("play") })
}

func (p *Pane) Pause() error {
	return p.withHandle(func(h decoder.Handle) error { return h.Command("pause") })
}

func (p *Pane) Step() error {
	return p.withHandle(func(h decoder.Handle) error { return h.Command("frame-step") })
}

func (p *Pane) GetMute() bool {
	p.mu.Lock()
	h := p.handle
	p.mu.Unlock()
	if h == nil {
		return false
	}
	v, err := h.GetProperty("mute")
	if err != nil {
		return false
	}
	return v.AsFlag()
}

func (p *Pane) SetMute(muted bool) error {
	return p.withHandle(func(h decoder.Handle) error { return h.SetProperty("mute", decoder.Flag(muted)) })
}

func (p *Pane) GetVolume() float64 {
	return p.GetFloatProperty("volume", 0)
}

func (p *Pane) SetVolume(volume float64) error {
	return p.withHandle(func(h decoder.Handle) error { return h.SetProperty("volume", decoder.Float(volume)) })
}

// GetResolution returns the width/height the event pump last parsed from
// a decoder format or reconfig log line, not a freshly re-read decoder
// property.
func (p *Pane) GetResolution() (width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

func (p *Pane) GetSpeed() float64 {
	return p.GetFloatProperty("speed", 1.0)
}

func (p *Pane) SetSpeedProp(speed float64) error {
	return p.withHandle(func(h decoder.Handle) error { return h.SetProperty("speed", decoder.Float(speed)) })
}

// GetBitrate prefers the latency controller's own estimate when it has
// produced one, falling back to the decoder's reported video-bitrate.
func (p *Pane) GetBitrate() float64 {
	if est := p.latency.EstimatedBitrate(); est > 0 {
		return est
	}
	return p.GetFloatProperty("video-bitrate", 0)
}

func (p *Pane) GetFPS() float64 {
	return p.GetFloatProperty("estimated-vf-fps", 25)
}

// Restarts returns the number of times Restart has been triggered, for
// telemetry. The count is taken when Restart begins, whether or not the
// restart then succeeds.
func (p *Pane) Restarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

// LagSeconds reports the latency controller's most recent backlog
// estimate, for telemetry.
func (p *Pane) LagSeconds() float64 {
	return p.latency.LagSeconds()
}

// Screenshot issues screenshot-to-file at <TempDir>/<epoch_ms>.jpeg and
// polls the resulting path every 100ms for up to 3s, waiting for the file
// to reach at least 1024 bytes. It returns the path on success.
func (p *Pane) Screenshot() (string, error) {
	now := p.NowFunc
	if now == nil {
		now = time.Now
	}
	path := filepath.Join(p.TempDir, fmt.Sprintf("%d.jpeg", now().UnixMilli()))

	if err := p.withHandle(func(h decoder.Handle) error {
		return h.Command("screenshot-to-file", path)
	}); err != nil {
		return "", err
	}

	stat := p.StatFunc
	if stat == nil {
		stat = os.Stat
	}

	deadline := now().Add(screenshotTimeout)
	for {
		if info, err := stat(path); err == nil && info.Size() >= screenshotMinBytes {
			return path, nil
		}
		if now().After(deadline) {
			return "", fmt.Errorf("pane %d: screenshot %s did not reach %d bytes within %s", p.Index, path, screenshotMinBytes, screenshotTimeout)
		}
		time.Sleep(screenshotPollInterval)
	}
}
