// Package supervisor owns the set of panes that make up one wall: it
// constructs them in index order, tears down on any start failure, splits
// hardware-decode eligibility across the gpu_ways/ways policy, and joins
// the fan-out reader before destroying panes on shutdown.
package supervisor

import (
	"fmt"
	"os"

	"github.com/tilewall/tilewall/internal/decoder"
	"github.com/tilewall/tilewall/internal/fanout"
	"github.com/tilewall/tilewall/internal/layout"
	"github.com/tilewall/tilewall/internal/pane"
)

// Config is the process-wide start configuration shared by every pane,
// before the per-pane hwdec split is applied.
type Config struct {
	VideoURL     string
	Ways         int
	GPUWays      int
	Profile      string
	VO           string
	Hwdec        string
	GPUAPI       string
	GPUContext   string
	LogLevel     decoder.LogLevel
	RingCapacity uint32
}

// Logger receives supervisor-level structured records.
type Logger interface {
	Printf(format string, args ...any)
}

// paneWindow adapts a layout.WindowHandleProvider plus a fixed index into
// the narrower pane.Window interface.
type paneWindow struct {
	provider layout.WindowHandleProvider
	index    int
}

func (w paneWindow) Handle() (uint64, error) { return w.provider.WindowHandle(w.index) }
func (w paneWindow) SetVisible(v bool)       { w.provider.SetVisible(w.index, v) }

// Supervisor owns construction, ordering, and teardown for every pane in
// one wall, plus the fan-out reader when the source is a local file.
type Supervisor struct {
	Logger Logger

	panes  []*pane.Pane
	reader *fanout.Reader
	done   chan struct{}
}

// Start validates cfg, constructs cfg.Ways panes in index order using
// window handles from provider, and applies the GPU/CPU split. On any
// pane start failure it tears down every already-constructed pane, in
// reverse order, and returns the failure.
func Start(cfg Config, factory func(index int) pane.HandleFactory, provider layout.WindowHandleProvider, logger Logger) (*Supervisor, error) {
	if !layout.ValidWays(cfg.Ways) {
		return nil, fmt.Errorf("supervisor: invalid ways %d", cfg.Ways)
	}
	gpuWays := cfg.GPUWays
	if gpuWays == 0 {
		gpuWays = cfg.Ways
	}
	if gpuWays > cfg.Ways {
		return nil, fmt.Errorf("supervisor: gpu_ways %d exceeds ways %d", gpuWays, cfg.Ways)
	}

	s := &Supervisor{Logger: logger}

	for i := 0; i < cfg.Ways; i++ {
		hwdec := cfg.Hwdec
		if i >= gpuWays {
			hwdec = ""
		}

		p := pane.New(i, factory(i), paneWindow{provider, i}, logger)
		opts := pane.Options{
			Profile:      cfg.Profile,
			VO:           cfg.VO,
			Hwdec:        hwdec,
			GPUAPI:       cfg.GPUAPI,
			GPUContext:   cfg.GPUContext,
			LogLevel:     cfg.LogLevel,
			RingCapacity: cfg.RingCapacity,
		}

		if err := p.Start(cfg.VideoURL, opts); err != nil {
			s.teardown()
			return nil, fmt.Errorf("supervisor: pane %d start failed: %w", i, err)
		}
		s.panes = append(s.panes, p)
	}

	if isExistingFile(cfg.VideoURL) {
		f, err := os.Open(cfg.VideoURL)
		if err != nil {
			s.teardown()
			return nil, fmt.Errorf("supervisor: reopen source for fan-out: %w", err)
		}
		writers := make([]fanout.Writer, len(s.panes))
		for i, p := range s.panes {
			writers[i] = p
		}
		s.reader = &fanout.Reader{Source: f, Writers: writers, Logger: logger}
		s.done = make(chan struct{})
		go func() {
			defer f.Close()
			defer close(s.done)
			s.reader.Run()
		}()
	}

	return s, nil
}

func isExistingFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// teardown stops every constructed pane in reverse construction order,
// used both for mid-construction failure and for Stop.
func (s *Supervisor) teardown() {
	for i := len(s.panes) - 1; i >= 0; i-- {
		s.panes[i].Stop()
	}
	s.panes = nil
}

// Pane returns the pane at index, or nil if out of range.
func (s *Supervisor) Pane(index int) *pane.Pane {
	if index < 0 || index >= len(s.panes) {
		return nil
	}
	return s.panes[index]
}

// Panes returns every constructed pane, in index order.
func (s *Supervisor) Panes() []*pane.Pane {
	return s.panes
}

// Stop joins the fan-out reader (if any), then stops and destroys every
// pane. Reader-before-panes ordering matters: the reader's broadcast
// loop must return before its own panes are torn down underneath it.
func (s *Supervisor) Stop() {
	if s.done != nil {
		for _, p := range s.panes {
			p.Stopping()
		}
		<-s.done
	}
	s.teardown()
}
