package supervisor

import (
	"os"
	"testing"
	"time"

	"github.com/tilewall/tilewall/internal/decoder"
	"github.com/tilewall/tilewall/internal/layout"
	"github.com/tilewall/tilewall/internal/pane"
)

func factoryFor(index int) pane.HandleFactory {
	return func() decoder.Handle { return decoder.NewFake() }
}

func TestStartConstructsPanesInIndexOrder(t *testing.T) {
	cfg := Config{VideoURL: "rtsp://example/stream", Ways: 4, Hwdec: "auto", RingCapacity: 64}
	sup, err := Start(cfg, factoryFor, layout.NewHeadless(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Stop()

	if len(sup.Panes()) != 4 {
		t.Fatalf("Panes() = %d, want 4", len(sup.Panes()))
	}
	for i, p := range sup.Panes() {
		if p.Index != i {
			t.Fatalf("pane at position %d has Index %d", i, p.Index)
		}
		if p.State() != pane.StateRunning {
			t.Fatalf("pane %d state = %v, want running", i, p.State())
		}
	}
}

func TestStartRejectsInvalidWays(t *testing.T) {
	cfg := Config{VideoURL: "rtsp://example/stream", Ways: 5}
	if _, err := Start(cfg, factoryFor, layout.NewHeadless(), nil); err == nil {
		t.Fatal("Start with ways=5 should fail")
	}
}

func TestGPUWaysSplitsHwdecAssignment(t *testing.T) {
	var handles []*decoder.Fake
	factory := func(index int) pane.HandleFactory {
		return func() decoder.Handle {
			h := decoder.NewFake()
			handles = append(handles, h)
			return h
		}
	}

	cfg := Config{VideoURL: "rtsp://example/stream", Ways: 4, GPUWays: 2, Hwdec: "vaapi", RingCapacity: 64}
	sup, err := Start(cfg, factory, layout.NewHeadless(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Stop()

	for i, h := range handles {
		v, set := h.Options["hwdec"]
		if i < 2 {
			if !set || v.AsText() != "vaapi" {
				t.Errorf("pane %d should have hwdec=vaapi, got %v (set=%v)", i, v, set)
			}
		} else {
			if set {
				t.Errorf("pane %d should have no hwdec option set, got %v", i, v)
			}
		}
	}
}

func TestStartTeardownOnFailure(t *testing.T) {
	count := 0
	factory := func(index int) pane.HandleFactory {
		return func() decoder.Handle {
			h := decoder.NewFake()
			count++
			if count == 3 {
				h.InitializeErr = os.ErrInvalid
			}
			return h
		}
	}

	cfg := Config{VideoURL: "rtsp://example/stream", Ways: 4, RingCapacity: 64}
	sup, err := Start(cfg, factory, layout.NewHeadless(), nil)
	if err == nil {
		t.Fatal("Start should fail when a pane's Initialize fails")
	}
	if sup != nil {
		t.Fatal("Start should return a nil Supervisor on failure")
	}
}

func TestStopJoinsFanoutReaderBeforeDestroyingPanes(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "source")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.Write(make([]byte, 1<<20)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f.Close()

	cfg := Config{VideoURL: f.Name(), Ways: 1, RingCapacity: 4096}
	sup, err := Start(cfg, factoryFor, layout.NewHeadless(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return promptly")
	}
	select {
	case <-sup.done:
	default:
		t.Fatal("Stop returned before the fan-out reader goroutine finished")
	}
}
