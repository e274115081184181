package rpc

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tilewall/tilewall/internal/decoder"
	"github.com/tilewall/tilewall/internal/pane"
)

type fakeWindow struct{ visible bool }

func (w *fakeWindow) Handle() (uint64, error) { return 1, nil }
func (w *fakeWindow) SetVisible(v bool)       { w.visible = v }

func missingFileStat(path string) (os.FileInfo, error) { return nil, os.ErrNotExist }

type fakeLookup struct {
	panes map[int]*pane.Pane
}

func (f *fakeLookup) Pane(index int) *pane.Pane { return f.panes[index] }

func newRunningPane(t *testing.T) *pane.Pane {
	t.Helper()
	p := pane.New(0, func() decoder.Handle { return decoder.NewFake() }, &fakeWindow{}, nil)
	p.StatFunc = missingFileStat
	if err := p.Start("rtsp://example/stream", pane.Options{RingCapacity: 64}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(p.Stop)
	return p
}

func TestDispatchPlayPause(t *testing.T) {
	p := newRunningPane(t)
	d := &Dispatcher{Panes: &fakeLookup{panes: map[int]*pane.Pane{0: p}}}

	if resp, payload := d.dispatch(Request{Op: OpPlay, Pane: 0}); !resp.OK || payload != nil {
		t.Fatalf("play: %+v", resp)
	}
	if resp, payload := d.dispatch(Request{Op: OpPause, Pane: 0}); !resp.OK || payload != nil {
		t.Fatalf("pause: %+v", resp)
	}
}

func TestDispatchUnknownPaneIndex(t *testing.T) {
	d := &Dispatcher{Panes: &fakeLookup{panes: map[int]*pane.Pane{}}}
	resp, payload := d.dispatch(Request{Op: OpPlay, Pane: 9})
	if resp.OK || payload != nil {
		t.Fatal("expected failure for unknown pane index")
	}
}

func TestDispatchUnknownOp(t *testing.T) {
	p := newRunningPane(t)
	d := &Dispatcher{Panes: &fakeLookup{panes: map[int]*pane.Pane{0: p}}}
	resp, payload := d.dispatch(Request{Op: "bogus", Pane: 0})
	if resp.OK || payload != nil {
		t.Fatal("expected failure for unknown op")
	}
}

func TestDispatchVolumeGetSet(t *testing.T) {
	p := newRunningPane(t)
	d := &Dispatcher{Panes: &fakeLookup{panes: map[int]*pane.Pane{0: p}}}

	if resp, _ := d.dispatch(Request{Op: OpVolumeSet, Pane: 0, Args: map[string]any{"volume": 50.0}}); !resp.OK {
		t.Fatalf("volume_set: %+v", resp)
	}
	resp, _ := d.dispatch(Request{Op: OpVolumeGet, Pane: 0})
	if !resp.OK {
		t.Fatalf("volume_get: %+v", resp)
	}
	if resp.Result["volume"] != 50.0 {
		t.Fatalf("volume = %v, want 50", resp.Result["volume"])
	}
}

func TestServeRelaysScreenshotBytes(t *testing.T) {
	p := newRunningPane(t)

	fixedNow := time.Unix(1700000000, 0)
	p.NowFunc = func() time.Time { return fixedNow }
	p.TempDir = t.TempDir()

	want := bytes.Repeat([]byte("jpegbytes"), 150) // over screenshotMinBytes
	shotPath := filepath.Join(p.TempDir, fmt.Sprintf("%d.jpeg", fixedNow.UnixMilli()))
	if err := os.WriteFile(shotPath, want, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p.StatFunc = os.Stat

	d := &Dispatcher{Panes: &fakeLookup{panes: map[int]*pane.Pane{0: p}}}

	serverConn, clientConn := net.Pipe()
	go func() {
		d.Serve(serverConn)
		serverConn.Close()
	}()

	client := NewClient(clientConn)
	var got bytes.Buffer
	resp, err := client.CallScreenshot(Request{Op: OpScreenshot, Pane: 0}, &got)
	if err != nil {
		t.Fatalf("CallScreenshot: %v", err)
	}
	if !resp.OK {
		t.Fatalf("response not OK: %+v", resp)
	}
	if got.String() != string(want) {
		t.Fatalf("relayed bytes = %q, want %q", got.String(), want)
	}
	clientConn.Close()
}

func TestServeRoundTripsOverPipe(t *testing.T) {
	p := newRunningPane(t)
	d := &Dispatcher{Panes: &fakeLookup{panes: map[int]*pane.Pane{0: p}}}

	serverConn, clientConn := net.Pipe()
	go func() {
		d.Serve(serverConn)
		serverConn.Close()
	}()

	client := NewClient(clientConn)
	resp, err := client.Call(Request{Op: OpSpeedGet, Pane: 0})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !resp.OK {
		t.Fatalf("response not OK: %+v", resp)
	}
	clientConn.Close()
}
