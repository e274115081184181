package fanout

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

type recordingWriter struct {
	mu       sync.Mutex
	received [][]byte
	stopped  bool
	refuseOn int // refuse the call at this 1-indexed count, 0 = never
	calls    int
}

func (w *recordingWriter) Write(buf []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	cp := append([]byte(nil), buf...)
	w.received = append(w.received, cp)
	if w.refuseOn != 0 && w.calls >= w.refuseOn {
		return false
	}
	return true
}

func (w *recordingWriter) Stopping() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}

func TestBroadcastsInInsertionOrderToAllWriters(t *testing.T) {
	src := bytes.NewReader([]byte("hello world"))
	w1, w2 := &recordingWriter{}, &recordingWriter{}
	r := New(src, []Writer{w1, w2})
	r.now = time.Now

	r.Run()

	if len(w1.received) != 1 || string(w1.received[0]) != "hello world" {
		t.Fatalf("writer1 received %v", w1.received)
	}
	if len(w2.received) != 1 || string(w2.received[0]) != "hello world" {
		t.Fatalf("writer2 received %v", w2.received)
	}
	if !w1.stopped || !w2.stopped {
		t.Fatal("both writers should be signaled Stopping on exit")
	}
}

func TestAbortsOnFirstRefusal(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte("x"), 100*1024))
	refusing := &recordingWriter{refuseOn: 1}
	never := &recordingWriter{}
	r := New(src, []Writer{refusing, never})

	r.Run()

	if refusing.calls != 1 {
		t.Fatalf("refusing writer calls = %d, want 1", refusing.calls)
	}
	// never should see at most the same number of broadcast rounds as
	// refusing (insertion order: refusing is consulted first each round).
	if never.calls > refusing.calls {
		t.Fatalf("writer after the refusing one saw more calls (%d) than it (%d)", never.calls, refusing.calls)
	}
}

func TestExitsOnEmptyRead(t *testing.T) {
	src := bytes.NewReader(nil)
	w := &recordingWriter{}
	r := New(src, []Writer{w})

	done := make(chan struct{})
	go func() {
		r.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit on an empty source")
	}
	if !w.stopped {
		t.Fatal("writer should be signaled Stopping when the source is empty")
	}
}
