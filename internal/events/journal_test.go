package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/backmassage/pngcrunch/internal/verify"
)

func TestWriteJournal(t *testing.T) {
	bus := NewBus()
	ch := bus.SubscribeAll(16)

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- WriteJournal(&buf, ch) }()

	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	bus.Publish(TopicStep, StepVerifiedEvent{Path: "a.png", Iteration: 0, Engine: "advpng", EngineOK: true, Outcome: verify.Corrupted, SizeBefore: 100, SizeAfter: 90, Timestamp: ts})
	bus.Publish(TopicTask, TaskAbortedEvent{Path: "b.png", Err: errors.New("bad pixels"), Duration: 1500 * time.Millisecond, Timestamp: ts})
	bus.Close()

	if err := <-done; err != nil {
		t.Fatalf("WriteJournal: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}

	var step map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &step); err != nil {
		t.Fatal(err)
	}
	if step["type"] != EventTypeStepVerified || step["outcome"] != "corrupted" || step["iteration"] != float64(0) {
		t.Errorf("step record = %v", step)
	}

	var aborted map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &aborted); err != nil {
		t.Fatal(err)
	}
	if aborted["error"] != "bad pixels" || aborted["duration_ms"] != float64(1500) {
		t.Errorf("aborted record = %v", aborted)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteJournal_DrainsAfterError(t *testing.T) {
	ch := make(chan Event, 3000)
	for i := 0; i < 3000; i++ {
		ch <- RunProgressEvent{Total: 3000, Completed: i}
	}
	close(ch)
	if err := WriteJournal(failWriter{}, ch); err == nil {
		t.Fatal("expected write error")
	}
	if len(ch) != 0 {
		t.Errorf("%d events left undrained", len(ch))
	}
}
