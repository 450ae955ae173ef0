package events

import (
	"bufio"
	"encoding/json"
	"io"
	"time"
)

// journalRecord is the on-disk shape of one event.
type journalRecord struct {
	Type       string    `json:"type"`
	Path       string    `json:"path,omitempty"`
	Time       time.Time `json:"time"`
	Iteration  *int      `json:"iteration,omitempty"`
	Engine     string    `json:"engine,omitempty"`
	EngineOK   *bool     `json:"engine_ok,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	SizeBefore int64     `json:"size_before,omitempty"`
	SizeAfter  int64     `json:"size_after,omitempty"`
	Iterations int       `json:"iterations,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	Total      int       `json:"total,omitempty"`
	Completed  int       `json:"completed,omitempty"`
	Aborted    int       `json:"aborted,omitempty"`
}

func record(ev Event) journalRecord {
	r := journalRecord{Type: ev.EventType(), Path: ev.TaskID()}
	switch e := ev.(type) {
	case TaskStartedEvent:
		r.Time = e.Timestamp
		r.SizeBefore = e.Size
	case StepVerifiedEvent:
		r.Time = e.Timestamp
		r.Iteration = &e.Iteration
		r.Engine = e.Engine
		r.EngineOK = &e.EngineOK
		r.Outcome = e.Outcome.String()
		r.SizeBefore = e.SizeBefore
		r.SizeAfter = e.SizeAfter
	case TaskCompletedEvent:
		r.Time = e.Timestamp
		r.SizeBefore = e.OriginalSize
		r.SizeAfter = e.FinalSize
		r.Iterations = e.Iterations
		r.DurationMS = e.Duration.Milliseconds()
	case TaskAbortedEvent:
		r.Time = e.Timestamp
		r.DurationMS = e.Duration.Milliseconds()
		if e.Err != nil {
			r.Error = e.Err.Error()
		}
	case RunProgressEvent:
		r.Time = e.Timestamp
		r.Total = e.Total
		r.Completed = e.Completed
		r.Aborted = e.Aborted
	}
	return r
}

// WriteJournal writes every event received on ch to w as one JSON object
// per line, until ch is closed. Write errors stop encoding but ch is
// still drained so the publisher side is unaffected.
func WriteJournal(w io.Writer, ch <-chan Event) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	var firstErr error
	for ev := range ch {
		if firstErr != nil {
			continue
		}
		firstErr = enc.Encode(record(ev))
	}
	if err := bw.Flush(); firstErr == nil {
		firstErr = err
	}
	return firstErr
}
