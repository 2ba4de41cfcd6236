package audit

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is one session lifecycle record. It never carries token material.
type Event struct {
	// Seq is assigned by the Dispatcher in emit order.
	Seq       uint64            `json:"seq,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Epoch     uint64            `json:"epoch,omitempty"`
	CycleID   string            `json:"cycle_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Trigger   string            `json:"trigger,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives events from the dispatcher goroutine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink buffers events for a consumer. When the buffer is full the event is
// dropped and counted so an idle consumer cannot stall the dispatcher.
type ChannelSink struct {
	events  chan Event
	dropped atomic.Uint64
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(_ context.Context, event Event) {
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}

func (s *ChannelSink) Events() <-chan Event { return s.events }

// Dropped counts events discarded because the buffer was full.
func (s *ChannelSink) Dropped() uint64 { return s.dropped.Load() }

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	failed atomic.Uint64
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(event); err != nil {
		s.failed.Add(1)
	}
}

// Failed counts events the writer rejected.
func (s *JSONWriterSink) Failed() uint64 { return s.failed.Load() }

// LogrusSink writes each event as a structured log entry: info for successes, warn for
// failures.
type LogrusSink struct {
	log logrus.FieldLogger
}

func NewLogrusSink(log logrus.FieldLogger) *LogrusSink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogrusSink{log: log}
}

func (s *LogrusSink) Emit(_ context.Context, event Event) {
	fields := logrus.Fields{
		"event":   event.EventType,
		"success": event.Success,
	}
	if event.Seq != 0 {
		fields["seq"] = event.Seq
	}
	if event.Epoch != 0 {
		fields["epoch"] = strconv.FormatUint(event.Epoch, 10)
	}
	if event.CycleID != "" {
		fields["cycle"] = event.CycleID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Trigger != "" {
		fields["trigger"] = event.Trigger
	}
	if event.Error != "" {
		fields["error"] = event.Error
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	entry := s.log.WithFields(fields)
	if event.Success {
		entry.Info("audit")
	} else {
		entry.Warn("audit")
	}
}
