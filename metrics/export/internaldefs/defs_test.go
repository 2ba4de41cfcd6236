package internaldefs

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authsession"
)

func TestEveryCounterHasADefinition(t *testing.T) {
	seen := make(map[authsession.MetricID]string, len(CounterDefs))
	for _, def := range CounterDefs {
		if prev, dup := seen[def.ID]; dup {
			t.Fatalf("metric %d defined twice: %s and %s", def.ID, prev, def.Name)
		}
		if !strings.HasPrefix(def.Name, "authsession_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %q", def.Name)
		}
		seen[def.ID] = def.Name
	}
	// all IDs except the latency histogram
	if len(seen) != int(authsession.MetricRefreshLatency) {
		t.Fatalf("expected %d counters, got %d", authsession.MetricRefreshLatency, len(seen))
	}
}

func TestBoundsMatchBucketCount(t *testing.T) {
	if len(HistogramBounds) != 8 {
		t.Fatalf("expected 8 bounds, got %d", len(HistogramBounds))
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

type source struct {
	live bool
	next time.Time
}

func (s source) MetricsSnapshot() authsession.MetricsSnapshot { return authsession.MetricsSnapshot{} }
func (s source) AuditDropped() uint64                         { return 0 }
func (s source) Live() bool                                   { return s.live }
func (s source) NextRenewal() (time.Time, bool)               { return s.next, !s.next.IsZero() }

func TestReadSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	st := ReadSession(source{live: true, next: now.Add(90 * time.Second)}, now)
	if !st.Live || !st.Armed || st.RenewalIn != 90*time.Second {
		t.Fatalf("unexpected state %+v", st)
	}

	st = ReadSession(source{live: true, next: now.Add(-time.Second)}, now)
	if !st.Armed || st.RenewalIn != 0 {
		t.Fatalf("overdue renewal must read as zero, got %+v", st)
	}

	if st := ReadSession(source{}, now); st.Live || st.Armed {
		t.Fatalf("expected idle state, got %+v", st)
	}
}
