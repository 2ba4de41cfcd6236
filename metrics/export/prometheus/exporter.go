package prometheus

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authsession/metrics/export/internaldefs"
)

// ContentType is the text exposition format version written by Handler.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Exporter renders engine counters, the refresh latency histogram and the session
// gauges in Prometheus text format.
type Exporter struct {
	source internaldefs.Source
	now    func() time.Time
}

// New reads from source on every Render. *authsession.Engine is a Source.
func New(source internaldefs.Source) *Exporter {
	return &Exporter{source: source, now: time.Now}
}

// WithClock replaces the clock used for authsession_next_renewal_seconds.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// Handler serves Render.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render samples the source once. Counters and the histogram are omitted while engine
// metrics are disabled; session gauges are always written.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}

	snapshot := e.source.MetricsSnapshot()
	session := internaldefs.ReadSession(e.source, e.now())

	var w textWriter
	w.Grow(4096)

	if len(snapshot.Counters) > 0 {
		for _, def := range internaldefs.CounterDefs {
			w.header(def.Name, def.Help, "counter")
			w.sample(def.Name, "", strconv.FormatUint(snapshot.Counters[def.ID], 10))
		}
	}
	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		w.histogram(def, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw)))
	}

	w.header(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	w.sample(internaldefs.AuditDroppedName, "", strconv.FormatUint(e.source.AuditDropped(), 10))

	w.header(internaldefs.SessionLiveName, internaldefs.SessionLiveHelp, "gauge")
	live := "0"
	if session.Live {
		live = "1"
	}
	w.sample(internaldefs.SessionLiveName, "", live)

	if session.Armed {
		w.header(internaldefs.NextRenewalName, internaldefs.NextRenewalHelp, "gauge")
		w.sample(internaldefs.NextRenewalName, "", strconv.FormatFloat(session.RenewalIn.Seconds(), 'f', -1, 64))
	}

	return w.String()
}

type textWriter struct {
	strings.Builder
}

func (w *textWriter) header(name, help, kind string) {
	w.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.WriteString("# TYPE " + name + " " + kind + "\n")
}

func (w *textWriter) sample(name, labels, value string) {
	w.WriteString(name)
	if labels != "" {
		w.WriteString("{" + labels + "}")
	}
	w.WriteString(" " + value + "\n")
}

func (w *textWriter) histogram(def internaldefs.HistogramDef, cumulative [8]uint64) {
	w.header(def.Name, def.Help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(def.Name+"_bucket", `le="`+le+`"`, strconv.FormatUint(cumulative[i], 10))
	}
	w.sample(def.Name+"_count", "", strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	// snapshots carry no sum
	w.sample(def.Name+"_sum", "", "0")
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
