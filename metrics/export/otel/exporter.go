package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authsession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type counter struct {
	def internaldefs.CounterDef
	obs metric.Int64ObservableCounter
}

type histogram struct {
	def     internaldefs.HistogramDef
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	les     []attribute.Set
}

// Exporter observes engine metrics from a single registered callback.
type Exporter struct {
	source       internaldefs.Source
	now          func() time.Time
	registration metric.Registration

	counters     []counter
	histograms   []histogram
	auditDropped metric.Int64ObservableCounter
	live         metric.Int64ObservableGauge
	nextRenewal  metric.Float64ObservableGauge
}

// New registers one instrument per counter, a bucket gauge with an le attribute per
// histogram, and the session gauges on meter. *authsession.Engine is a Source.
func New(meter metric.Meter, source internaldefs.Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source, now: time.Now}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		obs, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counter{def: def, obs: obs})
		observables = append(observables, obs)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := histogram{def: def}
		var err error
		if h.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription(def.Help+" Cumulative count per le bound.")); err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		if h.count, err = meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count.")); err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		for _, le := range internaldefs.HistogramBounds {
			h.les = append(h.les, attribute.NewSet(attribute.String("le", le)))
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, h.buckets, h.count)
	}

	var err error
	if e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp)); err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	if e.live, err = meter.Int64ObservableGauge(internaldefs.SessionLiveName, metric.WithDescription(internaldefs.SessionLiveHelp)); err != nil {
		return nil, fmt.Errorf("gauge %s: %w", internaldefs.SessionLiveName, err)
	}
	if e.nextRenewal, err = meter.Float64ObservableGauge(internaldefs.NextRenewalName, metric.WithDescription(internaldefs.NextRenewalHelp), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("gauge %s: %w", internaldefs.NextRenewalName, err)
	}
	observables = append(observables, e.auditDropped, e.live, e.nextRenewal)

	if e.registration, err = meter.RegisterCallback(e.observe, observables...); err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	if len(snapshot.Counters) > 0 {
		for _, c := range e.counters {
			o.ObserveInt64(c.obs, int64(snapshot.Counters[c.def.ID]))
		}
	}
	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, set := range h.les {
			o.ObserveInt64(h.buckets, int64(cumulative[i]), metric.WithAttributeSet(set))
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	session := internaldefs.ReadSession(e.source, e.now())
	var live int64
	if session.Live {
		live = 1
	}
	o.ObserveInt64(e.live, live)
	if session.Armed {
		o.ObserveFloat64(e.nextRenewal, session.RenewalIn.Seconds())
	}
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
