// Package metric holds the Prometheus collectors reported by pools, queues and links.
//
// Collectors are created unregistered; call Register with the registry the hosting
// service exposes. A nil *PoolMetrics, *QueueMetrics or *LinkMetrics is valid and
// records nothing.
package metric

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "goflow"

// PoolMetrics tracks buffer storage allocation.
type PoolMetrics struct {
	Allocations prometheus.Counter
	Recycles    prometheus.Counter
	InUse       prometheus.Gauge
	Bytes       prometheus.Gauge
}

// NewPoolMetrics creates pool collectors labelled with the pool name.
func NewPoolMetrics(pool string) *PoolMetrics {
	labels := prometheus.Labels{"pool": pool}
	return &PoolMetrics{
		Allocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pool",
			Name:        "allocations_total",
			Help:        "Total number of storage allocations",
			ConstLabels: labels,
		}),
		Recycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pool",
			Name:        "recycles_total",
			Help:        "Total number of storage recycles",
			ConstLabels: labels,
		}),
		InUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pool",
			Name:        "in_use",
			Help:        "Storage allocations not yet recycled",
			ConstLabels: labels,
		}),
		Bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pool",
			Name:        "in_use_bytes",
			Help:        "Bytes of storage not yet recycled",
			ConstLabels: labels,
		}),
	}
}

// Allocated records one allocation of size bytes.
func (m *PoolMetrics) Allocated(size int) {
	if m == nil {
		return
	}
	m.Allocations.Inc()
	m.InUse.Inc()
	m.Bytes.Add(float64(size))
}

// Recycled records one recycle of size bytes.
func (m *PoolMetrics) Recycled(size int) {
	if m == nil {
		return
	}
	m.Recycles.Inc()
	m.InUse.Dec()
	m.Bytes.Sub(float64(size))
}

// Register adds the collectors to reg.
func (m *PoolMetrics) Register(reg prometheus.Registerer) error {
	return register(reg, m.Allocations, m.Recycles, m.InUse, m.Bytes)
}

// QueueMetrics tracks thread-boundary queues.
type QueueMetrics struct {
	Depth   *prometheus.GaugeVec
	Dropped *prometheus.CounterVec
}

// NewQueueMetrics creates queue collectors labelled by queue id.
func NewQueueMetrics() *QueueMetrics {
	return &QueueMetrics{
		Depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Buffers waiting in the queue",
		}, []string{"queue"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "dropped_total",
			Help:      "Buffers released without delivery at queue teardown",
		}, []string{"queue"}),
	}
}

// RecordDepth sets the current depth of queue.
func (m *QueueMetrics) RecordDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.Depth.WithLabelValues(queue).Set(float64(depth))
}

// RecordDropped adds n dropped buffers for queue.
func (m *QueueMetrics) RecordDropped(queue string, n int) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(queue).Add(float64(n))
}

// Register adds the collectors to reg.
func (m *QueueMetrics) Register(reg prometheus.Registerer) error {
	return register(reg, m.Depth, m.Dropped)
}

// LinkMetrics tracks deliveries over links.
type LinkMetrics struct {
	Buffers *prometheus.CounterVec
	Bytes   *prometheus.CounterVec
}

// NewLinkMetrics creates link collectors labelled by link id.
func NewLinkMetrics() *LinkMetrics {
	return &LinkMetrics{
		Buffers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "buffers_total",
			Help:      "Buffers delivered to the sink element",
		}, []string{"link"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "bytes_total",
			Help:      "Bytes delivered to the sink element",
		}, []string{"link"}),
	}
}

// RecordDelivery counts one buffer of size bytes handed over link.
func (m *LinkMetrics) RecordDelivery(link string, size int) {
	if m == nil {
		return
	}
	m.Buffers.WithLabelValues(link).Inc()
	m.Bytes.WithLabelValues(link).Add(float64(size))
}

// Register adds the collectors to reg.
func (m *LinkMetrics) Register(reg prometheus.Registerer) error {
	return register(reg, m.Buffers, m.Bytes)
}

func register(reg prometheus.Registerer, collectors ...prometheus.Collector) error {
	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var alreadyRegErr prometheus.AlreadyRegisteredError
			if errors.As(err, &alreadyRegErr) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
