// Package pool hands out reusable byte storage for buffers.
//
// Storage is grouped in two size classes, each backed by a sync.Pool. Storage that
// grew beyond the retention limit is left to the garbage collector instead of being
// kept for reuse.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/ugparu/goflow/metric"
)

const (
	defaultSmallSize   = 4 * 1024
	defaultBigSize     = 64 * 1024
	defaultMaxRetained = 1 * 1024 * 1024
)

// Pool is the allocate/recycle service buffers are built on. Implementations must be
// safe for concurrent use.
type Pool interface {
	// Allocate returns storage of at least minSize bytes.
	Allocate(minSize int) []byte
	// Recycle returns storage obtained from Allocate. The caller must not touch it afterwards.
	Recycle(storage []byte)
}

// Stats is a snapshot of pool accounting.
type Stats struct {
	Allocated int64
	Recycled  int64
	InUse     int64
}

// SizedPool is the default Pool implementation.
type SizedPool struct {
	small, big  sync.Pool
	smallSize   int
	bigSize     int
	maxRetained int
	allocated   atomic.Int64
	recycled    atomic.Int64
	metrics     *metric.PoolMetrics
}

// Option configures a SizedPool.
type Option func(*SizedPool)

// WithSizeClasses sets the default capacity of the small and big classes and the largest
// capacity kept for reuse.
func WithSizeClasses(small, big, maxRetained int) Option {
	return func(p *SizedPool) {
		if small > 0 {
			p.smallSize = small
		}
		if big > small {
			p.bigSize = big
		}
		if maxRetained >= p.bigSize {
			p.maxRetained = maxRetained
		}
	}
}

// WithMetrics reports allocations and recycles to m.
func WithMetrics(m *metric.PoolMetrics) Option {
	return func(p *SizedPool) {
		p.metrics = m
	}
}

// New creates a SizedPool.
func New(opts ...Option) *SizedPool {
	p := &SizedPool{
		smallSize:   defaultSmallSize,
		bigSize:     defaultBigSize,
		maxRetained: defaultMaxRetained,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.small.New = func() any {
		b := make([]byte, p.smallSize)
		return &b
	}
	p.big.New = func() any {
		b := make([]byte, p.bigSize)
		return &b
	}
	return p
}

// Allocate returns storage whose length equals its capacity and is at least minSize.
func (p *SizedPool) Allocate(minSize int) []byte {
	if minSize < 0 {
		minSize = 0
	}

	var b *[]byte
	if minSize >= p.bigSize {
		b, _ = p.big.Get().(*[]byte)
	} else {
		b, _ = p.small.Get().(*[]byte)
	}

	storage := *b
	if cap(storage) < minSize {
		storage = make([]byte, minSize)
	}
	storage = storage[:cap(storage)]

	p.allocated.Add(1)
	p.metrics.Allocated(len(storage))
	return storage
}

// Recycle puts storage back into its size class.
func (p *SizedPool) Recycle(storage []byte) {
	if storage == nil {
		return
	}
	p.recycled.Add(1)
	p.metrics.Recycled(cap(storage))

	// Oversized storage is not worth pinning in memory.
	if cap(storage) > p.maxRetained {
		return
	}

	storage = storage[:cap(storage)]
	if cap(storage) >= p.bigSize {
		p.big.Put(&storage)
	} else {
		p.small.Put(&storage)
	}
}

// Stats returns allocation counters.
func (p *SizedPool) Stats() Stats {
	allocated, recycled := p.allocated.Load(), p.recycled.Load()
	return Stats{
		Allocated: allocated,
		Recycled:  recycled,
		InUse:     allocated - recycled,
	}
}
