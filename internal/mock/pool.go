package mock

import "sync"

// Pool hands out plain slices and counts how often each one comes back.
type Pool struct {
	mu        sync.Mutex
	allocated int
	recycled  map[*byte]int
}

func NewPool() *Pool {
	return &Pool{recycled: make(map[*byte]int)}
}

func (p *Pool) Allocate(minSize int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocated++
	return make([]byte, minSize+1)
}

func (p *Pool) Recycle(storage []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recycled[&storage[0]]++
}

// Allocated returns the number of Allocate calls.
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Recycled returns the number of Recycle calls.
func (p *Pool) Recycled() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.recycled {
		n += c
	}
	return n
}

// DoubleRecycled reports whether any storage came back more than once.
func (p *Pool) DoubleRecycled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.recycled {
		if c > 1 {
			return true
		}
	}
	return false
}
