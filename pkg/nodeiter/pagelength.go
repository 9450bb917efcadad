package nodeiter

import "sync"

const (
	DefaultPageLength    = 50
	DefaultMinPageLength = 12
)

// PageLength is the adaptive number of edges requested per page. It is owned by
// one query engine and shared by the iterators it creates.
type PageLength struct {
	mu      sync.Mutex
	current int
	floor   int
}

// NewPageLength creates a page length starting at initial that never shrinks
// below floor.
func NewPageLength(initial, floor int) *PageLength {
	if floor <= 0 {
		floor = DefaultMinPageLength
	}
	if initial <= 0 {
		initial = DefaultPageLength
	}
	if initial < floor {
		initial = floor
	}
	return &PageLength{current: initial, floor: floor}
}

// Current returns the page length to request
func (p *PageLength) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Shrink halves the page length. It reports false, leaving the length
// unchanged, when halving would go below the floor.
func (p *PageLength) Shrink() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.current / 2
	if next < p.floor {
		return p.current, false
	}
	p.current = next
	return next, true
}
