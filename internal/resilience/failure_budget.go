package resilience

import "sync"

// FailureBudget counts consecutive failures of one stage. A success resets
// the run; exceeding the limit reports exhaustion. A limit of 0 never
// exhausts.
type FailureBudget struct {
	limit int

	mu          sync.Mutex
	consecutive int
	total       int64
}

// NewFailureBudget creates a budget allowing limit consecutive failures.
func NewFailureBudget(limit int) *FailureBudget {
	if limit < 0 {
		limit = 0
	}
	return &FailureBudget{limit: limit}
}

// Success resets the consecutive failure run.
func (b *FailureBudget) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive = 0
}

// Failure records a failure and reports whether the budget is exhausted.
func (b *FailureBudget) Failure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive++
	b.total++
	return b.limit > 0 && b.consecutive >= b.limit
}

// Consecutive returns the current run of failures.
func (b *FailureBudget) Consecutive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutive
}

// Total returns all failures recorded.
func (b *FailureBudget) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}
