package registry

import (
	"sqlmapper/internal/errs"
)

// AddPendingShape parks an unresolved result-shape work item.
func (r *Registry) AddPendingShape(d *Deferred) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingShapes = append(r.pendingShapes, d)
}

// AddPendingCacheRef parks an unresolved cache-ref work item.
func (r *Registry) AddPendingCacheRef(d *Deferred) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingCacheRefs = append(r.pendingCacheRefs, d)
}

// AddPendingStatement parks an unresolved statement work item.
func (r *Registry) AddPendingStatement(d *Deferred) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingStatements = append(r.pendingStatements, d)
}

// PendingCount returns how many work items remain parked across all queues.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingShapes) + len(r.pendingCacheRefs) + len(r.pendingStatements)
}

// Residual returns the work items still parked, result shapes first, then
// cache refs, then statements.
func (r *Registry) Residual() []*Deferred {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Deferred, 0, len(r.pendingShapes)+len(r.pendingCacheRefs)+len(r.pendingStatements))
	out = append(out, r.pendingShapes...)
	out = append(out, r.pendingCacheRefs...)
	out = append(out, r.pendingStatements...)
	return out
}

// RetryPending runs one pass over all three queues, attempting every parked
// item once. Items that succeed are removed; items that still signal an
// incomplete reference stay queued with their error discarded. A fatal error
// aborts the pass. Only one pass runs at a time.
func (r *Registry) RetryPending() (progress bool, err error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	queues := []*[]*Deferred{&r.pendingShapes, &r.pendingCacheRefs, &r.pendingStatements}
	for _, q := range queues {
		r.mu.Lock()
		items := *q
		*q = nil
		r.mu.Unlock()

		var kept []*Deferred
		for i, d := range items {
			retryErr := d.Retry()
			switch {
			case retryErr == nil:
				progress = true
			case errs.IsIncomplete(retryErr):
				kept = append(kept, d)
			default:
				// Fatal: keep the untried remainder queued and abort.
				kept = append(kept, items[i+1:]...)
				r.requeue(q, kept)
				return progress, retryErr
			}
		}
		r.requeue(q, kept)
	}
	return progress, nil
}

func (r *Registry) requeue(q *[]*Deferred, kept []*Deferred) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*q = append(kept, *q...)
}
