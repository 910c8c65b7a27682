// Package taskqueue implements the four-band priority queue with
// inter-task dependency gating and terminal-state archival.
package taskqueue

import (
	"context"
	"sync"
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/errs"
	"github.com/kestrelhq/agentmesh/coordinator/observability"
	"github.com/kestrelhq/agentmesh/coordinator/types"
)

// Task is one unit of dispatchable work.
type Task struct {
	ID           string
	Kind         types.TaskKind
	Priority     types.Priority
	Status       types.TaskStatus
	Payload      any
	Dependencies []string
	Assignee     *string
	Creator      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Deadline     *time.Time
	Metadata     map[string]string
}

// Queue holds four pending priority bands plus the in-progress, completed,
// and failed collections. A task lives in exactly one of these four
// collections at any instant.
type Queue struct {
	mu sync.RWMutex
	mm *observability.MetricsManager

	pending    [4][]Task // indexed by types.Priority
	inProgress map[string]Task
	completed  map[string]Task
	failed     map[string]Task
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{
		inProgress: make(map[string]Task),
		completed:  make(map[string]Task),
		failed:     make(map[string]Task),
	}
}

// WithMetrics attaches a MetricsManager so Enqueue/Dequeue/MarkCompleted/
// MarkFailed report through it. Optional: a Queue built with plain New and
// never given one simply skips the counters, which is how the package's own
// tests construct it.
func (q *Queue) WithMetrics(mm *observability.MetricsManager) *Queue {
	q.mm = mm
	return q
}

// Enqueue places task in the band matching its priority.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	task.Status = types.Pending()
	q.pending[task.Priority] = append(q.pending[task.Priority], task)
	q.mu.Unlock()

	if q.mm != nil {
		q.mm.TaskEnqueued(context.Background(), task.Priority.String())
	}
}

// Dequeue scans bands Urgent→High→Normal→Low, FIFO within a band, and
// returns the first eligible task: one whose every dependency id is
// present in the completed archive. It does not move the task into
// in-progress — call MarkInProgress for that. Returns false if nothing is
// eligible.
func (q *Queue) Dequeue() (Task, bool) {
	q.mu.Lock()
	var found Task
	ok := false
	for p := types.PriorityUrgent; p >= types.PriorityLow; p-- {
		band := q.pending[p]
		for i, t := range band {
			if q.eligibleLocked(t) {
				q.pending[p] = append(band[:i:i], band[i+1:]...)
				found, ok = t, true
				break
			}
		}
		if ok {
			break
		}
	}
	q.mu.Unlock()

	if ok && q.mm != nil {
		q.mm.TaskDequeued(context.Background(), found.Priority.String())
	}
	return found, ok
}

func (q *Queue) eligibleLocked(t Task) bool {
	for _, dep := range t.Dependencies {
		if _, ok := q.completed[dep]; !ok {
			return false
		}
	}
	return true
}

// MarkInProgress moves task into the in-progress map, setting its status.
func (q *Queue) MarkInProgress(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task.Status = types.InProgress()
	task.UpdatedAt = time.Now()
	q.inProgress[task.ID] = task
}

// MarkCompleted moves in-progress[id] into the completed archive, failing
// with TaskNotFound if absent.
func (q *Queue) MarkCompleted(id string) error {
	q.mu.Lock()
	t, ok := q.inProgress[id]
	if !ok {
		q.mu.Unlock()
		return errs.TaskNotFound(id)
	}
	delete(q.inProgress, id)
	t.Status = types.Completed()
	t.UpdatedAt = time.Now()
	q.completed[id] = t
	q.mu.Unlock()

	if q.mm != nil {
		q.mm.TaskCompleted(context.Background())
	}
	return nil
}

// MarkFailed moves in-progress[id] into the failed archive with reason,
// failing with TaskNotFound if absent. A task that fails here leaves any
// dependent task permanently ineligible: the failed archive is distinct
// from the completed archive that Dequeue consults.
func (q *Queue) MarkFailed(id, reason string) error {
	q.mu.Lock()
	t, ok := q.inProgress[id]
	if !ok {
		q.mu.Unlock()
		return errs.TaskNotFound(id)
	}
	delete(q.inProgress, id)
	t.Status = types.Failed(reason)
	t.UpdatedAt = time.Now()
	q.failed[id] = t
	q.mu.Unlock()

	if q.mm != nil {
		q.mm.TaskFailed(context.Background())
	}
	return nil
}

// CleanupExpired drops pending tasks whose deadline has passed and returns
// the count dropped. In-progress tasks are never force-cancelled.
func (q *Queue) CleanupExpired() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	dropped := 0
	for p := range q.pending {
		kept := q.pending[p][:0]
		for _, t := range q.pending[p] {
			if t.Deadline != nil && now.After(*t.Deadline) {
				dropped++
				continue
			}
			kept = append(kept, t)
		}
		q.pending[p] = kept
	}
	return dropped
}

// Status returns the current TaskStatus of id by scanning every
// collection it could be in, and false if id is not present anywhere
// (never enqueued, or already dropped by CleanupExpired). Used by
// callers — e.g. the Master worker — that enqueued tasks by id and need
// to observe their terminal outcome without holding their own copy.
func (q *Queue) Status(id string) (types.TaskStatus, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if t, ok := q.completed[id]; ok {
		return t.Status, true
	}
	if t, ok := q.failed[id]; ok {
		return t.Status, true
	}
	if t, ok := q.inProgress[id]; ok {
		return t.Status, true
	}
	for _, band := range q.pending {
		for _, t := range band {
			if t.ID == id {
				return t.Status, true
			}
		}
	}
	return types.TaskStatus{}, false
}

// Size returns the sum of pending-band lengths across all four priorities.
func (q *Queue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	total := 0
	for _, band := range q.pending {
		total += len(band)
	}
	return total
}

// Stats summarizes the queue's current collection sizes.
type Stats struct {
	Pending    int
	InProgress int
	Completed  int
	Failed     int
}

func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	pending := 0
	for _, band := range q.pending {
		pending += len(band)
	}
	return Stats{
		Pending:    pending,
		InProgress: len(q.inProgress),
		Completed:  len(q.completed),
		Failed:     len(q.failed),
	}
}
