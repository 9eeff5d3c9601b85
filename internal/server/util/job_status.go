package util

import (
	"sync"
	"time"
)

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobStatus is what the API reports about a crawl started by this server.
type JobStatus struct {
	GraphID    string     `json:"graph_id"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobTracker remembers the crawls this process queued or ran.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]JobStatus
}

func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]JobStatus)}
}

// Start records a job with the given initial status. It returns false while
// another job for the same graph is still active.
func (t *JobTracker) Start(graphID, status string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.jobs[graphID]; ok && isActive(cur.Status) {
		return false
	}
	t.jobs[graphID] = JobStatus{GraphID: graphID, Status: status, StartedAt: time.Now().UTC()}
	return true
}

func (t *JobTracker) Update(graphID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.jobs[graphID]; ok {
		cur.Status = status
		t.jobs[graphID] = cur
	}
}

// Finish marks the job completed, or failed when err is not nil.
func (t *JobTracker) Finish(graphID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.jobs[graphID]
	if !ok {
		cur = JobStatus{GraphID: graphID}
	}
	now := time.Now().UTC()
	cur.FinishedAt = &now
	cur.Status = JobCompleted
	cur.Error = ""
	if err != nil {
		cur.Status = JobFailed
		cur.Error = err.Error()
	}
	t.jobs[graphID] = cur
}

func (t *JobTracker) Status(graphID string) (JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.jobs[graphID]
	return s, ok
}

func isActive(status string) bool {
	return status == JobQueued || status == JobRunning
}
