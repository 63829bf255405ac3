package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"link-crawler/pkg/models"
)

// Job represents a background crawl job
type Job struct {
	ID           string           `json:"id"`
	Target       string           `json:"target"` // config target key, or the seed URL for ad-hoc crawls
	SeedURL      string           `json:"seed_url"`
	Depth        int              `json:"depth"`
	Status       models.JobStatus `json:"status"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  time.Time        `json:"completed_at,omitempty"`
	Downloaded   int              `json:"downloaded"`
	Failed       int              `json:"failed"`
	ErrorMessage string           `json:"error_message,omitempty"`

	// Internal fields
	ctx    context.Context
	cancel context.CancelFunc
	result *models.Result
}

// JobManager manages background crawl jobs
type JobManager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	bytarget map[string]string // target -> jobID for running jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:     make(map[string]*Job),
		bytarget: make(map[string]string),
	}
}

// CreateJob creates a new job for a target and returns a copy of it. If a job for the
// target is still pending or running, a copy of that job is returned instead.
func (m *JobManager) CreateJob(target, seedURL string, depth int) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingJobID, exists := m.bytarget[target]; exists {
		existingJob := m.jobs[existingJobID]
		if existingJob != nil && !existingJob.Status.IsTerminal() {
			cp := *existingJob
			return &cp
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        uuid.New().String(),
		Target:    target,
		SeedURL:   seedURL,
		Depth:     depth,
		Status:    models.JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	m.jobs[job.ID] = job
	m.bytarget[target] = job.ID
	cp := *job
	return &cp
}

// GetJob returns a copy of the job with the given ID, or nil.
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[jobID]; ok {
		cp := *job
		return &cp
	}
	return nil
}

// GetJobByTarget returns a copy of the active job for a target, or nil.
func (m *JobManager) GetJobByTarget(target string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.bytarget[target]; exists {
		if job, ok := m.jobs[jobID]; ok {
			cp := *job
			return &cp
		}
	}
	return nil
}

// IsRunning checks if a job is currently pending or running for a target
func (m *JobManager) IsRunning(target string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.bytarget[target]; exists {
		job := m.jobs[jobID]
		return job != nil && !job.Status.IsTerminal()
	}
	return false
}

// UpdateStatus updates the status of a job. A cancelled job keeps its status.
func (m *JobManager) UpdateStatus(jobID string, status models.JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || job.Status == models.JobStatusCancelled {
		return
	}
	job.Status = status
	if status.IsTerminal() {
		job.CompletedAt = time.Now()
		delete(m.bytarget, job.Target)
		job.cancel()
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// SetResult records a job's crawl result and its counts.
func (m *JobManager) SetResult(jobID string, res *models.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists && res != nil {
		job.result = res
		job.Downloaded = len(res.Downloaded)
		job.Failed = len(res.Errors)
	}
}

// Result returns the crawl result recorded for a job, if any.
func (m *JobManager) Result(jobID string) *models.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, exists := m.jobs[jobID]; exists {
		return job.result
	}
	return nil
}

// CancelJob cancels a pending or running job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists && !job.Status.IsTerminal() {
		job.cancel()
		job.Status = models.JobStatusCancelled
		job.CompletedAt = time.Now()
		delete(m.bytarget, job.Target)
		return true
	}
	return false
}

// CancelAll cancels all running jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if !job.Status.IsTerminal() {
			job.cancel()
			job.Status = models.JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.bytarget = make(map[string]string)
}

// ListJobs returns copies of all jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	return jobs
}

// GetContext returns the context for a job (for running the crawl)
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}
