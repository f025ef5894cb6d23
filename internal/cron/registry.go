package cron

import (
	"context"
	"fmt"
	"time"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduled struct {
	job   Job
	every time.Duration
	next  time.Time
}

// Registry holds the worker's jobs in run order, each with its own cadence.
// Job names are unique; they label the job metrics and log lines.
type Registry struct {
	entries []*scheduled
	byName  map[string]*scheduled
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*scheduled)}
}

// Add schedules job to run at most once per every. A zero cadence runs the job
// on every worker tick.
func (r *Registry) Add(job Job, every time.Duration) error {
	if job == nil {
		return fmt.Errorf("cron job required")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron job name required")
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	if every < 0 {
		return fmt.Errorf("cron job %q: negative cadence %s", name, every)
	}
	entry := &scheduled{job: job, every: every}
	r.entries = append(r.entries, entry)
	r.byName[name] = entry
	return nil
}

// Jobs lists every registered job in the order it was added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, entry := range r.entries {
		jobs = append(jobs, entry.job)
	}
	return jobs
}

// Due returns the jobs whose cadence has elapsed at now and books their next run.
func (r *Registry) Due(now time.Time) []Job {
	var due []Job
	for _, entry := range r.entries {
		if entry.every > 0 && now.Before(entry.next) {
			continue
		}
		due = append(due, entry.job)
		if entry.every > 0 {
			entry.next = now.Add(entry.every)
		}
	}
	return due
}
