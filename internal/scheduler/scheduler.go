// Package scheduler provides cron-based job scheduling for ConnectID.
//
// The dispatch controller uses it to run the periodic sweep that retries
// unassigned distress signals.
package scheduler

import (
	"github.com/robfig/cron/v3"
)

// SweepSchedule runs the unassigned-signal sweep once a minute.
const SweepSchedule = "@every 1m"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field cron expressions plus @every-style descriptors, with
	// panic recovery around each job.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
