package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Dispatch channels
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
	ChannelInApp = "in_app"
)

// DispatchTask is one independent side effect of an order event
type DispatchTask struct {
	Name    string
	Channel string
	Run     func(ctx context.Context) error
	// Retry, when set, is queued if Run fails and a retry queue is configured.
	Retry *RetryJob
}

// DispatchResult records the outcome of one task
type DispatchResult struct {
	Task     string        `json:"task"`
	Channel  string        `json:"channel"`
	Error    string        `json:"error,omitempty"`
	Queued   bool          `json:"queued,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the task succeeded.
func (r DispatchResult) OK() bool {
	return r.Error == ""
}

// DispatchReport collects the results of a Run
type DispatchReport struct {
	Results []DispatchResult `json:"results"`
}

// Failed returns the results of tasks that did not succeed.
func (r DispatchReport) Failed() []DispatchResult {
	var failed []DispatchResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Result looks up a task by name.
func (r DispatchReport) Result(task string) (DispatchResult, bool) {
	for _, res := range r.Results {
		if res.Task == task {
			return res, true
		}
	}
	return DispatchResult{}, false
}

// Dispatcher runs notification tasks in order. A failing or panicking task
// is logged and never stops the tasks after it.
type Dispatcher struct {
	retry RetryQueue
	log   *logrus.Logger
}

// NewDispatcher creates a dispatcher. retry may be nil.
func NewDispatcher(retry RetryQueue, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{retry: retry, log: log}
}

// Run executes every task and reports each outcome.
func (d *Dispatcher) Run(ctx context.Context, subject string, tasks []DispatchTask) DispatchReport {
	report := DispatchReport{Results: make([]DispatchResult, 0, len(tasks))}

	for _, task := range tasks {
		start := time.Now()
		err := d.runOne(ctx, task)
		res := DispatchResult{Task: task.Name, Channel: task.Channel, Duration: time.Since(start)}

		if err != nil {
			res.Error = err.Error()
			entry := d.log.WithFields(logrus.Fields{
				"task":    task.Name,
				"channel": task.Channel,
				"subject": subject,
			}).WithError(err)

			if task.Retry != nil && d.retry != nil {
				job := *task.Retry
				job.Attempt = 1
				job.LastError = err.Error()
				job.NotBefore = time.Now().Add(defaultRetryBaseWait)
				if qErr := d.retry.Enqueue(ctx, job); qErr != nil {
					entry.WithField("queueError", qErr.Error()).Error("dispatch task failed and could not be queued for retry")
				} else {
					res.Queued = true
					entry.Warn("dispatch task failed, queued for retry")
				}
			} else {
				entry.Warn("dispatch task failed")
			}
		}
		report.Results = append(report.Results, res)
	}
	return report
}

func (d *Dispatcher) runOne(ctx context.Context, task DispatchTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", task.Name, r)
		}
	}()
	return task.Run(ctx)
}
