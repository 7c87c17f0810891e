package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Job is a unit of periodic work
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs on fixed intervals. A run that is still going when the next
// one is due causes that next run to be skipped.
type Scheduler struct {
	jobs []Job
}

// NewScheduler creates a scheduler for the given jobs
func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Start runs every job once right away and then on its interval. The returned
// function stops scheduling and waits for running jobs to return.
func (s *Scheduler) Start(ctx context.Context) (func(), error) {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return nil, fmt.Errorf("job %s: interval must be positive", job.Name)
		}
	}

	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger))

	var initial sync.WaitGroup
	for _, job := range s.jobs {
		// The immediate run and the scheduled ones share one skip guard
		wrapped := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
			s.run(ctx, job)
		}))
		c.Schedule(cron.Every(job.Interval), wrapped)

		initial.Add(1)
		go func() {
			defer initial.Done()
			wrapped.Run()
		}()

		log.WithFields(log.Fields{
			"job":      job.Name,
			"interval": job.Interval,
		}).Info("Scheduled job")
	}

	c.Start()

	return func() {
		stopped := c.Stop()
		<-stopped.Done()
		initial.Wait()
		log.Info("Scheduler stopped")
	}, nil
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.WithFields(log.Fields{
			"job":   job.Name,
			"error": err,
		}).Error("Scheduled job failed")
		return
	}
	log.WithFields(log.Fields{
		"job":      job.Name,
		"duration": time.Since(start),
	}).Debug("Scheduled job finished")
}

// cronLogger routes cron's logging through logrus
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(toFields(keysAndValues)).Debug("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.WithFields(toFields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func toFields(keysAndValues []interface{}) log.Fields {
	fields := make(log.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
