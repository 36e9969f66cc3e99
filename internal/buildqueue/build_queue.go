// Package buildqueue serializes app builds. Jobs are keyed by app name and
// deduplicated, so queueing the same app twice while its build is pending
// runs it once.
package buildqueue

import (
	"context"
	"slices"
)

type queueItem struct {
	app string
	job func() error
}

type JobFinishedEvent struct {
	App    string
	Result error
}

type BuildQueue struct {
	JobFinishedChannel chan JobFinishedEvent

	poolSize                   int
	queue                      []queueItem
	numberOfJobsBeingProcessed int
	newJobChannel              chan queueItem
	jobFinishedInternalChannel chan JobFinishedEvent
}

// You need to consume messages from [BuildQueue.JobFinishedChannel] or it
// gets stuck.
func New(poolSize int) *BuildQueue {
	if poolSize < 1 {
		poolSize = 1
	}

	return &BuildQueue{
		JobFinishedChannel:         make(chan JobFinishedEvent),
		poolSize:                   poolSize,
		queue:                      nil,
		numberOfJobsBeingProcessed: 0,
		newJobChannel:              make(chan queueItem),
		jobFinishedInternalChannel: make(chan JobFinishedEvent),
	}
}

func (b *BuildQueue) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case job := <-b.newJobChannel:
			isAlreadyQueued := slices.ContainsFunc(b.queue, func(item queueItem) bool {
				return item.app == job.app
			})
			if isAlreadyQueued {
				continue
			}

			b.queue = append(b.queue, job)
			b.fillProcessors()

		case <-b.jobFinishedInternalChannel:
			b.numberOfJobsBeingProcessed--
			b.fillProcessors()
		}
	}
}

func (b *BuildQueue) Process(app string, job func() error) {
	b.newJobChannel <- queueItem{
		app: app,
		job: job,
	}
}

func (b *BuildQueue) fillProcessors() {
	for b.numberOfJobsBeingProcessed < b.poolSize && len(b.queue) > 0 {
		job := b.queue[0]
		b.queue = b.queue[1:]
		b.numberOfJobsBeingProcessed++
		b.processItem(job)
	}
}

func (b *BuildQueue) processItem(job queueItem) {
	go func() {
		err := job.job()

		event := JobFinishedEvent{
			App:    job.app,
			Result: err,
		}
		b.jobFinishedInternalChannel <- event
		b.JobFinishedChannel <- event
	}()
}
