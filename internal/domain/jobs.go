package domain

import (
	"context"
	"time"
)

// PipelineCause records what triggered a pipeline run.
type PipelineCause string

const (
	PipelineCauseSchedule PipelineCause = "schedule"
	PipelineCauseManual   PipelineCause = "manual"
)

// PipelineJob asks the worker to run the full ingestion pipeline for a date.
type PipelineJob struct {
	ID          string        `json:"id"`
	Date        time.Time     `json:"date"`
	Cause       PipelineCause `json:"cause"`
	RequestedAt time.Time     `json:"requested_at"`
}

// PipelineQueue transports pipeline jobs between scheduler and worker.
type PipelineQueue interface {
	Enqueue(ctx context.Context, job PipelineJob) error
	// Pop blocks until a job is available or ctx is cancelled.
	Pop(ctx context.Context) (PipelineJob, error)
}
