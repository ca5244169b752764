package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one document to push through the pipeline.
type Job struct {
	ID          uuid.UUID
	Path        string
	SubmittedAt time.Time
}

func NewJob(path string) Job {
	return Job{ID: uuid.New(), Path: path, SubmittedAt: time.Now()}
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
