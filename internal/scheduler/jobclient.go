package scheduler

import "context"

// JobSpec is what the control loop hands to the job layer per submission.
type JobSpec struct {
	Task  string
	Point string
	Try   int
}

// JobClient is the collaborator interface to the external job layer.
// Submit must return promptly: the loop treats submission as one-way, and
// acknowledgement or failure of the job itself arrives later on the
// message queue. An immediate error routes through the normal
// failed→retry path.
type JobClient interface {
	Submit(ctx context.Context, spec JobSpec) (submissionID string, err error)
}
