package worker

import "errors"

var (
	ErrMissingID           = errors.New("worker id is required")
	ErrDuplicateWorker     = errors.New("worker already registered")
	ErrWorkerNotFound      = errors.New("worker not found")
	ErrInvalidAvailability = errors.New("invalid availability")
	ErrWorkloadOutOfRange  = errors.New("workload must be within [0,100]")
)
