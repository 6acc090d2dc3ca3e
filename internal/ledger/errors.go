package ledger

import "errors"

var (
	// ErrJobNotFound is returned when the job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotQueued is returned when the job was already claimed by
	// another execution or has finished.
	ErrJobNotQueued = errors.New("job is not queued")
)
