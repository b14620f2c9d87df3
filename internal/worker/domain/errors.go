package domain

// RetryableError marks a transient failure whose delivery should be requeued
// instead of dead-lettered. Only exhausted storage retries produce it;
// classification and validation failures are terminal.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
