package zimagegen

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable means the server could not be contacted at all.
	ErrUnreachable = errors.New("server unreachable")
	// ErrEmptyResult means the job completed without producing any output
	// images. Retrying the same job cannot help.
	ErrEmptyResult = errors.New("job completed with no output images")
	// ErrPollTimeout means the poll attempts were exhausted before the job
	// produced an output.
	ErrPollTimeout = errors.New("timed out waiting for job output")
	// ErrNoJobID means the server accepted the submission but returned no
	// job identifier.
	ErrNoJobID = errors.New("no prompt_id in server response")
)

// ServerError is a non-success HTTP response from the server, surfaced with
// the response body so node validation errors are readable.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Status)
	}
	return fmt.Sprintf("server rejected request (status %d): %s", e.Status, e.Body)
}

// UnreachableError wraps a transport failure. It matches ErrUnreachable via
// errors.Is.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("cannot reach server at %s: %v", e.Host, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

func (e *UnreachableError) Is(target error) bool { return target == ErrUnreachable }
