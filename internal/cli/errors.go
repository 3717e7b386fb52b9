package cli

import (
	"errors"
	"fmt"

	"planboard/internal/planning"
)

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already printed to stderr.
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// describe prefixes store errors with their code ("InvalidStateTransition: ...").
func describe(err error) string {
	var nf notFoundError
	if errors.As(err, &nf) {
		return fmt.Sprintf("%s: %s", planning.CodeNotFound, err)
	}
	var pe *planning.Error
	if errors.As(err, &pe) {
		return fmt.Sprintf("%s: %s", pe.Code, err)
	}
	return err.Error()
}
