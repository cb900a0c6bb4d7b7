package app

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operation tracks one CLI invocation. Its ID tags every log line the
// invocation writes.
type Operation struct {
	ID         string
	Name       string
	Parameters string
	Status     string // "success" or "error"
	StartedAt  time.Time
}

// NewOperation creates an operation started at now.
func NewOperation(name, parameters string, now time.Time) *Operation {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return &Operation{
		ID:         now.UTC().Format("20060102T150405Z") + "-" + suffix,
		Name:       name,
		Parameters: parameters,
		Status:     "success",
		StartedAt:  now,
	}
}

// Finish records the outcome of the operation.
func (op *Operation) Finish(err error) {
	if err != nil {
		op.Status = "error"
	}
}

// Failed reports whether Finish was given an error.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}
