package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrSensorNotRecognized = errors.New("sensor not recognized")
	ErrCarNotRecognized    = errors.New("car not recognized")
	ErrDuplicateRoad       = errors.New("road with this name and segment already exists")
	ErrSensorInUse         = errors.New("sensor is referenced by plate reads")
)

// ValidationError maps field names to a human readable message.
type ValidationError struct {
	Fields map[string]string
	Err    error
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BatchValidationError reports per-record failures of a batch, index aligned with
// the input. Valid records have a nil entry.
type BatchValidationError struct {
	Items []*ValidationError
}

func (e *BatchValidationError) Error() string {
	failed := 0
	for _, item := range e.Items {
		if item != nil {
			failed++
		}
	}
	return fmt.Sprintf("batch validation failed: %d of %d records invalid", failed, len(e.Items))
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
