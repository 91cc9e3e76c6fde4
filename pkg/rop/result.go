package rop

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Result carries either the output of a pipeline step or the reason the
// pipeline stopped. Every result gets its own id so that a failure can be
// traced back through logs to the chunk that produced it.
type Result[T any] struct {
	id        uuid.UUID
	createdAt time.Time
	step      string
	result    T
	err       error
	isSuccess bool
	isCancel  bool
}

func Success[T any](r T) Result[T] {
	return Result[T]{
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
		result:    r,
		isSuccess: true,
	}
}

func Fail[T any](err error) Result[T] {
	return Result[T]{
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
		err:       err,
	}
}

func Cancel[T any](err error) Result[T] {
	return Result[T]{
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
		err:       err,
		isCancel:  true,
	}
}

// FailFrom converts a non-successful result to another value type, keeping
// its id, error and step.
func FailFrom[In, Out any](from Result[In]) Result[Out] {
	return Result[Out]{
		id:        from.id,
		createdAt: from.createdAt,
		step:      from.step,
		err:       from.err,
		isCancel:  from.isCancel,
	}
}

// AtStep labels the result with the name of the step that produced it.
func (r Result[T]) AtStep(step string) Result[T] {
	r.step = step
	return r
}

func (r Result[T]) Result() T {
	return r.result
}

func (r Result[T]) Err() error {
	return r.err
}

// Step is the name of the last step that produced r, empty if unlabelled.
func (r Result[T]) Step() string {
	return r.step
}

func (r Result[T]) IsSuccess() bool {
	return r.isSuccess
}

// IsFailure is true for failed and cancelled results.
func (r Result[T]) IsFailure() bool {
	return !r.isSuccess
}

func (r Result[T]) IsCancel() bool {
	return r.isCancel
}

func (r Result[T]) CreatedAt() time.Time {
	return r.createdAt
}

func (r Result[T]) Id() uuid.UUID {
	return r.id
}

func IsCancellationError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
