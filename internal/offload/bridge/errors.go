package bridge

import (
	"github.com/tphakala/audiokit/internal/errors"
)

// ComponentBridge identifies bridge errors
const ComponentBridge = "bridge"

var (
	// ErrNotReady is returned by Call while the execution context is not ready
	ErrNotReady = errors.New(errors.NewStd("execution context not ready")).
			Component(ComponentBridge).
			Category(errors.CategoryNotReady).
			Build()

	// ErrContextFailure rejects every pending call when the execution context faults
	ErrContextFailure = errors.New(errors.NewStd("execution context failure")).
				Component(ComponentBridge).
				Category(errors.CategoryBridge).
				Build()

	// ErrSerialization is returned when a payload or result cannot be encoded or decoded
	ErrSerialization = errors.New(errors.NewStd("message serialization failed")).
				Component(ComponentBridge).
				Category(errors.CategorySerialization).
				Build()

	// ErrCancelled is reported by Future.Wait for calls dropped at teardown
	ErrCancelled = errors.New(errors.NewStd("call cancelled by bridge teardown")).
			Component(ComponentBridge).
			Category(errors.CategoryCancellation).
			Build()

	// ErrUnknownKind is returned when a message carries an unknown kind tag
	ErrUnknownKind = errors.New(errors.NewStd("unknown message kind")).
			Component(ComponentBridge).
			Category(errors.CategorySerialization).
			Build()

	// ErrRemote wraps an error reported by the execution context for one call
	ErrRemote = errors.New(errors.NewStd("execution context returned an error")).
			Component(ComponentBridge).
			Category(errors.CategoryWorker).
			Build()
)
