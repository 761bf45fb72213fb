// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package err holds the error kinds surfaced by the job service. Every error
// returned by the service matches exactly one sentinel through errors.Is,
// except compensation failures which match both ErrPublishFailure and
// ErrCompensationFailed.
package err

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotFound             = errors.New("not found")
	ErrPoolNotFound         = fmt.Errorf("pool %w", ErrNotFound)
	ErrConflict             = errors.New("conflict")
	ErrCollectorNotInPool   = errors.New("collector not in pool")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrBadRequest           = errors.New("bad request")
	ErrPublishFailure       = errors.New("publish failure")
	ErrCompensationFailed   = errors.New("compensation failed")
)

var (
	ConfigIsNil        = errors.New("service config is nil")
	ConfigSecretIsNil  = errors.New("service secret key is empty")
	ConfigStoreIsNil   = errors.New("store driver is empty")
	ConfigNATSURLIsNil = errors.New("nats url is empty")
)

// Error is a classified error. Sentinel drives errors.Is, Cause is the
// underlying failure if any.
type Error struct {
	Sentinel error
	Message  string
	Cause    error
}

func (e *Error) Error() string {

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {

	if e.Cause != nil {
		return []error{e.Sentinel, e.Cause}
	}
	return []error{e.Sentinel}
}

func Unauthorized(pool string) error {

	return &Error{Sentinel: ErrUnauthorized, Message: fmt.Sprintf("API key is not authorized for pool %s", pool)}
}

func JobNotFound(jobName, collector string) error {

	return &Error{Sentinel: ErrNotFound, Message: fmt.Sprintf("Job name %s does not exist for collector %s", jobName, collector)}
}

func PoolNotFound(pool string) error {

	return &Error{Sentinel: ErrPoolNotFound, Message: fmt.Sprintf("Pool %s does not exist", pool)}
}

func Conflict(jobName, collector string) error {

	return &Error{Sentinel: ErrConflict, Message: fmt.Sprintf("Job name %s already exists for collector %s", jobName, collector)}
}

func CollectorNotInPool(pool, collector string) error {

	return &Error{Sentinel: ErrCollectorNotInPool, Message: fmt.Sprintf("Collector %s does not exist in pool %s", collector, pool)}
}

func UnsupportedOperation(format string, args ...any) error {

	return &Error{Sentinel: ErrUnsupportedOperation, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) error {

	return &Error{Sentinel: ErrBadRequest, Message: fmt.Sprintf(format, args...)}
}

func PublishFailure(cause error) error {

	return &Error{Sentinel: ErrPublishFailure, Message: "failed to publish job event", Cause: cause}
}

// CompensationError reports a publish failure whose undo write also failed.
// The store may now disagree with the event stream and needs reconciling.
type CompensationError struct {
	Operation  string
	PublishErr error
	UndoErr    error
}

func (e *CompensationError) Error() string {

	return fmt.Sprintf("%s: publish failed (%v) and compensation failed (%v)", e.Operation, e.PublishErr, e.UndoErr)
}

func (e *CompensationError) Unwrap() []error {

	return []error{ErrCompensationFailed, e.PublishErr, e.UndoErr}
}

// Kind names the sentinel an error matches, for user-facing output.
func Kind(err error) string {

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCompensationFailed):
		return "CompensationFailed"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrPoolNotFound):
		return "PoolNotFound"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrCollectorNotInPool):
		return "CollectorNotInPool"
	case errors.Is(err, ErrUnsupportedOperation):
		return "UnsupportedOperation"
	case errors.Is(err, ErrBadRequest):
		return "BadRequest"
	case errors.Is(err, ErrPublishFailure):
		return "PublishFailure"
	default:
		return "Internal"
	}
}
