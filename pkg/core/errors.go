// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package core

import (
	"errors"
	"fmt"
)

var (
	ErrConfig       = errors.New("configuration error")
	ErrNotSupported = errors.New("operation not supported")
	ErrBackend      = errors.New("backend error")

	ErrNotConnected   = errors.New("endpoint not connected")
	ErrAlreadyStarted = errors.New("consumer already started")
	ErrStopTimeout    = errors.New("consumer stop timed out with a dispatch in flight")

	ErrNoRoute             = errors.New("no route")
	ErrEndpointUnavailable = errors.New("endpoint unavailable")
)

// ConfigErrorf returns an error wrapping ErrConfig.
func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// BackendError reports a failed backend invocation. Err is the error returned
// by the backend client, unchanged.
type BackendError struct {
	Endpoint  string
	Operation string
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error: %s %s: %v", e.Endpoint, e.Operation, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrBackend) match any *BackendError.
func (e *BackendError) Is(target error) bool { return target == ErrBackend }

func NewBackendError(endpoint, operation string, err error) error {
	return &BackendError{Endpoint: endpoint, Operation: operation, Err: err}
}
