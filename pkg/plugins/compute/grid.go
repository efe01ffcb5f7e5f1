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

package compute

import (
	"context"
	"time"
)

// Job shapes accepted in message bodies and headers.
type (
	Callable func(ctx context.Context) (any, error)
	Runnable func(ctx context.Context) error
	Closure  func(ctx context.Context, arg any) (any, error)
	Reducer  func(results []any) (any, error)
)

// Grid hands out compute projections over groups of nodes.
type Grid interface {
	// Compute returns a projection over the named cluster group, or over
	// every node when group is empty.
	Compute(group string) (Compute, error)
}

// Compute runs jobs on the nodes of one projection. WithName and WithTimeout
// return a new projection and leave the receiver unchanged.
type Compute interface {
	WithName(name string) Compute
	WithTimeout(timeout time.Duration) Compute

	// Call runs every job once and returns the results in job order.
	Call(ctx context.Context, jobs []Callable) ([]any, error)
	// Broadcast runs job once on every node of the projection.
	Broadcast(ctx context.Context, job Closure, arg any) ([]any, error)
	// Apply runs c once per argument and returns the results in order.
	Apply(ctx context.Context, c Closure, args []any) ([]any, error)
	// Execute runs the task registered under name.
	Execute(ctx context.Context, name string, arg any) (any, error)
	Run(ctx context.Context, jobs []Runnable) error
	// AffinityCall runs job on the node owning key in cache.
	AffinityCall(ctx context.Context, cache string, key any, job Callable) (any, error)
	AffinityRun(ctx context.Context, cache string, key any, job Runnable) error
}
