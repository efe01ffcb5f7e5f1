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
	"errors"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
)

// Request is one grid submission, tagged by its execution type. Only the
// fields of that type are set.
type Request struct {
	ExecutionType ExecutionType

	Callables []Callable
	Runnables []Runnable
	Closure   Closure
	// Single is true when the body held one job rather than a slice, so the
	// response carries one result.
	Single bool
	// NoResult marks a broadcast of a Runnable.
	NoResult bool

	Params   any
	Args     []any
	Reducer  Reducer
	TaskName string

	CacheName   string
	AffinityKey any
}

type Response struct {
	Result any
}

// Backend submits requests to an injected Grid through a projection shaped
// by the endpoint configuration. Grid errors come back unchanged inside a
// *core.BackendError.
type Backend struct {
	grid   Grid
	config Config
	uri    string
}

func NewBackend(grid Grid, cfg Config, uri string) *Backend {
	return &Backend{grid: grid, config: cfg, uri: uri}
}

// projection applies clusterGroup, computeName and timeoutMillis.
func (b *Backend) projection() (Compute, error) {
	c, err := b.grid.Compute(b.config.ClusterGroup)
	if err != nil {
		return nil, err
	}
	if b.config.ComputeName != "" {
		c = c.WithName(b.config.ComputeName)
	}
	if b.config.HasTimeout {
		c = c.WithTimeout(b.config.Timeout)
	}
	return c, nil
}

func (b *Backend) Invoke(ctx context.Context, req Request) (Response, error) {
	c, err := b.projection()
	if err != nil {
		return Response{}, b.fail(req, err)
	}

	result, err := b.dispatch(ctx, c, req)
	if err != nil {
		return Response{}, b.fail(req, err)
	}
	return Response{Result: result}, nil
}

func (b *Backend) dispatch(ctx context.Context, c Compute, req Request) (any, error) {
	switch req.ExecutionType {
	case ExecutionCall:
		results, err := c.Call(ctx, req.Callables)
		if err != nil {
			return nil, err
		}
		return collect(results, req.Single, req.Reducer)

	case ExecutionBroadcast:
		results, err := c.Broadcast(ctx, req.Closure, req.Params)
		if err != nil || req.NoResult {
			return nil, err
		}
		return results, nil

	case ExecutionApply:
		results, err := c.Apply(ctx, req.Closure, req.Args)
		if err != nil {
			return nil, err
		}
		return collect(results, req.Single, req.Reducer)

	case ExecutionExecute:
		return c.Execute(ctx, req.TaskName, req.Params)

	case ExecutionRun:
		return nil, c.Run(ctx, req.Runnables)

	case ExecutionAffinityCall:
		return c.AffinityCall(ctx, req.CacheName, req.AffinityKey, req.Callables[0])

	case ExecutionAffinityRun:
		return nil, c.AffinityRun(ctx, req.CacheName, req.AffinityKey, req.Runnables[0])

	default:
		return nil, core.ConfigErrorf("%s: unsupported execution type %q", b.uri, req.ExecutionType)
	}
}

func (b *Backend) fail(req Request, err error) error {
	var be *core.BackendError
	if errors.As(err, &be) || errors.Is(err, core.ErrConfig) {
		return err
	}
	return core.NewBackendError(b.uri, string(req.ExecutionType), err)
}

func collect(results []any, single bool, reduce Reducer) (any, error) {
	if reduce != nil {
		return reduce(results)
	}
	if single && len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}
