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
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

// mockGrid records the projection and the jobs it was handed. It runs jobs
// inline.
type mockGrid struct {
	group    string
	compute  *mockCompute
	groupErr error
}

func (g *mockGrid) Compute(group string) (Compute, error) {
	g.group = group
	if g.groupErr != nil {
		return nil, g.groupErr
	}
	if g.compute == nil {
		g.compute = &mockCompute{}
	}
	return g.compute, nil
}

type mockCompute struct {
	name     string
	timeout  time.Duration
	calls    []string
	err      error
	lastKey  any
	lastTask string
}

func (c *mockCompute) WithName(name string) Compute { c.name = name; return c }

func (c *mockCompute) WithTimeout(d time.Duration) Compute { c.timeout = d; return c }

func (c *mockCompute) record(op string) error {
	c.calls = append(c.calls, op)
	return c.err
}

func (c *mockCompute) Call(ctx context.Context, jobs []Callable) ([]any, error) {
	if err := c.record("call"); err != nil {
		return nil, err
	}
	var out []any
	for _, j := range jobs {
		r, err := j(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *mockCompute) Broadcast(ctx context.Context, job Closure, arg any) ([]any, error) {
	if err := c.record("broadcast"); err != nil {
		return nil, err
	}
	var out []any
	for range 2 {
		r, err := job(ctx, arg)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *mockCompute) Apply(ctx context.Context, cl Closure, args []any) ([]any, error) {
	if err := c.record("apply"); err != nil {
		return nil, err
	}
	var out []any
	for _, a := range args {
		r, err := cl(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *mockCompute) Execute(ctx context.Context, name string, arg any) (any, error) {
	c.lastTask = name
	if err := c.record("execute"); err != nil {
		return nil, err
	}
	return name + ":" + arg.(string), nil
}

func (c *mockCompute) Run(ctx context.Context, jobs []Runnable) error {
	if err := c.record("run"); err != nil {
		return err
	}
	for _, j := range jobs {
		if err := j(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *mockCompute) AffinityCall(ctx context.Context, cache string, key any, job Callable) (any, error) {
	c.lastKey = key
	if err := c.record("affinityCall:" + cache); err != nil {
		return nil, err
	}
	return job(ctx)
}

func (c *mockCompute) AffinityRun(ctx context.Context, cache string, key any, job Runnable) error {
	c.lastKey = key
	if err := c.record("affinityRun:" + cache); err != nil {
		return err
	}
	return job(ctx)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProducer(t *testing.T, grid Grid, uri string) core.Producer {
	t.Helper()
	d, err := endpoint.Parse(uri, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ep, err := New(grid, testLogger()).NewEndpoint(d)
	if err != nil {
		t.Fatalf("new endpoint: %v", err)
	}
	p, err := ep.CreateProducer()
	if err != nil {
		t.Fatalf("create producer: %v", err)
	}
	return p
}

func constant(v any) Callable {
	return func(context.Context) (any, error) { return v, nil }
}

func TestMissingExecutionType(t *testing.T) {
	d, err := endpoint.Parse("compute:myEndpoint", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ep, err := New(&mockGrid{}, testLogger()).NewEndpoint(d)
	if ep != nil || !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v %v", ep, err)
	}
}

func TestEndpointConfigErrors(t *testing.T) {
	tests := []string{
		"compute:grid?executionType=SPAWN",
		"compute:grid?executionType=CALL&timeoutMillis=-1",
		"compute:grid?executionType=CALL&timeoutMillis=soon",
		"compute:grid?executionType=CALL&clusterGroupExpression=x",
		"compute:?executionType=CALL",
	}
	for _, uri := range tests {
		d, err := endpoint.Parse(uri, nil)
		if err != nil {
			t.Fatalf("parse %s: %v", uri, err)
		}
		if _, err := New(&mockGrid{}, testLogger()).NewEndpoint(d); !errors.Is(err, core.ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", uri, err)
		}
	}
}

func TestProjectionOptions(t *testing.T) {
	grid := &mockGrid{}
	p := newProducer(t, grid, "compute:grid?executionType=call&clusterGroup=workers&computeName=job&timeoutMillis=250")

	msg := core.NewMessage(constant(42))
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if grid.group != "workers" || grid.compute.name != "job" || grid.compute.timeout != 250*time.Millisecond {
		t.Fatalf("unexpected projection: group=%s name=%s timeout=%s", grid.group, grid.compute.name, grid.compute.timeout)
	}
	if msg.Body != 42 {
		t.Fatalf("expected single result 42, got %v", msg.Body)
	}
}

func TestZeroTimeoutIsApplied(t *testing.T) {
	grid := &mockGrid{compute: &mockCompute{timeout: time.Second}}
	p := newProducer(t, grid, "compute:grid?executionType=CALL&timeoutMillis=0")
	if err := p.Process(context.Background(), core.NewMessage(constant(1))); err != nil {
		t.Fatalf("process: %v", err)
	}
	if grid.compute.timeout != 0 {
		t.Fatalf("expected timeout 0, got %s", grid.compute.timeout)
	}
}

func TestCallManyWithReducer(t *testing.T) {
	grid := &mockGrid{}
	p := newProducer(t, grid, "compute:grid?executionType=CALL")

	msg := core.NewMessage([]Callable{constant(1), constant(2), constant(3)})
	msg.SetHeader(HeaderReducer, func(results []any) (any, error) {
		sum := 0
		for _, r := range results {
			sum += r.(int)
		}
		return sum, nil
	})
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if msg.Body != 6 {
		t.Fatalf("expected reduced 6, got %v", msg.Body)
	}
}

func TestBroadcast(t *testing.T) {
	grid := &mockGrid{}
	p := newProducer(t, grid, "compute:grid?executionType=BROADCAST")

	msg := core.NewMessage(Closure(func(ctx context.Context, arg any) (any, error) { return arg, nil }))
	msg.SetHeader(HeaderParams, "p")
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := msg.Body.([]any); len(got) != 2 || got[0] != "p" {
		t.Fatalf("unexpected broadcast result %v", msg.Body)
	}

	ran := 0
	msg = core.NewMessage(func(context.Context) error { ran++; return nil })
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if ran != 2 || msg.Body != nil {
		t.Fatalf("expected runnable on both nodes and nil body, got %d %v", ran, msg.Body)
	}
}

func TestApply(t *testing.T) {
	grid := &mockGrid{}
	p := newProducer(t, grid, "compute:grid?executionType=APPLY")
	double := Closure(func(ctx context.Context, arg any) (any, error) { return arg.(int) * 2, nil })

	msg := core.NewMessage(double)
	msg.SetHeader(HeaderParams, []any{1, 2})
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := msg.Body.([]any); len(got) != 2 || got[1] != 4 {
		t.Fatalf("unexpected apply result %v", msg.Body)
	}

	msg = core.NewMessage(double)
	msg.SetHeader(HeaderParams, 5)
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if msg.Body != 10 {
		t.Fatalf("expected 10, got %v", msg.Body)
	}

	msg = core.NewMessage(double)
	if err := p.Process(context.Background(), msg); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig without params, got %v", err)
	}
}

func TestExecuteTaskName(t *testing.T) {
	grid := &mockGrid{}
	p := newProducer(t, grid, "compute:grid?executionType=EXECUTE&taskName=wordCount")

	msg := core.NewMessage("text")
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if msg.Body != "wordCount:text" {
		t.Fatalf("unexpected result %v", msg.Body)
	}

	msg = core.NewMessage("ignored")
	msg.SetHeader(HeaderTaskName, "lineCount")
	msg.SetHeader(HeaderParams, "arg")
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if msg.Body != "lineCount:arg" {
		t.Fatalf("expected header task and params, got %v", msg.Body)
	}
}

func TestExecuteWithoutTaskNameFailsBeforeBackend(t *testing.T) {
	grid := &mockGrid{}
	p := newProducer(t, grid, "compute:grid?executionType=EXECUTE")
	if err := p.Process(context.Background(), core.NewMessage("text")); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if grid.compute != nil {
		t.Fatal("expected no grid access")
	}
}

func TestRun(t *testing.T) {
	grid := &mockGrid{}
	p := newProducer(t, grid, "compute:grid?executionType=RUN")
	ran := 0
	job := Runnable(func(context.Context) error { ran++; return nil })

	if err := p.Process(context.Background(), core.NewMessage([]Runnable{job, job})); err != nil {
		t.Fatalf("process: %v", err)
	}
	if ran != 2 {
		t.Fatalf("expected two runs, got %d", ran)
	}
}

func TestAffinity(t *testing.T) {
	grid := &mockGrid{}
	p := newProducer(t, grid, "compute:grid?executionType=AFFINITY_CALL")

	msg := core.NewMessage(constant("v"))
	msg.SetHeader(HeaderAffinityCacheName, "users")
	msg.SetHeader(HeaderAffinityKey, 7)
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if msg.Body != "v" || grid.compute.lastKey != 7 || grid.compute.calls[0] != "affinityCall:users" {
		t.Fatalf("unexpected affinity call: %v %v", msg.Body, grid.compute.calls)
	}

	missing := core.NewMessage(constant("v"))
	missing.SetHeader(HeaderAffinityCacheName, "users")
	if err := p.Process(context.Background(), missing); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig without key, got %v", err)
	}
}

func TestWrongPayload(t *testing.T) {
	for _, et := range []string{"CALL", "BROADCAST", "APPLY", "RUN", "AFFINITY_CALL", "AFFINITY_RUN"} {
		grid := &mockGrid{}
		p := newProducer(t, grid, "compute:grid?executionType="+et)
		if err := p.Process(context.Background(), core.NewMessage("not a job")); !errors.Is(err, core.ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", et, err)
		}
		if grid.compute != nil {
			t.Errorf("%s: expected no grid access", et)
		}
	}
}

func TestGridErrorsAreBackendErrors(t *testing.T) {
	cause := errors.New("node left")
	grid := &mockGrid{compute: &mockCompute{err: cause}}
	p := newProducer(t, grid, "compute:grid?executionType=CALL")

	err := p.Process(context.Background(), core.NewMessage(constant(1)))
	var be *core.BackendError
	if !errors.As(err, &be) || !errors.Is(err, cause) || be.Operation != "CALL" {
		t.Fatalf("expected backend error wrapping cause, got %v", err)
	}

	grid = &mockGrid{groupErr: ErrUnknownGroup}
	p = newProducer(t, grid, "compute:grid?executionType=CALL&clusterGroup=missing")
	if err := p.Process(context.Background(), core.NewMessage(constant(1))); !errors.Is(err, ErrUnknownGroup) {
		t.Fatalf("expected unknown group error, got %v", err)
	}
}

func TestConsumerNotSupported(t *testing.T) {
	d, _ := endpoint.Parse("compute:grid?executionType=RUN", nil)
	ep, err := New(&mockGrid{}, testLogger()).NewEndpoint(d)
	if err != nil {
		t.Fatalf("new endpoint: %v", err)
	}
	if _, err := ep.CreateConsumer(nil); !errors.Is(err, core.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}

func newSquareMessage(args []any) *core.Message {
	msg := core.NewMessage(Closure(func(ctx context.Context, arg any) (any, error) {
		n := arg.(int)
		return n * n, nil
	}))
	msg.SetHeader(HeaderParams, args)
	return msg
}

func TestNilJobsFailBeforeBackend(t *testing.T) {
	tests := []struct {
		uri  string
		body any
	}{
		{"compute:grid?executionType=CALL", []Callable{constant(1), nil}},
		{"compute:grid?executionType=RUN", []Runnable{nil}},
	}
	for _, tt := range tests {
		grid := &mockGrid{}
		p := newProducer(t, grid, tt.uri)
		if err := p.Process(context.Background(), core.NewMessage(tt.body)); !errors.Is(err, core.ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", tt.uri, err)
		}
		if grid.compute != nil {
			t.Errorf("%s: expected no grid access", tt.uri)
		}
	}
}

func TestApplySpreadsTypedSlices(t *testing.T) {
	grid := &mockGrid{}
	p := newProducer(t, grid, "compute:grid?executionType=APPLY")
	length := Closure(func(ctx context.Context, arg any) (any, error) { return len(arg.(string)), nil })

	msg := core.NewMessage(length)
	msg.SetHeader(HeaderParams, []string{"a", "bcd"})
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := msg.Body.([]any); len(got) != 2 || got[1] != 3 {
		t.Fatalf("expected one call per element, got %v", msg.Body)
	}

	size := Closure(func(ctx context.Context, arg any) (any, error) { return len(arg.([]byte)), nil })
	msg = core.NewMessage(size)
	msg.SetHeader(HeaderParams, []byte("four"))
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if msg.Body != 4 {
		t.Fatalf("expected byte slice as one argument, got %v", msg.Body)
	}
}
