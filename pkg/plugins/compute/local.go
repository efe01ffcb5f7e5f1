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
	"fmt"
	"hash/fnv"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownGroup = errors.New("unknown cluster group")
	ErrUnknownTask  = errors.New("unknown task")
	ErrTimeout      = errors.New("compute job timed out")
	ErrJobPanicked  = errors.New("compute job panicked")
)

type nodeKey struct{}

// NodeFromContext returns the ID of the node a job runs on.
func NodeFromContext(ctx context.Context) string {
	id, _ := ctx.Value(nodeKey{}).(string)
	return id
}

type LocalConfig struct {
	// Nodes is the number of in-process nodes, at least one.
	Nodes int `yaml:"nodes"`
	// Groups maps a group name to node indexes.
	Groups map[string][]int `yaml:"groups"`
}

// LocalGrid runs jobs on goroutines standing in for grid nodes.
type LocalGrid struct {
	nodes  []string
	groups map[string][]string
	logger *slog.Logger

	mu    sync.RWMutex
	tasks map[string]Closure
}

func NewLocalGrid(cfg LocalConfig, logger *slog.Logger) (*LocalGrid, error) {
	if cfg.Nodes < 1 {
		cfg.Nodes = 1
	}
	g := &LocalGrid{
		groups: make(map[string][]string),
		tasks:  make(map[string]Closure),
		logger: logger,
	}
	for i := range cfg.Nodes {
		g.nodes = append(g.nodes, fmt.Sprintf("node-%d", i))
	}
	for name, idx := range cfg.Groups {
		var members []string
		for _, i := range idx {
			if i < 0 || i >= cfg.Nodes {
				return nil, fmt.Errorf("group %s: node %d out of range [0,%d)", name, i, cfg.Nodes)
			}
			members = append(members, g.nodes[i])
		}
		if len(members) == 0 {
			return nil, fmt.Errorf("group %s has no nodes", name)
		}
		g.groups[name] = members
	}
	return g, nil
}

// RegisterTask makes task available to Execute under name.
func (g *LocalGrid) RegisterTask(name string, task Closure) {
	g.mu.Lock()
	g.tasks[name] = task
	g.mu.Unlock()
}

func (g *LocalGrid) Tasks() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Sorted(maps.Keys(g.tasks))
}

func (g *LocalGrid) Compute(group string) (Compute, error) {
	nodes := g.nodes
	if group != "" {
		members, ok := g.groups[group]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
		}
		nodes = members
	}
	return &localCompute{grid: g, nodes: nodes}, nil
}

type localCompute struct {
	grid    *LocalGrid
	nodes   []string
	name    string
	timeout time.Duration
}

func (c *localCompute) WithName(name string) Compute {
	cp := *c
	cp.name = name
	return &cp
}

func (c *localCompute) WithTimeout(timeout time.Duration) Compute {
	cp := *c
	cp.timeout = timeout
	return &cp
}

// run starts n jobs, job i on node(i), and waits for all of them or for the
// projection timeout, whichever comes first. A panicking job fails the run
// with ErrJobPanicked.
func (c *localCompute) run(ctx context.Context, n int, node func(i int) string, job func(ctx context.Context, i int) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for i := range n {
		nodeCtx := context.WithValue(egCtx, nodeKey{}, node(i))
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %s on %s: %v", ErrJobPanicked, c.label(), node(i), r)
				}
			}()
			return job(nodeCtx, i)
		})
	}

	done := make(chan error, 1)
	go func() { done <- eg.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			c.grid.logger.Debug("compute job failed", "name", c.name, "error", err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %s", ErrTimeout, c.label(), c.timeout)
		}
		return ctx.Err()
	}
}

func (c *localCompute) label() string {
	if c.name == "" {
		return "job"
	}
	return c.name
}

// roundRobin spreads jobs over the projection's nodes.
func (c *localCompute) roundRobin(i int) string { return c.nodes[i%len(c.nodes)] }

func (c *localCompute) Call(ctx context.Context, jobs []Callable) ([]any, error) {
	results := make([]any, len(jobs))
	err := c.run(ctx, len(jobs), c.roundRobin, func(ctx context.Context, i int) error {
		r, err := jobs[i](ctx)
		results[i] = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *localCompute) Broadcast(ctx context.Context, job Closure, arg any) ([]any, error) {
	results := make([]any, len(c.nodes))
	err := c.run(ctx, len(c.nodes), c.roundRobin, func(ctx context.Context, i int) error {
		r, err := job(ctx, arg)
		results[i] = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *localCompute) Apply(ctx context.Context, cl Closure, args []any) ([]any, error) {
	results := make([]any, len(args))
	err := c.run(ctx, len(args), c.roundRobin, func(ctx context.Context, i int) error {
		r, err := cl(ctx, args[i])
		results[i] = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *localCompute) Execute(ctx context.Context, name string, arg any) (any, error) {
	c.grid.mu.RLock()
	task, ok := c.grid.tasks[name]
	c.grid.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	var result any
	err := c.run(ctx, 1, c.roundRobin, func(ctx context.Context, _ int) error {
		r, err := task(ctx, arg)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *localCompute) Run(ctx context.Context, jobs []Runnable) error {
	return c.run(ctx, len(jobs), c.roundRobin, func(ctx context.Context, i int) error {
		return jobs[i](ctx)
	})
}

// owner maps an affinity key to a stable node of the projection.
func (c *localCompute) owner(cache string, key any) func(int) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s/%v", cache, key)
	node := c.nodes[int(h.Sum32()%uint32(len(c.nodes)))]
	return func(int) string { return node }
}

func (c *localCompute) AffinityCall(ctx context.Context, cache string, key any, job Callable) (any, error) {
	var result any
	err := c.run(ctx, 1, c.owner(cache, key), func(ctx context.Context, _ int) error {
		r, err := job(ctx)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *localCompute) AffinityRun(ctx context.Context, cache string, key any, job Runnable) error {
	return c.run(ctx, 1, c.owner(cache, key), func(ctx context.Context, _ int) error {
		return job(ctx)
	})
}
