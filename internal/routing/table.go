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

package routing

import (
	"maps"
	"slices"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
)

// Table holds the configured routes keyed by name.
type Table struct {
	mu     sync.RWMutex
	routes map[string]core.Route
}

func NewTable() *Table {
	return &Table{routes: make(map[string]core.Route)}
}

func (t *Table) Add(route core.Route) {
	t.mu.Lock()
	t.routes[route.Name] = route
	t.mu.Unlock()
}

func (t *Table) Remove(name string) {
	t.mu.Lock()
	delete(t.routes, name)
	t.mu.Unlock()
}

func (t *Table) Lookup(name string) (core.Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.routes[name]
	return r, ok
}

func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.routes))
}

// ReplaceAll swaps the table contents for routes. It returns the previous
// routes that were dropped or redefined, and the new routes that were not
// present before with the same definition.
func (t *Table) ReplaceAll(routes []core.Route) (removed, added []core.Route) {
	next := make(map[string]core.Route, len(routes))
	for _, r := range routes {
		next[r.Name] = r
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range slices.Sorted(maps.Keys(t.routes)) {
		if n, ok := next[name]; !ok || n != t.routes[name] {
			removed = append(removed, t.routes[name])
		}
	}
	for _, name := range slices.Sorted(maps.Keys(next)) {
		if old, ok := t.routes[name]; !ok || old != next[name] {
			added = append(added, next[name])
		}
	}
	t.routes = next
	return removed, added
}
