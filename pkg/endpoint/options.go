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

package endpoint

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
)

// Option describes one endpoint option: its name, whether it must be
// supplied, and the value used when it is absent.
type Option struct {
	Name     string
	Required bool
	Default  string
}

// Binder copies descriptor options into typed fields. Every setter records
// the option as known; Finish rejects options nobody asked for, so a typo in
// an address fails instead of being ignored.
//
//	b := endpoint.NewBinder(desc)
//	b.String(endpoint.Option{Name: "taskName"}, &cfg.TaskName)
//	b.Int64(endpoint.Option{Name: "timeoutMillis"}, &cfg.TimeoutMillis)
//	if err := b.Finish(); err != nil { ... }
type Binder struct {
	desc  *Descriptor
	known map[string]struct{}
	errs  []error
}

func NewBinder(d *Descriptor) *Binder {
	return &Binder{desc: d, known: make(map[string]struct{})}
}

// lookup returns the raw value for o, falling back to its default. ok is
// false when neither the descriptor nor the default supplies a value.
func (b *Binder) lookup(o Option) (value string, ok bool) {
	b.known[o.Name] = struct{}{}
	if v, present := b.desc.options[o.Name]; present {
		return v, true
	}
	if o.Required {
		b.errs = append(b.errs, fmt.Errorf("option %s is required", o.Name))
		return "", false
	}
	if o.Default != "" {
		return o.Default, true
	}
	return "", false
}

func (b *Binder) fail(o Option, value string, err error) {
	b.errs = append(b.errs, fmt.Errorf("option %s=%q: %w", o.Name, value, err))
}

// Present reports whether the descriptor itself carries the option.
func (b *Binder) Present(name string) bool {
	_, ok := b.desc.options[name]
	return ok
}

// The setters below report whether a value was assigned.

func (b *Binder) String(o Option, dst *string) bool {
	v, ok := b.lookup(o)
	if ok {
		*dst = v
	}
	return ok
}

func (b *Binder) Bool(o Option, dst *bool) bool {
	v, ok := b.lookup(o)
	if !ok {
		return false
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		b.fail(o, v, err)
		return false
	}
	*dst = parsed
	return true
}

func (b *Binder) Int(o Option, dst *int) bool {
	v, ok := b.lookup(o)
	if !ok {
		return false
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		b.fail(o, v, err)
		return false
	}
	*dst = parsed
	return true
}

func (b *Binder) Int64(o Option, dst *int64) bool {
	v, ok := b.lookup(o)
	if !ok {
		return false
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		b.fail(o, v, err)
		return false
	}
	*dst = parsed
	return true
}

// Duration accepts Go duration syntax ("500ms", "2s") or a bare integer
// number of milliseconds.
func (b *Binder) Duration(o Option, dst *time.Duration) bool {
	v, ok := b.lookup(o)
	if !ok {
		return false
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return true
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		b.fail(o, v, err)
		return false
	}
	*dst = parsed
	return true
}

// Strings splits a comma separated list, dropping empty items.
func (b *Binder) Strings(o Option, dst *[]string) bool {
	v, ok := b.lookup(o)
	if !ok {
		return false
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
	return true
}

// Func hands the raw value to parse, typically an enum parser.
func (b *Binder) Func(o Option, parse func(string) error) bool {
	v, ok := b.lookup(o)
	if !ok {
		return false
	}
	if err := parse(v); err != nil {
		b.fail(o, v, err)
		return false
	}
	return true
}

// Check records a validation failure that spans several options.
func (b *Binder) Check(ok bool, format string, args ...any) {
	if !ok {
		b.errs = append(b.errs, fmt.Errorf(format, args...))
	}
}

// Finish reports every problem found so far plus any unknown option. The
// error wraps core.ErrConfig.
func (b *Binder) Finish() error {
	for _, name := range slices.Sorted(maps.Keys(b.desc.options)) {
		if _, ok := b.known[name]; !ok {
			b.errs = append(b.errs, fmt.Errorf("unknown option %s", name))
		}
	}
	if len(b.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", core.ErrConfig, b.desc.URI(), errors.Join(b.errs...))
}
