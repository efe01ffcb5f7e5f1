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
	"log/slog"
	"reflect"
	"slices"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
)

type Producer struct {
	config  Config
	backend *Backend
	logger  *slog.Logger
}

func (p *Producer) Process(ctx context.Context, msg *core.Message) error {
	req, err := p.buildRequest(msg)
	if err != nil {
		return err
	}

	resp, err := p.backend.Invoke(ctx, req)
	if err != nil {
		return err
	}

	msg.Body = resp.Result
	p.logger.Debug("compute job completed",
		"message_id", msg.ID,
		"execution_type", req.ExecutionType,
	)
	return nil
}

func (p *Producer) buildRequest(msg *core.Message) (Request, error) {
	req := Request{ExecutionType: p.config.ExecutionType}
	body := msg.Body

	switch p.config.ExecutionType {
	case ExecutionCall:
		if c, ok := asCallable(body); ok {
			req.Callables, req.Single = []Callable{c}, true
		} else if cs, ok := body.([]Callable); ok {
			if i := slices.IndexFunc(cs, func(c Callable) bool { return c == nil }); i >= 0 {
				return req, core.ConfigErrorf("%s: job %d of %d is nil", req.ExecutionType, i, len(cs))
			}
			req.Callables = cs
		} else {
			return req, payloadError(req.ExecutionType, body, "a Callable or []Callable")
		}
		err := withReducer(&req, msg)
		return req, err

	case ExecutionBroadcast:
		req.Params, _ = msg.Header(HeaderParams)
		if c, ok := asCallable(body); ok {
			req.Closure = func(ctx context.Context, _ any) (any, error) { return c(ctx) }
		} else if r, ok := asRunnable(body); ok {
			req.Closure = func(ctx context.Context, _ any) (any, error) { return nil, r(ctx) }
			req.NoResult = true
		} else if cl, ok := asClosure(body); ok {
			req.Closure = cl
		} else {
			return req, payloadError(req.ExecutionType, body, "a Callable, Runnable or Closure")
		}
		return req, nil

	case ExecutionApply:
		cl, ok := asClosure(body)
		if !ok {
			return req, payloadError(req.ExecutionType, body, "a Closure")
		}
		req.Closure = cl
		params, ok := msg.Header(HeaderParams)
		if !ok {
			return req, core.ConfigErrorf("%s requires the %s header", req.ExecutionType, HeaderParams)
		}
		req.Args, req.Single = applyArgs(params)
		err := withReducer(&req, msg)
		return req, err

	case ExecutionExecute:
		req.TaskName = p.config.TaskName
		if name, ok := msg.HeaderString(HeaderTaskName); ok {
			req.TaskName = name
		}
		if req.TaskName == "" {
			return req, core.ConfigErrorf("%s requires a task name: set %s or taskName", req.ExecutionType, HeaderTaskName)
		}
		if params, ok := msg.Header(HeaderParams); ok {
			req.Params = params
		} else {
			req.Params = body
		}
		return req, nil

	case ExecutionRun:
		if r, ok := asRunnable(body); ok {
			req.Runnables = []Runnable{r}
		} else if rs, ok := body.([]Runnable); ok {
			if i := slices.IndexFunc(rs, func(r Runnable) bool { return r == nil }); i >= 0 {
				return req, core.ConfigErrorf("%s: job %d of %d is nil", req.ExecutionType, i, len(rs))
			}
			req.Runnables = rs
		} else {
			return req, payloadError(req.ExecutionType, body, "a Runnable or []Runnable")
		}
		return req, nil

	case ExecutionAffinityCall:
		c, ok := asCallable(body)
		if !ok {
			return req, payloadError(req.ExecutionType, body, "a Callable")
		}
		req.Callables = []Callable{c}
		err := withAffinity(&req, msg)
		return req, err

	case ExecutionAffinityRun:
		r, ok := asRunnable(body)
		if !ok {
			return req, payloadError(req.ExecutionType, body, "a Runnable")
		}
		req.Runnables = []Runnable{r}
		err := withAffinity(&req, msg)
		return req, err

	default:
		return req, core.ConfigErrorf("unsupported execution type %q", p.config.ExecutionType)
	}
}

// applyArgs spreads a slice or array of parameters into one argument per
// call. Any other value, byte slices included, is a single argument.
func applyArgs(params any) ([]any, bool) {
	if args, ok := params.([]any); ok {
		return args, false
	}
	v := reflect.ValueOf(params)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		args := make([]any, v.Len())
		for i := range args {
			args[i] = v.Index(i).Interface()
		}
		return args, false
	}
	return []any{params}, true
}

func withReducer(req *Request, msg *core.Message) error {
	v, ok := msg.Header(HeaderReducer)
	if !ok {
		return nil
	}
	switch r := v.(type) {
	case Reducer:
		req.Reducer = r
	case func([]any) (any, error):
		req.Reducer = r
	default:
		return core.ConfigErrorf("header %s holds %T, not a Reducer", HeaderReducer, v)
	}
	return nil
}

func withAffinity(req *Request, msg *core.Message) error {
	cache, ok := msg.HeaderString(HeaderAffinityCacheName)
	if !ok {
		return core.ConfigErrorf("%s requires the %s header", req.ExecutionType, HeaderAffinityCacheName)
	}
	key, ok := msg.Header(HeaderAffinityKey)
	if !ok {
		return core.ConfigErrorf("%s requires the %s header", req.ExecutionType, HeaderAffinityKey)
	}
	req.CacheName, req.AffinityKey = cache, key
	return nil
}

func payloadError(t ExecutionType, body any, want string) error {
	return core.ConfigErrorf("%s expects %s in the body, got %T", t, want, body)
}

func asCallable(v any) (Callable, bool) {
	switch f := v.(type) {
	case Callable:
		return f, f != nil
	case func(context.Context) (any, error):
		return f, f != nil
	}
	return nil, false
}

func asRunnable(v any) (Runnable, bool) {
	switch f := v.(type) {
	case Runnable:
		return f, f != nil
	case func(context.Context) error:
		return f, f != nil
	}
	return nil, false
}

func asClosure(v any) (Closure, bool) {
	switch f := v.(type) {
	case Closure:
		return f, f != nil
	case func(context.Context, any) (any, error):
		return f, f != nil
	}
	return nil, false
}
