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

// Package telemetry sets up OpenTelemetry tracing for the connector engine.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
)

const instrumentationName = "connector-engine"

type Config struct {
	// Exporter is "none" (default) or "stdout".
	Exporter string `yaml:"exporter"`
}

// Setup installs the global tracer provider for cfg. The returned function
// flushes and shuts the provider down.
func Setup(cfg Config) (func(context.Context) error, error) {
	switch cfg.Exporter {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(time.Second)))
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	default:
		return nil, core.ConfigErrorf("unknown tracing exporter %q", cfg.Exporter)
	}
}

// TracedProducer starts one span per Process call.
type TracedProducer struct {
	next   core.Producer
	uri    string
	scheme string
	tracer trace.Tracer
}

// Trace wraps p using tp, or the global provider when tp is nil.
func Trace(p core.Producer, tp trace.TracerProvider, scheme, uri string) *TracedProducer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracedProducer{
		next:   p,
		uri:    uri,
		scheme: scheme,
		tracer: tp.Tracer(instrumentationName),
	}
}

func (t *TracedProducer) Process(ctx context.Context, msg *core.Message) error {
	ctx, span := t.tracer.Start(ctx, t.scheme+"/process",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("connector.scheme", t.scheme),
			attribute.String("connector.endpoint", t.uri),
			attribute.String("connector.message_id", msg.ID),
		),
	)
	defer span.End()

	err := t.next.Process(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
