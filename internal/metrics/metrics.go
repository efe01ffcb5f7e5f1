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

// Package metrics holds the Prometheus collectors of the connector engine.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "connector"

type Config struct {
	Listen string `yaml:"listen"`
}

var (
	// Outcomes: "success", "config_error", "backend_error", "error".
	ProducerExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "producer_exchanges_total",
			Help:      "Messages processed by producers, by scheme and outcome.",
		},
		[]string{"scheme", "outcome"},
	)

	ProducerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "producer_duration_seconds",
			Help:      "Time spent in Producer.Process, including the backend call.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"scheme"},
	)

	// Outcomes: "delivered", "rejected".
	ConsumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_messages_total",
			Help:      "Messages handed to sinks by consumers, by scheme and outcome.",
		},
		[]string{"scheme", "outcome"},
	)

	// 1 when the endpoint connected, 0 when connecting failed.
	EndpointUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoint_up",
			Help:      "Indicates if an endpoint holding a backend connection is connected.",
		},
		[]string{"endpoint"},
	)
)

func ObserveProducer(scheme, outcome string, elapsed time.Duration) {
	ProducerExchanges.WithLabelValues(scheme, outcome).Inc()
	ProducerDuration.WithLabelValues(scheme).Observe(elapsed.Seconds())
}

func ObserveConsumer(scheme string, err error) {
	outcome := "delivered"
	if err != nil {
		outcome = "rejected"
	}
	ConsumerMessages.WithLabelValues(scheme, outcome).Inc()
}

func SetEndpointUp(uri string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	EndpointUp.WithLabelValues(uri).Set(v)
}

// Serve exposes /metrics on cfg.Listen until ctx is cancelled. An empty
// listen address disables the server.
func Serve(ctx context.Context, cfg Config, logger *slog.Logger) {
	if cfg.Listen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.Listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics server listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
}
