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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/internal/routing"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/internal/runner"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/internal/telemetry"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/amqp"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/compute"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/gcs"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/httppost"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/kafka"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/mqtt"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/mqtt5"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/rabbitmq"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/redis"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/solace"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/telegram"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/translate"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(configPath, cfg, logger); err != nil {
		logger.Error("connector engine failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(cfg.Tracing)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := plugins.NewRegistry(logger.With("component", "registry"))
	if err := registerComponents(ctx, cfg, registry, logger); err != nil {
		return err
	}

	msgLog := logging.NewMessageLogger(logger.With("component", "message"))
	mgr := runner.NewManager(routing.NewTable(), registry, logger.With("component", "runner"), msgLog)
	if err := mgr.Reload(ctx, cfg.Routes); err != nil {
		logger.Error("some routes failed to start", "error", err)
	}

	metrics.Serve(ctx, cfg.Metrics, logger.With("component", "metrics"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		config.NewWatcher(configPath, mgr, logger.With("component", "watcher")).Watch(gctx)
		return nil
	})
	g.Go(func() error {
		// Down endpoints and the routes that could not run on them are
		// retried until shutdown.
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := registry.ConnectEndpoints(gctx); n > 0 {
					logger.Info("endpoints reconnected", "count", n)
				}
				mgr.Retry(gctx)
			}
		}
	})

	logger.Info("connector engine started",
		"config", configPath,
		"schemes", registry.Schemes(),
		"routes", mgr.ActiveCount(),
	)
	<-ctx.Done()
	logger.Info("shutting down connector engine")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mgr.StopAll(shutdownCtx)
	registry.StopAll(shutdownCtx)
	g.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown failed", "error", err)
	}

	logger.Info("connector engine stopped")
	return nil
}

func registerComponents(ctx context.Context, cfg *config.Config, reg *plugins.Registry, logger *slog.Logger) error {
	reg.Register(kafka.New(logger))
	reg.Register(rabbitmq.New(logger))
	reg.Register(amqp.New(logger))
	reg.Register(mqtt.New(logger))
	reg.Register(mqtt5.New(logger))
	reg.Register(solace.New(logger))
	reg.Register(redis.New(logger))
	reg.Register(telegram.New(logger))
	reg.Register(ws.New(logger))
	reg.Register(httppost.New(logger))

	grid, err := compute.NewLocalGrid(cfg.Compute, logger.With("component", "grid"))
	if err != nil {
		return fmt.Errorf("compute grid: %w", err)
	}
	grid.RegisterTask("echo", func(ctx context.Context, arg any) (any, error) { return arg, nil })
	reg.Register(compute.New(grid, logger))

	if cfg.Translate.Enabled() {
		oa, err := translate.NewOpenAIClient(cfg.Translate.OpenAI, logger.With("component", "openai"))
		if err != nil {
			return fmt.Errorf("translate client: %w", err)
		}
		var client translate.Client = oa
		if cfg.Translate.DetectionEnabled() {
			dc, err := translate.NewDetectingClient(oa, cfg.Translate.Detector, logger.With("component", "detector"))
			if err != nil {
				return fmt.Errorf("language detector: %w", err)
			}
			client = dc
		}
		reg.Register(translate.New(client, logger))
	}

	if cfg.GCS.Enabled {
		sc, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client: %w", err)
		}
		reg.Register(gcs.New(gcs.NewClientStorage(sc), logger))
	}
	return nil
}
