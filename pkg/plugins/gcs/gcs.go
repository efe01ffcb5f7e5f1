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

// Package gcs is a producer-only component that stores message bodies as
// objects in a Google Cloud Storage bucket.
//
//	gcs:<bucket>?objectName=reports/latest.json&marshal=json
package gcs

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

const Scheme = "gcs"

const (
	HeaderBucket     = "GcsBucket"
	HeaderObjectName = "GcsObjectName"
)

// Storage writes objects. Implementations must be safe for concurrent use.
type Storage interface {
	Upload(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// ClientStorage is a Storage over a cloud.google.com/go/storage client.
type ClientStorage struct {
	client *storage.Client
}

func NewClientStorage(client *storage.Client) *ClientStorage {
	return &ClientStorage{client: client}
}

func (s *ClientStorage) Upload(ctx context.Context, bucket, object, contentType string, data []byte) error {
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

type Config struct {
	Bucket      string
	ObjectName  string
	ContentType string
	Format      codec.Format
}

func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{Bucket: d.Path()}
	b := endpoint.NewBinder(d)
	b.String(endpoint.Option{Name: "objectName"}, &cfg.ObjectName)
	b.String(endpoint.Option{Name: "contentType"}, &cfg.ContentType)
	codec.Bind(b, &cfg.Format)
	b.Check(cfg.Bucket != "", "bucket is required")
	if cfg.ContentType == "" {
		cfg.ContentType = cfg.Format.ContentType()
	}
	return cfg, b.Finish()
}

type Component struct {
	storage Storage
	logger  *slog.Logger
}

func New(s Storage, logger *slog.Logger) *Component {
	return &Component{storage: s, logger: logger}
}

func (c *Component) Scheme() string                  { return Scheme }
func (c *Component) Capabilities() core.Capabilities { return core.ProducerOnly }

func (c *Component) NewEndpoint(d *endpoint.Descriptor) (endpoint.Endpoint, error) {
	cfg, err := ParseConfig(d)
	if err != nil {
		return nil, err
	}
	return &Endpoint{desc: d, config: cfg, storage: c.storage, logger: c.logger.With("endpoint", d.URI())}, nil
}

type Endpoint struct {
	desc    *endpoint.Descriptor
	config  Config
	storage Storage
	logger  *slog.Logger
}

func (e *Endpoint) Descriptor() *endpoint.Descriptor { return e.desc }

func (e *Endpoint) CreateProducer() (core.Producer, error) {
	return core.ProducerFunc(e.upload), nil
}

func (e *Endpoint) CreateConsumer(core.Sink) (core.Consumer, error) {
	return nil, endpoint.ConsumerNotSupported(e.desc)
}

// upload stores the encoded body under the GcsObjectName header, the
// objectName option or the message ID, in that order. The body is left
// unchanged.
func (e *Endpoint) upload(ctx context.Context, msg *core.Message) error {
	object := e.config.ObjectName
	if name, ok := msg.HeaderString(HeaderObjectName); ok {
		object = name
	}
	if object == "" {
		object = msg.ID
	}

	data, err := codec.Encode(e.config.Format, msg.Body)
	if err != nil {
		return core.ConfigErrorf("encode body: %v", err)
	}
	if err := e.storage.Upload(ctx, e.config.Bucket, object, e.config.ContentType, data); err != nil {
		return core.NewBackendError(e.desc.URI(), "upload", err)
	}

	msg.SetHeader(HeaderBucket, e.config.Bucket)
	msg.SetHeader(HeaderObjectName, object)
	e.logger.Debug("stored object", "message_id", msg.ID, "object", object, "bytes", len(data))
	return nil
}
