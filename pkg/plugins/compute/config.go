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
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

type Config struct {
	EndpointID    string
	ExecutionType ExecutionType
	// TaskName is the default task for EXECUTE. ComputeTaskName overrides it
	// per message.
	TaskName     string
	ComputeName  string
	Timeout      time.Duration
	HasTimeout   bool
	ClusterGroup string
}

var (
	optExecutionType = endpoint.Option{Name: "executionType", Required: true}
	optTaskName      = endpoint.Option{Name: "taskName"}
	optComputeName   = endpoint.Option{Name: "computeName"}
	optTimeoutMillis = endpoint.Option{Name: "timeoutMillis"}
	optClusterGroup  = endpoint.Option{Name: "clusterGroup"}
)

// ParseConfig binds the options of a compute address. executionType is
// required.
func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{EndpointID: d.Path()}
	b := endpoint.NewBinder(d)
	b.Func(optExecutionType, func(s string) error {
		t, err := ParseExecutionType(s)
		cfg.ExecutionType = t
		return err
	})
	b.String(optTaskName, &cfg.TaskName)
	b.String(optComputeName, &cfg.ComputeName)
	b.String(optClusterGroup, &cfg.ClusterGroup)

	var millis int64
	if b.Int64(optTimeoutMillis, &millis) {
		b.Check(millis >= 0, "option timeoutMillis must be >= 0, got %d", millis)
		cfg.Timeout = time.Duration(millis) * time.Millisecond
		cfg.HasTimeout = true
	}

	b.Check(cfg.EndpointID != "", "endpoint id is required")
	return cfg, b.Finish()
}
