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

// Package compute is a producer-only component that submits jobs carried by
// messages to a compute grid.
//
//	compute:<endpointId>?executionType=CALL&clusterGroup=workers&timeoutMillis=500
//
// The execution type is fixed per endpoint. The message body carries the
// job; the headers below carry its parameters.
package compute

import (
	"fmt"
	"strings"
)

const Scheme = "compute"

const (
	HeaderParams            = "ComputeParams"
	HeaderReducer           = "ComputeReducer"
	HeaderTaskName          = "ComputeTaskName"
	HeaderAffinityCacheName = "ComputeAffinityCacheName"
	HeaderAffinityKey       = "ComputeAffinityKey"
)

type ExecutionType string

const (
	ExecutionCall         ExecutionType = "CALL"
	ExecutionBroadcast    ExecutionType = "BROADCAST"
	ExecutionApply        ExecutionType = "APPLY"
	ExecutionExecute      ExecutionType = "EXECUTE"
	ExecutionRun          ExecutionType = "RUN"
	ExecutionAffinityCall ExecutionType = "AFFINITY_CALL"
	ExecutionAffinityRun  ExecutionType = "AFFINITY_RUN"
)

var executionTypes = []ExecutionType{
	ExecutionCall,
	ExecutionBroadcast,
	ExecutionApply,
	ExecutionExecute,
	ExecutionRun,
	ExecutionAffinityCall,
	ExecutionAffinityRun,
}

func ParseExecutionType(s string) (ExecutionType, error) {
	for _, t := range executionTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown execution type %q", s)
}
