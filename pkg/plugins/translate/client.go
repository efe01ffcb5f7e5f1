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

package translate

import (
	"context"
	"fmt"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
)

type TranslateTextRequest struct {
	SourceLanguage   Language
	TargetLanguage   Language
	Text             string
	TerminologyNames []string
}

type TranslateTextResponse struct {
	TranslatedText string
	// SourceLanguage is the language the service translated from. It differs
	// from the request when the request asked for Auto.
	SourceLanguage Language
	TargetLanguage Language
}

// Client is a translation service. Implementations must be safe for
// concurrent use.
type Client interface {
	TranslateText(ctx context.Context, req *TranslateTextRequest) (*TranslateTextResponse, error)
}

// Request is one backend call, tagged by its operation.
type Request struct {
	Operation     Operation
	TranslateText *TranslateTextRequest
}

type Response struct {
	TranslateText *TranslateTextResponse
}

// Backend adapts a Client to the requests built by the producer. It adds no
// retry; failures come back as *core.BackendError around the client error.
type Backend struct {
	client Client
	uri    string
}

func NewBackend(client Client, uri string) *Backend {
	return &Backend{client: client, uri: uri}
}

func (b *Backend) Invoke(ctx context.Context, req Request) (Response, error) {
	switch req.Operation {
	case OperationTranslateText:
		resp, err := b.client.TranslateText(ctx, req.TranslateText)
		if err != nil {
			return Response{}, core.NewBackendError(b.uri, string(req.Operation), err)
		}
		if resp == nil {
			return Response{}, core.NewBackendError(b.uri, string(req.Operation), fmt.Errorf("empty response"))
		}
		return Response{TranslateText: resp}, nil
	default:
		return Response{}, core.ConfigErrorf("%s: unsupported operation %q", b.uri, req.Operation)
	}
}
