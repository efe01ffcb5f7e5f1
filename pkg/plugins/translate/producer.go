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
	"log/slog"
	"strings"

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

	out := resp.TranslateText
	msg.Body = out.TranslatedText
	if req.TranslateText.SourceLanguage == Auto && out.SourceLanguage != "" && out.SourceLanguage != Auto {
		msg.SetHeader(HeaderResolvedSourceLanguage, out.SourceLanguage)
	}
	p.logger.Debug("translated message",
		"message_id", msg.ID,
		"source", out.SourceLanguage,
		"target", out.TargetLanguage,
	)
	return nil
}

func (p *Producer) buildRequest(msg *core.Message) (Request, error) {
	req := Request{Operation: p.config.Operation}
	switch p.config.Operation {
	case OperationTranslateText:
		tr, err := p.translateTextRequest(msg)
		if err != nil {
			return Request{}, err
		}
		req.TranslateText = tr
		return req, nil
	default:
		return Request{}, core.ConfigErrorf("unsupported operation %q", p.config.Operation)
	}
}

// translateTextRequest uses a structured body verbatim in POJO mode and
// otherwise assembles the request from headers, then endpoint defaults.
func (p *Producer) translateTextRequest(msg *core.Message) (*TranslateTextRequest, error) {
	if p.config.PojoRequest {
		switch b := msg.Body.(type) {
		case *TranslateTextRequest:
			if b != nil {
				return pojoRequest(*b)
			}
		case TranslateTextRequest:
			return pojoRequest(b)
		}
	}

	text, err := bodyText(msg.Body)
	if err != nil {
		return nil, err
	}
	req := &TranslateTextRequest{Text: text}

	if p.config.AutodetectSourceLanguage {
		req.SourceLanguage = Auto
	} else if req.SourceLanguage, err = headerLanguage(msg, HeaderSourceLanguage, p.config.SourceLanguage); err != nil {
		return nil, err
	}
	if req.TargetLanguage, err = headerLanguage(msg, HeaderTargetLanguage, p.config.TargetLanguage); err != nil {
		return nil, err
	}
	if req.TerminologyNames, err = terminologyNames(msg); err != nil {
		return nil, err
	}
	return req, validate(req)
}

// pojoRequest normalizes the languages of a structured request, given as
// codes or enum names, on a copy of it.
func pojoRequest(req TranslateTextRequest) (*TranslateTextRequest, error) {
	for _, l := range []*Language{&req.SourceLanguage, &req.TargetLanguage} {
		if *l == "" {
			continue
		}
		parsed, err := ParseLanguage(string(*l))
		if err != nil {
			return nil, core.ConfigErrorf("request body: %v", err)
		}
		*l = parsed
	}
	return &req, validate(&req)
}

func validate(req *TranslateTextRequest) error {
	switch {
	case req.SourceLanguage == "":
		return core.ConfigErrorf("source language is required: set %s or sourceLanguage", HeaderSourceLanguage)
	case req.TargetLanguage == "":
		return core.ConfigErrorf("target language is required: set %s or targetLanguage", HeaderTargetLanguage)
	case req.TargetLanguage == Auto:
		return core.ConfigErrorf("target language cannot be %s", Auto)
	case req.Text == "":
		return core.ConfigErrorf("text to translate is required")
	}
	return nil
}

func headerLanguage(msg *core.Message, name string, fallback Language) (Language, error) {
	v, ok := msg.HeaderString(name)
	if !ok {
		return fallback, nil
	}
	l, err := ParseLanguage(v)
	if err != nil {
		return "", core.ConfigErrorf("header %s: %v", name, err)
	}
	return l, nil
}

func terminologyNames(msg *core.Message) ([]string, error) {
	v, ok := msg.Header(HeaderTerminologyNames)
	if !ok {
		return nil, nil
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case string:
		var names []string
		for _, n := range strings.Split(t, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		return names, nil
	default:
		return nil, core.ConfigErrorf("header %s: unsupported type %T", HeaderTerminologyNames, v)
	}
}

func bodyText(body any) (string, error) {
	switch b := body.(type) {
	case nil:
		return "", nil
	case string:
		return b, nil
	case []byte:
		return string(b), nil
	case fmt.Stringer:
		return b.String(), nil
	default:
		return "", core.ConfigErrorf("body of type %T is not text", body)
	}
}
