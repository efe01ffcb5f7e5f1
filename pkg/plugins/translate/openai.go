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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

const defaultSystemPrompt = "You are a translation engine. Reply with the translated text only, " +
	"without quotes, notes or explanations."

type RateLimitConfig struct {
	RefillTPS  float64 `yaml:"refill_tps"`
	BucketSize int     `yaml:"bucket_size"`
}

type OpenAIConfig struct {
	Endpoint     string          `yaml:"endpoint"`
	Token        string          `yaml:"token"`
	Model        string          `yaml:"model"`
	SystemPrompt string          `yaml:"system_prompt"`
	Timeout      time.Duration   `yaml:"timeout"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// OpenAIClient translates through an OpenAI compatible chat completion API.
type OpenAIClient struct {
	client       openai.Client
	model        string
	systemPrompt string
	timeout      time.Duration
	limiter      *rate.Limiter
	logger       *slog.Logger
}

func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("no openai model configured")
	}

	opts := []option.RequestOption{}
	if cfg.Token == "" {
		logger.Warn("no API token configured, using empty")
	} else {
		opts = append(opts, option.WithAPIKey(cfg.Token))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}

	c := &OpenAIClient{
		client:       openai.NewClient(opts...),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		timeout:      cfg.Timeout,
		logger:       logger,
	}
	if c.systemPrompt == "" {
		c.systemPrompt = defaultSystemPrompt
	}
	if cfg.RateLimit.RefillTPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RefillTPS), max(cfg.RateLimit.BucketSize, 1))
	}

	logger.Info("initialized openai translation client",
		"model", c.model,
		"endpoint", cfg.Endpoint,
		"timeout", c.timeout,
	)
	return c, nil
}

func (c *OpenAIClient) TranslateText(ctx context.Context, req *TranslateTextRequest) (*TranslateTextResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(prompt(req)),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("no choice found in response")
	}

	c.logger.Debug("translation completed",
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
	)
	return &TranslateTextResponse{
		TranslatedText: strings.TrimSpace(completion.Choices[0].Message.Content),
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
	}, nil
}

func prompt(req *TranslateTextRequest) string {
	var b strings.Builder
	if req.SourceLanguage == Auto {
		fmt.Fprintf(&b, "Translate the following text to %s.", req.TargetLanguage.Name())
	} else {
		fmt.Fprintf(&b, "Translate the following text from %s to %s.", req.SourceLanguage.Name(), req.TargetLanguage.Name())
	}
	if len(req.TerminologyNames) > 0 {
		fmt.Fprintf(&b, " Keep these terms untranslated: %s.", strings.Join(req.TerminologyNames, ", "))
	}
	b.WriteString("\n\n")
	b.WriteString(req.Text)
	return b.String()
}
