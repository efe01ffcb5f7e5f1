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

	"github.com/pemistahl/lingua-go"
)

type DetectorConfig struct {
	// Languages lists the codes the detector chooses from.
	Languages           []string `yaml:"languages"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
}

// DetectingClient resolves an Auto source language locally before handing
// the request to the next client.
type DetectingClient struct {
	next      Client
	detector  lingua.LanguageDetector
	threshold float64
	logger    *slog.Logger
}

func NewDetectingClient(next Client, cfg DetectorConfig, logger *slog.Logger) (*DetectingClient, error) {
	all := make(map[string]lingua.Language)
	for _, l := range lingua.AllLanguages() {
		all[strings.ToLower(l.IsoCode639_1().String())] = l
	}

	var langs []lingua.Language
	for _, code := range cfg.Languages {
		l, ok := all[strings.ToLower(code)]
		if !ok {
			return nil, fmt.Errorf("unsupported detect language: %s", code)
		}
		langs = append(langs, l)
	}
	if len(langs) < 2 {
		return nil, fmt.Errorf("at least two detect languages are required, got %d", len(langs))
	}

	return &DetectingClient{
		next:      next,
		detector:  lingua.NewLanguageDetectorBuilder().FromLanguages(langs...).Build(),
		threshold: cfg.ConfidenceThreshold,
		logger:    logger,
	}, nil
}

// Detect returns the most likely language of text.
func (c *DetectingClient) Detect(text string) (Language, float64, error) {
	code := ""
	confidence := 0.0
	for _, cv := range c.detector.ComputeLanguageConfidenceValues(text) {
		if cv.Value() > confidence {
			code = strings.ToLower(cv.Language().IsoCode639_1().String())
			confidence = cv.Value()
		}
	}
	if code == "" {
		return "", 0, fmt.Errorf("could not detect language")
	}
	if confidence < c.threshold {
		return "", confidence, fmt.Errorf("detected language %s below confidence threshold: %.2f < %.2f", code, confidence, c.threshold)
	}
	l, err := ParseLanguage(code)
	if err != nil {
		return "", confidence, err
	}
	return l, confidence, nil
}

func (c *DetectingClient) TranslateText(ctx context.Context, req *TranslateTextRequest) (*TranslateTextResponse, error) {
	if req.SourceLanguage != Auto {
		return c.next.TranslateText(ctx, req)
	}

	lang, confidence, err := c.Detect(req.Text)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("detected source language", "language", lang, "confidence", confidence)

	resolved := *req
	resolved.SourceLanguage = lang
	resp, err := c.next.TranslateText(ctx, &resolved)
	if err != nil {
		return nil, err
	}
	if resp.SourceLanguage == "" || resp.SourceLanguage == Auto {
		resp.SourceLanguage = lang
	}
	return resp, nil
}
