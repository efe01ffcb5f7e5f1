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
	"testing"
)

func TestDetectingClientResolvesAuto(t *testing.T) {
	next := &mockClient{}
	c, err := NewDetectingClient(next, DetectorConfig{Languages: []string{"it", "en"}}, testLogger())
	if err != nil {
		t.Fatalf("new detecting client: %v", err)
	}

	resp, err := c.TranslateText(context.Background(), &TranslateTextRequest{
		SourceLanguage: Auto,
		TargetLanguage: "en",
		Text:           "Buongiorno a tutti, oggi il tempo è molto bello e andiamo al mare insieme.",
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if next.requests[0].SourceLanguage != "it" {
		t.Fatalf("expected detected it, got %s", next.requests[0].SourceLanguage)
	}
	if resp.SourceLanguage != "it" {
		t.Fatalf("expected response source it, got %s", resp.SourceLanguage)
	}
}

func TestDetectingClientPassesExplicitSource(t *testing.T) {
	next := &mockClient{}
	c, err := NewDetectingClient(next, DetectorConfig{Languages: []string{"IT", "EN"}}, testLogger())
	if err != nil {
		t.Fatalf("new detecting client: %v", err)
	}
	if _, err := c.TranslateText(context.Background(), &TranslateTextRequest{
		SourceLanguage: "it", TargetLanguage: "en", Text: "ciao",
	}); err != nil {
		t.Fatalf("translate: %v", err)
	}
	if next.requests[0].SourceLanguage != "it" {
		t.Fatal("explicit source must not be changed")
	}
}

func TestDetectingClientThreshold(t *testing.T) {
	c, err := NewDetectingClient(&mockClient{}, DetectorConfig{
		Languages:           []string{"it", "en"},
		ConfidenceThreshold: 1.1,
	}, testLogger())
	if err != nil {
		t.Fatalf("new detecting client: %v", err)
	}
	if _, _, err := c.Detect("Hello everyone, the weather is lovely today."); err == nil {
		t.Fatal("expected threshold error")
	}
}

func TestNewDetectingClientErrors(t *testing.T) {
	if _, err := NewDetectingClient(&mockClient{}, DetectorConfig{Languages: []string{"it", "zz"}}, testLogger()); err == nil {
		t.Fatal("expected unsupported language error")
	}
	if _, err := NewDetectingClient(&mockClient{}, DetectorConfig{Languages: []string{"it"}}, testLogger()); err == nil {
		t.Fatal("expected error for single language")
	}
}
