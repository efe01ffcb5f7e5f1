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

// Package translate is a producer-only component that sends message text to
// a translation service and replaces the body with the translation.
//
//	translate:<name>?operation=translateText&sourceLanguage=it&targetLanguage=en
//
// Per-message headers override the endpoint's language defaults. With
// pojoRequest=true a body holding a TranslateTextRequest is sent as is.
package translate

import "fmt"

const Scheme = "translate"

// Message headers read and written by the producer.
const (
	HeaderSourceLanguage         = "TranslateSourceLanguage"
	HeaderTargetLanguage         = "TranslateTargetLanguage"
	HeaderTerminologyNames       = "TranslateTerminologyNames"
	HeaderResolvedSourceLanguage = "TranslateResolvedSourceLanguage"
)

type Operation string

const OperationTranslateText Operation = "translateText"

func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OperationTranslateText:
		return OperationTranslateText, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}
