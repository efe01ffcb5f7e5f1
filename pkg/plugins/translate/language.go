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
	"fmt"
	"strings"
)

// Language is a language code such as "it". Auto asks the service to detect
// the source language.
type Language string

const Auto Language = "auto"

var languageNames = map[Language]string{
	"af": "AFRIKAANS",
	"sq": "ALBANIAN",
	"ar": "ARABIC",
	"hy": "ARMENIAN",
	"bn": "BENGALI",
	"bg": "BULGARIAN",
	"ca": "CATALAN",
	"zh": "CHINESE_SIMPLIFIED",
	"hr": "CROATIAN",
	"cs": "CZECH",
	"da": "DANISH",
	"nl": "DUTCH",
	"en": "ENGLISH",
	"et": "ESTONIAN",
	"fa": "FARSI",
	"fi": "FINNISH",
	"fr": "FRENCH",
	"ka": "GEORGIAN",
	"de": "GERMAN",
	"el": "GREEK",
	"he": "HEBREW",
	"hi": "HINDI",
	"hu": "HUNGARIAN",
	"id": "INDONESIAN",
	"ga": "IRISH",
	"it": "ITALIAN",
	"ja": "JAPANESE",
	"ko": "KOREAN",
	"lv": "LATVIAN",
	"lt": "LITHUANIAN",
	"ms": "MALAY",
	"no": "NORWEGIAN",
	"pl": "POLISH",
	"pt": "PORTUGUESE",
	"ro": "ROMANIAN",
	"ru": "RUSSIAN",
	"sr": "SERBIAN",
	"si": "SINHALA",
	"sk": "SLOVAK",
	"sl": "SLOVENIAN",
	"es": "SPANISH",
	"sv": "SWEDISH",
	"ta": "TAMIL",
	"th": "THAI",
	"tr": "TURKISH",
	"uk": "UKRAINIAN",
	"ur": "URDU",
	"vi": "VIETNAMESE",
	"cy": "WELSH",
	Auto: "AUTO",
}

var languagesByName = func() map[string]Language {
	m := make(map[string]Language, len(languageNames))
	for code, name := range languageNames {
		m[name] = code
	}
	return m
}()

// ParseLanguage accepts an enum name ("ITALIAN") or a code ("it"), in any
// case.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	if l, ok := languagesByName[strings.ToUpper(s)]; ok {
		return l, nil
	}
	if l := Language(strings.ToLower(s)); languageNames[l] != "" {
		return l, nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

func (l Language) String() string { return string(l) }

// Name returns the enum name of l, or the code when l is unknown.
func (l Language) Name() string {
	if n, ok := languageNames[l]; ok {
		return n
	}
	return string(l)
}
