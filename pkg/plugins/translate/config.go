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
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/endpoint"
)

type Config struct {
	Name                     string
	Operation                Operation
	SourceLanguage           Language
	TargetLanguage           Language
	AutodetectSourceLanguage bool
	PojoRequest              bool
}

var (
	optOperation      = endpoint.Option{Name: "operation", Required: true}
	optSourceLanguage = endpoint.Option{Name: "sourceLanguage"}
	optTargetLanguage = endpoint.Option{Name: "targetLanguage"}
	optAutodetect     = endpoint.Option{Name: "autodetectSourceLanguage", Default: "false"}
	optPojoRequest    = endpoint.Option{Name: "pojoRequest", Default: "false"}
)

func languageParser(dst *Language) func(string) error {
	return func(s string) error {
		l, err := ParseLanguage(s)
		if err != nil {
			return err
		}
		*dst = l
		return nil
	}
}

// ParseConfig binds the options of a translate address.
func ParseConfig(d *endpoint.Descriptor) (Config, error) {
	cfg := Config{Name: d.Path()}
	b := endpoint.NewBinder(d)
	b.Func(optOperation, func(s string) error {
		op, err := ParseOperation(s)
		cfg.Operation = op
		return err
	})
	b.Func(optSourceLanguage, languageParser(&cfg.SourceLanguage))
	b.Func(optTargetLanguage, languageParser(&cfg.TargetLanguage))
	b.Bool(optAutodetect, &cfg.AutodetectSourceLanguage)
	b.Bool(optPojoRequest, &cfg.PojoRequest)

	b.Check(cfg.Name != "", "endpoint name is required")
	b.Check(cfg.TargetLanguage != Auto, "targetLanguage cannot be %s", Auto)
	return cfg, b.Finish()
}
