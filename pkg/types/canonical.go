// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CanonicalJSON renders a value with sorted object keys and no
// insignificant whitespace, so semantically equal argument maps produce
// identical strings regardless of key order.
func CanonicalJSON(value interface{}) string {
	var b strings.Builder
	writeCanonical(&b, value)
	return b.String()
}

func writeCanonical(b *strings.Builder, value interface{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			keyJSON, _ := json.Marshal(k)
			b.Write(keyJSON)
			b.WriteByte(':')
			writeCanonical(b, v[k])
		}
		b.WriteByte('}')
	case []interface{}:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			encoded, _ = json.Marshal(fmt.Sprintf("%v", v))
		}
		b.Write(encoded)
	}
}

// ActionSignature builds the executed-action signature
// "{tool}:{canonical-json(args)}" used to identify an invocation across
// approval prompts and loop detection.
func ActionSignature(toolName string, args map[string]interface{}) string {
	return toolName + ":" + CanonicalJSON(args)
}

// SignatureForAction is a convenience over ActionSignature.
func SignatureForAction(action Action) string {
	return ActionSignature(action.ToolName, action.ToolArgs)
}
