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

package agent

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/teradata-labs/heddle/pkg/shuttle"
	"github.com/teradata-labs/heddle/pkg/types"
)

// convertToolResult shapes a raw tool payload into the response its
// data deserves: an already-tabular or list-shaped payload becomes a
// display_table, text becomes a display_message, and anything else
// falls back to payloadToResponse's generic rendering.
func convertToolResult(payload map[string]interface{}, summary string) *types.FinalResponse {
	if payload == nil {
		return types.NewMessageResponse("(empty result)", summary)
	}
	if shuttle.IsErrorPayload(payload) {
		message, _ := payload["error_message"].(string)
		if message == "" {
			message = "The tool reported an error."
		}
		return types.NewErrorResponse(message, summary)
	}
	if _, hasHeaders := payload["headers"]; hasHeaders {
		if _, hasRows := payload["rows"]; hasRows {
			return payloadToResponse(payload, summary)
		}
	}
	if table := tableFromPayload(payload); table != nil {
		table.HumanReadableSummary = summary
		return table
	}
	return payloadToResponse(payload, summary)
}

// tableFromPayload renders the first list-valued field of the payload
// as a display_table. Keys are scanned in sorted order so the chosen
// field is stable; fields named like bookkeeping flags are skipped.
func tableFromPayload(payload map[string]interface{}) *types.FinalResponse {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if skipTableField(key) {
			continue
		}
		items, ok := sliceElements(payload[key])
		if !ok || len(items) == 0 {
			continue
		}
		headers, rows := tabulate(key, items)
		if len(rows) == 0 {
			continue
		}
		return &types.FinalResponse{
			Operation: types.OpDisplayTable,
			Payload: map[string]interface{}{
				"title":   titleize(key),
				"headers": headers,
				"rows":    rows,
			},
		}
	}
	return nil
}

// tabulate derives headers and rows from a homogeneous list: maps give
// one column per key, scalars give a single column named after the
// field.
func tabulate(field string, items []interface{}) ([]string, [][]string) {
	first, ok := items[0].(map[string]interface{})
	if !ok {
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{stringifyCell(item)})
		}
		return []string{titleize(field)}, rows
	}

	headers := make([]string, 0, len(first))
	for key := range first {
		headers = append(headers, key)
	}
	sort.Strings(headers)

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		row := make([]string, 0, len(headers))
		for _, header := range headers {
			row = append(row, stringifyCell(record[header]))
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// sliceElements unpacks any slice-typed value. Tool payloads that were
// built in-process carry typed slices rather than []interface{}.
func sliceElements(value interface{}) ([]interface{}, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	items := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// skipTableField filters bookkeeping fields that never hold row data.
func skipTableField(key string) bool {
	switch key {
	case "success", "completed", "error", "warnings", "metadata":
		return true
	}
	return false
}

func stringifyCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// titleize turns a snake_case field name into a display title.
func titleize(field string) string {
	words := strings.Split(field, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// batchToResponse aggregates the results of one action batch into a
// single response. When every result converts to a table with the same
// columns the rows are merged under one title; mixed shapes fall back
// to per-tool sections.
func batchToResponse(actions []types.Action, results []map[string]interface{}, summary string) *types.FinalResponse {
	if len(results) == 0 {
		return types.NewMessageResponse("(empty result)", summary)
	}
	if len(results) == 1 {
		return convertToolResult(results[0], summary)
	}

	var headers interface{}
	var merged []interface{}
	var title string
	uniform := true
	for _, payload := range results {
		converted := convertToolResult(payload, summary)
		if converted.Operation != types.OpDisplayTable {
			uniform = false
			break
		}
		if headers == nil {
			headers = converted.Payload["headers"]
			title, _ = converted.Payload["title"].(string)
		} else if !reflect.DeepEqual(headers, converted.Payload["headers"]) {
			uniform = false
			break
		}
		rows, ok := sliceElements(converted.Payload["rows"])
		if !ok {
			uniform = false
			break
		}
		merged = append(merged, rows...)
	}
	if uniform && headers != nil {
		return &types.FinalResponse{
			Operation: types.OpDisplayTable,
			Payload: map[string]interface{}{
				"title":   fmt.Sprintf("%s (%d sources)", title, len(results)),
				"headers": headers,
				"rows":    merged,
			},
			HumanReadableSummary: summary,
		}
	}

	sections := make([]string, 0, len(results))
	for idx, payload := range results {
		sections = append(sections, fmt.Sprintf("## %s\n%s",
			actions[idx].ToolName, formatResult(convertToolResult(payload, summary))))
	}
	return types.NewMessageResponse(strings.Join(sections, "\n\n"), summary)
}
