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

package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeToolChoice(t *testing.T) {
	choice, ok := encodeToolChoice("required")
	require.True(t, ok)
	assert.NotNil(t, choice.OfAny)

	_, ok = encodeToolChoice("auto")
	assert.False(t, ok, "auto leaves the provider default in place")

	_, ok = encodeToolChoice("")
	assert.False(t, ok)
}

func TestNewClientCarriesToolChoice(t *testing.T) {
	c := NewClient(Config{APIKey: "test-key", ToolChoice: "required"})
	assert.Equal(t, "required", c.toolChoice)
}
