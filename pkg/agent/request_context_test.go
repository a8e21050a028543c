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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextSnapshot(t *testing.T) {
	rctx := NewRequestContext("job-1")
	rctx.Approvals["drop_table"] = true
	rctx.DirectorContext = "focus on sales"

	child := rctx.Snapshot()
	assert.Equal(t, "job-1", child.JobID)
	assert.Equal(t, "focus on sales", child.DirectorContext)
	assert.True(t, child.Approvals["drop_table"])

	child.Approvals["add_column"] = true
	child.DirectorContext = "mutated"
	assert.False(t, rctx.Approvals["add_column"], "child approvals never leak back")
	assert.Equal(t, "focus on sales", rctx.DirectorContext)

	var nilCtx *RequestContext
	snapshot := nilCtx.Snapshot()
	require.NotNil(t, snapshot)
	assert.NotNil(t, snapshot.Approvals)
}

func TestRequestContextRoundTrip(t *testing.T) {
	rctx := NewRequestContext("job-1")
	ctx := WithRequestContext(context.Background(), rctx)

	assert.Same(t, rctx, RequestContextFrom(ctx))
	assert.Nil(t, RequestContextFrom(context.Background()))
}
