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

package history

import "context"

type phaseIDKey struct{}

// WithPhaseID records the caller's phase cursor on the context so
// planners can build a FilterContext without a dependency on the agent
// layer.
func WithPhaseID(ctx context.Context, phaseID int) context.Context {
	return context.WithValue(ctx, phaseIDKey{}, phaseID)
}

// PhaseIDFrom extracts the phase cursor recorded by WithPhaseID. It
// returns zero when none was recorded, which filters treat as "no
// previous phase".
func PhaseIDFrom(ctx context.Context) int {
	id, _ := ctx.Value(phaseIDKey{}).(int)
	return id
}
