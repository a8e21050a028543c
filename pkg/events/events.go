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

// Package events provides the engine's synchronous lifecycle event bus.
//
// Delivery within a single Publish call is sequential in subscriber
// registration order. Subscriber panics are recovered and logged so a
// misbehaving subscriber cannot break agent control flow.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Lifecycle event names published by the engine.
const (
	AgentStart             = "agent_start"
	AgentEnd               = "agent_end"
	ManagerStart           = "manager_start"
	ManagerEnd             = "manager_end"
	ActionPlanned          = "action_planned"
	ActionExecuted         = "action_executed"
	DelegationPlanned      = "delegation_planned"
	DelegationChosen       = "delegation_chosen"
	DelegationExecuted     = "delegation_executed"
	ManagerScriptPlanned   = "manager_script_planned"
	OrchestratorPhaseStart = "orchestrator_phase_start"
	OrchestratorPhaseEnd   = "orchestrator_phase_end"
	ManagerStepStart       = "manager_step_start"
	ManagerStepEnd         = "manager_step_end"
	WorkerToolCall         = "worker_tool_call"
	WorkerToolResult       = "worker_tool_result"
	PolicyDenied           = "policy_denied"
	Error                  = "error"
)

// Actor identifies the agent that produced an event.
type Actor struct {
	Role    string `json:"role"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Event is one lifecycle notification.
type Event struct {
	Name      string                 `json:"name"`
	Actor     Actor                  `json:"actor"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Handler receives published events. Handlers must be re-entrant: the
// bus holds no lock across delivery and the same handler may be invoked
// from concurrent Publish calls.
type Handler func(Event)

type subscriber struct {
	id      int
	pattern string
	handler Handler
}

// Bus fans events out to subscribers synchronously.
// All methods are safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber
	logger *zap.Logger
}

// NewBus creates an event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a handler for events whose name matches the
// pattern. A pattern of "*" or "" matches every event. Returns an
// unsubscribe function.
func (b *Bus) Subscribe(pattern string, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, pattern: pattern, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to matching subscribers in registration
// order. Delivery is synchronous; Publish returns after the last
// subscriber has run.
func (b *Bus) Publish(name string, actor Actor, payload map[string]interface{}) {
	event := Event{
		Name:      name,
		Actor:     actor,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if !matches(s.pattern, name) {
			continue
		}
		b.deliver(s, event)
	}
}

func (b *Bus) deliver(s subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				zap.String("event", event.Name),
				zap.Int("subscriber_id", s.id),
				zap.Any("panic", r))
		}
	}()
	s.handler(event)
}

func matches(pattern, name string) bool {
	return pattern == "" || pattern == "*" || pattern == name
}

// NormalizedResult builds the payload fragment carried by _end and
// _executed events: a status in {success, pending, error} plus the raw
// result.
func NormalizedResult(status string, result interface{}) map[string]interface{} {
	return map[string]interface{}{
		"status": status,
		"result": result,
	}
}
