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

package memory

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/teradata-labs/heddle/pkg/types"
)

// View is a read/write window into a (namespace, agent_key) pair.
// Views are cheap handles and safe to share; the store behind them is
// the single source of truth.
type View interface {
	// Add appends a message to the agent's private feed.
	Add(msg types.Message)

	// AddGlobal broadcasts an update to every agent in the namespace.
	AddGlobal(msg types.Message)

	// GetHistory composes the visible history for this agent in feed
	// append order.
	GetHistory() []types.Message
}

// PrivateView is a single-agent view with no cross-visibility. Each
// instance gets its own namespace so private memories never collide.
type PrivateView struct {
	store    *Store
	ns       string
	agentKey string
}

// NewPrivateView creates an isolated single-agent view.
func NewPrivateView(store *Store, agentKey string) *PrivateView {
	if agentKey == "" {
		agentKey = "default"
	}
	return &PrivateView{
		store:    store,
		ns:       "private-" + uuid.NewString(),
		agentKey: agentKey,
	}
}

// Add implements View.
func (v *PrivateView) Add(msg types.Message) {
	v.store.AppendAgent(v.ns, v.agentKey, msg)
}

// AddGlobal implements View. A private view has no broadcast audience,
// so globals land in its own namespace.
func (v *PrivateView) AddGlobal(msg types.Message) {
	v.store.AppendGlobal(v.ns, msg)
}

// GetHistory implements View.
func (v *PrivateView) GetHistory() []types.Message {
	return v.store.ListAgent(v.ns, v.agentKey)
}

// SharedView is the worker-facing view: writes go to the worker's
// private feed, broadcasts go to the namespace global feed, and history
// composes conversation + private feed + globals.
//
// A worker never sees the private feed of a sibling worker except
// through a global_observation someone explicitly broadcast.
type SharedView struct {
	store    *Store
	ns       string
	agentKey string
}

// NewSharedView creates a shared-worker view. Namespace and agent key
// must be non-empty.
func NewSharedView(store *Store, namespace, agentKey string) (*SharedView, error) {
	if namespace == "" || agentKey == "" {
		return nil, fmt.Errorf("shared view requires a non-empty namespace and agent key")
	}
	return &SharedView{store: store, ns: namespace, agentKey: agentKey}, nil
}

// Add implements View.
func (v *SharedView) Add(msg types.Message) {
	v.store.AppendAgent(v.ns, v.agentKey, msg)
}

// AddGlobal implements View.
func (v *SharedView) AddGlobal(msg types.Message) {
	v.store.AppendGlobal(v.ns, msg)
}

// GetHistory implements View. Conversation turns are translated into
// user_message/assistant_message rows for planner compatibility.
func (v *SharedView) GetHistory() []types.Message {
	history := conversationMessages(v.store, v.ns)
	history = append(history, v.store.ListAgent(v.ns, v.agentKey)...)
	history = append(history, v.store.ListGlobal(v.ns)...)
	return history
}

// Namespace returns the view's namespace.
func (v *SharedView) Namespace() string { return v.ns }

// AgentKey returns the view's agent key.
func (v *SharedView) AgentKey() string { return v.agentKey }

// HierarchicalView is the manager-facing view: like SharedView plus the
// concatenated feeds of its subordinates, inserted before globals.
type HierarchicalView struct {
	SharedView
	subordinates []string
}

// NewHierarchicalView creates a manager view over the given
// subordinate agent keys.
func NewHierarchicalView(store *Store, namespace, agentKey string, subordinates []string) (*HierarchicalView, error) {
	base, err := NewSharedView(store, namespace, agentKey)
	if err != nil {
		return nil, err
	}
	subs := make([]string, len(subordinates))
	copy(subs, subordinates)
	return &HierarchicalView{SharedView: *base, subordinates: subs}, nil
}

// GetHistory implements View.
func (v *HierarchicalView) GetHistory() []types.Message {
	history := conversationMessages(v.store, v.ns)
	history = append(history, v.store.ListAgent(v.ns, v.agentKey)...)
	history = append(history, v.store.ListTeam(v.ns, v.subordinates)...)
	history = append(history, v.store.ListGlobal(v.ns)...)
	return history
}

// conversationMessages translates the conversation feed into memory
// entries so planners see a uniform message stream.
func conversationMessages(store *Store, namespace string) []types.Message {
	turns := store.ListConversation(namespace)
	out := make([]types.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case "user":
			out = append(out, types.Message{Type: types.TypeUserMessage, Content: turn.Content, Timestamp: turn.Timestamp})
		case "assistant":
			out = append(out, types.Message{Type: types.TypeAssistantMessage, Content: turn.Content, Timestamp: turn.Timestamp})
		}
	}
	return out
}

var (
	_ View = (*PrivateView)(nil)
	_ View = (*SharedView)(nil)
	_ View = (*HierarchicalView)(nil)
)
