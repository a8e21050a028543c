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

// Package memory implements the process-wide shared state store and the
// per-agent views over it.
//
// A namespace (typically the job id) owns one conversation feed, one
// global broadcast feed, and a map of agent-keyed private feeds. All
// feeds are append-only; order within a feed is the append order.
package memory

import (
	"sync"
	"time"

	"github.com/teradata-labs/heddle/pkg/types"
)

// ConversationTurn is one user/assistant exchange entry.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the process-wide, thread-safe shared state store.
//
// Namespaces are created on first write; there is no explicit create or
// destroy. All operations hold the internal mutex only for the duration
// of the append or list copy and never block on external I/O.
type Store struct {
	mu sync.RWMutex

	conversation map[string][]ConversationTurn
	global       map[string][]types.Message
	agents       map[string]map[string][]types.Message
}

// NewStore creates an empty shared state store.
func NewStore() *Store {
	return &Store{
		conversation: make(map[string][]ConversationTurn),
		global:       make(map[string][]types.Message),
		agents:       make(map[string]map[string][]types.Message),
	}
}

// AppendConversation appends a conversation turn to the namespace feed.
func (s *Store) AppendConversation(namespace, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation[namespace] = append(s.conversation[namespace], ConversationTurn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// AppendAgent appends a message to the agent's private feed.
func (s *Store) AppendAgent(namespace, agentKey string, msg types.Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	feeds, ok := s.agents[namespace]
	if !ok {
		feeds = make(map[string][]types.Message)
		s.agents[namespace] = feeds
	}
	feeds[agentKey] = append(feeds[agentKey], msg)
}

// AppendGlobal appends a broadcast update to the namespace global feed.
func (s *Store) AppendGlobal(namespace string, msg types.Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global[namespace] = append(s.global[namespace], msg)
}

// ListConversation returns a copy of the namespace conversation feed.
func (s *Store) ListConversation(namespace string) []ConversationTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed := s.conversation[namespace]
	out := make([]ConversationTurn, len(feed))
	copy(out, feed)
	return out
}

// ListAgent returns a copy of the agent's private feed.
func (s *Store) ListAgent(namespace, agentKey string) []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed := s.agents[namespace][agentKey]
	out := make([]types.Message, len(feed))
	copy(out, feed)
	return out
}

// ListGlobal returns a copy of the namespace global feed.
func (s *Store) ListGlobal(namespace string) []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed := s.global[namespace]
	out := make([]types.Message, len(feed))
	copy(out, feed)
	return out
}

// ListTeam concatenates the private feeds of the given agents in
// argument order.
func (s *Store) ListTeam(namespace string, agentKeys []string) []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Message
	for _, key := range agentKeys {
		out = append(out, s.agents[namespace][key]...)
	}
	return out
}
