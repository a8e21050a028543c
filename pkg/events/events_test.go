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

package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBusDeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var order []string
	bus.Subscribe("*", func(Event) { order = append(order, "first") })
	bus.Subscribe("*", func(Event) { order = append(order, "second") })
	bus.Subscribe("*", func(Event) { order = append(order, "third") })

	bus.Publish(AgentStart, Actor{Role: "worker", Name: "w"}, nil)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBusPatternMatching(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var got []string
	bus.Subscribe(AgentEnd, func(e Event) { got = append(got, e.Name) })
	bus.Subscribe("", func(e Event) { got = append(got, "wildcard:"+e.Name) })

	bus.Publish(AgentStart, Actor{}, nil)
	bus.Publish(AgentEnd, Actor{}, nil)

	assert.Equal(t, []string{"wildcard:agent_start", "agent_end", "wildcard:agent_end"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	count := 0
	unsubscribe := bus.Subscribe("*", func(Event) { count++ })

	bus.Publish(AgentStart, Actor{}, nil)
	unsubscribe()
	bus.Publish(AgentStart, Actor{}, nil)

	assert.Equal(t, 1, count)

	// Unsubscribing twice is a no-op.
	unsubscribe()
}

func TestBusRecoversSubscriberPanic(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	bus.Subscribe("*", func(Event) { panic("subscriber bug") })
	delivered := false
	bus.Subscribe("*", func(Event) { delivered = true })

	require.NotPanics(t, func() {
		bus.Publish(Error, Actor{Role: "worker"}, map[string]interface{}{"error": "x"})
	})
	assert.True(t, delivered, "a panicking subscriber must not block later subscribers")
}

func TestBusCarriesActorAndPayload(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var got Event
	bus.Subscribe(WorkerToolResult, func(e Event) { got = e })

	actor := Actor{Role: "worker", Name: "sql-worker"}
	bus.Publish(WorkerToolResult, actor, map[string]interface{}{"tool": "list_tables"})

	assert.Equal(t, actor, got.Actor)
	assert.Equal(t, "list_tables", got.Payload["tool"])
	assert.False(t, got.Timestamp.IsZero())
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var mu sync.Mutex
	count := 0
	bus.Subscribe("*", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(ActionExecuted, Actor{}, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, count)
}

func TestNormalizedResult(t *testing.T) {
	payload := NormalizedResult("success", map[string]interface{}{"rows": 3})
	assert.Equal(t, "success", payload["status"])
	require.NotNil(t, payload["result"])
}
