// Package maestro provides a supervisor-driven multi-agent runtime.
//
// Maestro routes each user query through a supervisor that plans a
// sequence of task steps, dispatches them to specialized workers, and
// streams progress back to the caller over Server-Sent Events. Cheap
// queries are short-circuited before any model call by a rule engine
// and a redis-backed semantic cache.
//
// # Quick Start
//
// Install the server:
//
//	go install github.com/orchestrahq/maestro/cmd/maestro@latest
//
// Configure a model endpoint and start it:
//
//	export MODEL_BASE_URL="https://api.openai.com/v1"
//	export MODEL_API_KEY="sk-..."
//	export MODEL_NAME="gpt-4o-mini"
//	maestro serve
//
// Ask a question:
//
//	curl -N localhost:8080/v1/query \
//	  -d '{"message": "compare Go and Rust for CLIs", "stream": true}'
//
// # Using as Go Library
//
// Import specific packages:
//
//	import (
//	    "github.com/orchestrahq/maestro/pkg/service"
//	    "github.com/orchestrahq/maestro/pkg/worker"
//	    "github.com/orchestrahq/maestro/pkg/graph"
//	)
//
// Custom workers implement worker.Worker and register with the worker
// registry; the supervisor discovers them by priority at request time.
//
// # Architecture
//
// A request flows through three layers:
//
//  1. Performance gate: rule engine, then semantic cache. A hit answers
//     immediately without touching a model.
//  2. Supervisor graph: the supervisor node plans and routes, worker
//     nodes execute steps, and every node returns a partial state
//     update that a reducer merges into the shared SupervisorState.
//  3. Streaming: worker answers and step progress are emitted as SSE
//     events; supervisor internals stay off the wire.
//
// Conversation threads persist through a pluggable checkpointer so
// follow-up questions see prior turns.
package maestro
