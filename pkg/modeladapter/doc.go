// Package modeladapter is the boundary between the agent loop and language
// model providers.
//
// It contains:
//   - [Completer], the interface every provider implements
//   - [Response], the tagged union a reply is interpreted as: [Final] or [ToolCalls]
//   - [RetryCompleter], which bounds each call with a timeout and retries
//     rate-limited, timed-out, and server-side failures
//   - [ModelAdapter], an embeddable base struct with HTTP helpers, auth, and custom headers
//   - [github.com/germanamz/lamplighter/pkg/modeladapter/usage]: thread-safe token usage tracker
//
// No provider-specific code lives here; concrete adapters are in
// [github.com/germanamz/lamplighter/pkg/providers].
package modeladapter
