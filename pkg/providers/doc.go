// Package providers groups the concrete completion clients.
//
//   - [github.com/germanamz/lamplighter/pkg/providers/openai] hand-rolled Chat Completions client
//   - [github.com/germanamz/lamplighter/pkg/providers/anthropic] Messages API client
//   - [github.com/germanamz/lamplighter/pkg/providers/azure] Azure OpenAI deployments through the openai-go SDK
//
// Every client implements [github.com/germanamz/lamplighter/pkg/modeladapter.Completer]
// and records token usage on its tracker.
package providers
