// Package llm provides an OpenAI-compatible chat client (OpenRouter by
// default) used to categorize files.
//
// # Entry Points
//
// NewClient / NewClientFrom: construct a client from settings.
// Client.Categorize: ask for the folder (and, with a content sample, a
// sub-folder) of one file.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries HTTP 408/429/5xx responses, transport failures, empty
// completions and payloads that do not decode as the expected JSON, with
// exponential backoff (base doubles each attempt, capped). Retry-After is
// honored but capped. Context cancellation aborts retries immediately.
//
// After the last attempt the error is wrapped with services.ErrTransient.
// Requests the service rejects outright (401, 400, ...) are wrapped with
// services.ErrExternalTool and are not retried.
//
// # Results
//
// Categorize returns a tagged categorize.Result. A category outside the
// allowed list degrades to the extension rules so callers always receive a
// usable folder.
package llm
