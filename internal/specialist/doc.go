// Package specialist defines the contract between the orchestrator and a
// text-generation backend.
//
// A Client turns one prompt into generated text or fails with a classified
// *Error. The Retrier wraps any Client with the bounded retry policy:
//   - Timeout and TransientUnavailable are retried with exponential backoff
//   - BackendRejected and MalformedResponse fail immediately
//
// Backend specifics (auth, rate limits, model choice) live in the backend
// package and never leak past this contract.
package specialist
