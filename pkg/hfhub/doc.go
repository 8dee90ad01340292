// Package hfhub downloads files and snapshots from the Hugging Face Hub:
// resumable HTTP transfers (byte-range resume via a ".incomplete" sibling
// file), exponential backoff with jitter, a per-host rate limiter and
// circuit breaker, and rate-limit blackout handling for HTTP 429 responses.
package hfhub
