// Package httpclient provides an outbound HTTP client with JSON handling,
// named auth presets, timeouts, and retry on transient failures. Node
// services use it for every call that leaves the process.
package httpclient
