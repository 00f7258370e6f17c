// Package clients provides HTTP-backed implementations of the node service
// backends: model inference, embedding upserts, knowledge-space search,
// vector store queries, and raw outbound API calls. Each client targets a
// configured base URL and authenticates with a bearer API key; unconfigured
// services fall back to the inert defaults in the nodes package.
package clients
