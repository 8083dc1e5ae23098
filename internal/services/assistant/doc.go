// Package assistant is the conversational collaborator boundary. The
// pipeline treats the assistant as opaque: it forwards messages, streams
// the reply, and records only per-exchange metadata for analytics.
package assistant
