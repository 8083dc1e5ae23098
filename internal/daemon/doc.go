// Package daemon wires the pipeline services together behind a
// single-instance lock and serves the HTTP API.
package daemon
