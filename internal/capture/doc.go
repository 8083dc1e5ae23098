// Package capture manages audio capture devices and recording sessions.
// A Recorder hands out at most one active session per client, sessions own
// an exclusive claim on the device for their whole recording phase, and
// fragments accumulate in an append-only buffer that becomes immutable
// once finalized.
package capture
