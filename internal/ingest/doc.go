// Package ingest orchestrates the contribution pipeline: a finalized
// recording or an uploaded file is validated, transferred into the blob
// store, and only then cataloged. A transfer that fails or is cancelled
// never produces a catalog row.
package ingest
