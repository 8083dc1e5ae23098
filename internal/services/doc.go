// Package services holds the shared error taxonomy for pipeline components
// and the client packages for external collaborators (blob storage, the
// conversational assistant).
//
// Every failure a component surfaces is tagged with one of the exported
// sentinel errors via Wrap so callers and the API boundary can classify it
// with errors.Is instead of string matching.
package services
