// Package upload moves validated artifacts into the blob store. Each
// transfer is tracked by a task with byte-level progress; failed or
// cancelled tasks stay terminal and retries run as fresh tasks.
package upload
