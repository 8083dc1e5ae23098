// Package blobstore defines the storage backend contract for uploaded
// artifacts and provides a filesystem implementation. Objects are addressed
// by pathname on write and by URL on delete, matching the hosted blob
// services the daemon can be pointed at in production.
package blobstore
