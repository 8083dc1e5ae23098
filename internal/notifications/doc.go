// Package notifications delivers push notifications for pipeline events
// through ntfy. With no topic configured every notification is a no-op, so
// callers never need to guard their calls.
package notifications
