// Package catalog persists community contributions and usage aggregates in
// SQLite. The store is append-oriented: contributions are immutable after
// creation, daily usage buckets only accumulate, and reads always reflect
// committed writes.
package catalog
