// Package analytics rolls the catalog's daily usage buckets up into
// trailing-window summaries, calendar-month trends, and per-language
// performance series.
package analytics
