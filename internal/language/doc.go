// Package language normalizes the language codes attached to contributions.
// The table covers the languages the archive actively collects; anything
// else is reduced to an ISO 639-1 base code via BCP 47 parsing.
package language
