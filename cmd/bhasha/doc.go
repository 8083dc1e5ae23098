// Command bhasha is the CLI for the contribution pipeline: browsing the
// catalog, managing stored media, reading analytics, and running the
// daemon in the foreground.
package main
