// Package discovery walks a directory tree and yields markdown documents with
// stable, root-relative paths.
package discovery
