// Package util provides small generic containers shared across the
// compiler and engine: sets, an LRU cache, and state transition tables.
package util
