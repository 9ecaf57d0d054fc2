// Package document loads .masm documents from a directory.
//
// Request paths are reduced to a base name (see ResolveName) and looked up
// under a single root directory; names must match one of the configured
// doublestar patterns. Loaded content is always valid UTF-8: binary files are
// rejected, and text in other encodings is detected and transcoded.
//
// The Loader keeps an optional cache validated by size and modification
// time. Documents handed out are immutable values, so a cached entry can be
// shared by any number of concurrent renders.
package document
