// Package manifest maintains the client content manifest (content.json):
// a JSON object mapping category keys to unit names to records holding a
// download "url".
//
// Merging only ever adds urls; existing urls, records and unknown keys are
// kept. FileRepository replaces the file atomically on save.
package manifest
