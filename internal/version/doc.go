// Package version exposes build metadata for ac-deploy.
//
// Version, Commit and BuildTime are injected with -ldflags at release time.
package version
