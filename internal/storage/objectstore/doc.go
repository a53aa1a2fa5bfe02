// Package objectstore uploads content archives to an S3-compatible bucket
// (Google Cloud Storage interoperability by default) and builds their public
// download URLs.
//
// The Gateway does not de-duplicate: callers check Exists before Upload.
package objectstore
