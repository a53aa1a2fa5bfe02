// Package packager turns a local content unit directory into a single zip
// archive ready for upload.
//
// Entry names are relative to the unit directory and written in lexical
// order, so packing the same tree twice yields the same entry list.
package packager
