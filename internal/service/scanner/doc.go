// Package scanner reads server pack archives. Scan finds the cars and tracks
// that are not part of the base game; Extract unpacks the pack for staging.
package scanner
