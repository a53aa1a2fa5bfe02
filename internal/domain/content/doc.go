// Package content defines game content units (cars and tracks) and the
// baseline registry of units that ship with the base game.
package content
