// Package deployer drives one deployment run: it finds the new content of a
// server pack, publishes it to the object store, points the pack manifest at
// the published archives and then walks the remote game server through
// stop, replace, start and health check. Failures after the service was
// touched are explained from the service journal.
package deployer
