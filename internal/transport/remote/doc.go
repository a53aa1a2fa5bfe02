// Package remote runs shell commands on, and copies files to, the game server
// host. Two transports are provided: Gcloud drives `gcloud compute ssh/scp`
// and SSH speaks the protocol natively.
//
// A Transport reports connection problems as ErrTransport. A command that ran
// and exited non-zero is not an error of Run; Check turns it into a
// *CommandError when the caller needs success.
package remote
