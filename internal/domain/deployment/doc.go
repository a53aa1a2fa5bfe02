// Package deployment contains the lifecycle state machine driven by the
// deployer: Idle, Staged, ServiceStopping, DirectoriesReplacing,
// ServiceStarting, HealthChecking and the terminal Healthy and Failed states.
//
// The machine is linear. The only branch is to Failed, which is reachable
// from every non-terminal state. Nothing is persisted between runs.
package deployment
