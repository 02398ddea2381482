package health

import "sync/atomic"

var notDraining atomic.Bool

func init() { notDraining.Store(true) }

// SetReady flips the process-wide readiness gate. Shutdown hooks call
// SetReady(false) so load balancers drain traffic before the listener
// closes; probes fail without touching the dependencies.
func SetReady(ready bool) {
	notDraining.Store(ready)
}

func accepting() bool {
	return notDraining.Load()
}
