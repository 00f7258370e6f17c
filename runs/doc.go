// Package runs holds ephemeral, process-local run state.
//
// A run is created when execution starts, accumulates an ordered event log,
// and is evicted by a background pass once finished and older than the TTL
// (or abandoned without ever finishing). Nothing here survives a restart;
// delivery is best effort by design.
package runs
