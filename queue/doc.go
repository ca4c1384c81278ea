// Package queue provides the durable local task queue that drives the job
// coordinator. Tasks are persisted before they are scheduled, so pending
// polls and pipeline runs survive a process restart; Recover reloads them
// on startup. Claiming a task to run it is the only cross-worker
// coordination primitive in the system.
package queue
