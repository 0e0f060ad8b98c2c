// Package process adapts operating system processes: Spawner dispatches runs
// by starting a worker process per run, and Model runs an external command as
// the predictive computation.
package process
