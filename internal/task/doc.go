// Package task runs recognition jobs in the background.
//
// A Dispatcher moves job IDs from the durable queue into a bounded
// WorkerPool; each worker executes a RecognitionTask that drives a job
// through processing to completed or failed. The Runner owns the lifecycle
// of all three and of the StuckJobMonitor.
package task
