// Package analytics turns raw readings into stored rollup results.
//
// The worker claims jobs from the durable queue, scans the job's
// window of readings, rolls each metric up according to its catalog
// value kind, and upserts the result under the job's key. Failures are
// recorded on the job and never touch the previously stored result.
// The read service on top answers "what is this user's weekly summary"
// and, just as importantly, "why is there no number here yet".
package analytics
