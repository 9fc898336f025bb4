// Package provider defines the contract with the external wearable-data
// provider and the error taxonomy the scheduler reacts to.
//
// The provider is an external collaborator: authentication and transport
// live behind the Gateway interface, and the pipeline only distinguishes
// three outcomes per fetch — a raw payload, ErrNoData (expected, skipped)
// and TransientError (retried with bounded backoff inside the current
// cycle, then deferred to the next one).
package provider
