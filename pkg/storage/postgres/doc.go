// Package postgres implements the pipeline's storage interfaces on
// PostgreSQL, with optional Redis read caching and an optional S3
// archive for raw provider payloads.
//
// PostgreSQL is the single source of truth. Every coordination
// primitive in the pipeline — the idempotent reading upsert, the
// atomic job claim, the consume-once trigger — is expressed as one
// SQL statement so correctness does not depend on process-local locks.
package postgres
