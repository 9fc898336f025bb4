// Package storage defines the store contracts for the ingestion and
// aggregation pipeline plus their shared configuration.
//
// Contracts are grouped by concern: RawStore (time-series readings with
// natural-key upsert), JobQueue (durable analytics work queue with an
// atomic claim), ResultStore (keyed rollup results, last writer wins),
// TriggerMailbox (consume-once fetch requests), UserStore and
// PayloadArchive. The postgres subpackage provides the production
// implementation backed by PostgreSQL with optional Redis caching and
// S3 payload archival.
package storage
