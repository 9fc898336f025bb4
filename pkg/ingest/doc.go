// Package ingest drives the provider-to-raw-store half of the pipeline.
//
// A cycle walks every known user over a trailing window of days and
// data types, fetching each (user, day, data type) unit from the
// provider gateway, resolving the payload into named metrics, and
// upserting the result into the raw store. Units are independent: one
// bad payload or rate-limited fetch never blocks the rest of the
// cycle. Re-running a cycle over days already ingested is the normal
// case, not an error; providers backfill and the raw store upserts.
//
// Between scheduled cycles a trigger loop drains the on-demand fetch
// mailbox so a user opening their dashboard can get fresh data without
// waiting for the next cron tick.
package ingest
