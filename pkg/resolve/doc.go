// Package resolve normalizes raw provider payloads into named metrics.
//
// Provider payloads are polymorphic: the same data type ships different
// JSON shapes across firmware generations, and a single payload can
// carry several semantically distinct fields. The resolver's contract
// is to emit each recognized field as its own metric and never collapse
// distinct fields into one averaged number; selection of a single
// representative value happens downstream with an explicit priority
// order.
package resolve
