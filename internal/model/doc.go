// Package model defines the domain types shared across the scanning
// pipeline: captured sheets, extracted answers, roster identities, match
// outcomes, grade reports and the persisted scan record.
//
// All types are plain data with no behavior beyond formatting helpers.
// Once a pipeline stage produces one of these values it is treated as
// immutable by every downstream stage.
package model
