// Package core provides the validation engine for worker lifecycle records.
//
// This package contains all domain logic independent of any transport layer.
// It can be used by web handlers, CLI tools, or tests without modification.
//
// # Pipeline
//
// A run takes one or more source components (Worker, WorkRelationship,
// Assignment, ...) and passes their rows through five stages:
//
//  1. [Normalizer] resolves raw header names against the expected columns
//     and cleans cell values ("NaN", "null", ="x" wrappers).
//  2. [FieldValidator] applies required, type, lookup and uniqueness rules.
//  3. [TimelineValidator] walks each person's actions in date order through
//     an employment state machine and derives termination dates.
//  4. [CascadePropagator] fails every row of a person once any row fails.
//  5. [Partitioner] bundles the passed rows into pipe-delimited loader files.
//
// Rows are values: stages return new slices with reasons or derived fields
// added and never modify their input.
//
// # Profiles
//
// Rule sets and action classifications are grouped into named profiles,
// registered at init time with [Register] or loaded from YAML with
// [LoadProfiles]. Requests may also carry their own rules.
//
// # Errors
//
// Row problems never fail a run; they are reported as reasons on the row.
// A run fails as a whole only for a malformed rule set, an unknown profile,
// empty input, or when the [RunLimiter] has no free slot. [MapError] turns
// those into coded user messages:
//
//   - RULE001-RULE002: rule set and profile errors
//   - INPUT001-INPUT004: request and file errors
//   - RUN001-RUN003: limiter and history errors
//
// # History
//
// When a [RunStore] is configured every run is recorded with its failed
// rows, and [Service.StartPruneScheduler] removes runs past the retention
// window.
package core
