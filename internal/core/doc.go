// Package core provides the business logic for the maintenance ETL.
//
// This package holds all domain logic independent of any transport or
// storage layer. It is driven by the pipeline package, the CLI, the HTTP
// surface, and tests without modification.
//
// # Stages
//
// Every stage takes a table ([]T) and returns a freshly allocated table;
// inputs are never modified.
//
//  1. [ReadInput] opens a source file, checks its header against the
//     [InputDefinition] and its row count against the configured bounds.
//  2. [DecodeEvents], [DecodeProduction] and [DecodeOperators] coerce cells
//     into pgtype values. Empty cells become NULL.
//  3. [Validate] runs a [Ruleset] and returns a [ValidationReport]. It logs
//     and reports; it never stops the run.
//  4. [Cleaner.Clean] converts timestamps to UTC, splits parts, classifies
//     and flags each event. [Enrich] joins the roster.
//  5. [BuildFact] projects events onto [FactRow]; [Summarize] rolls facts up
//     to [SummaryRow].
//
// Row-wise stages split the table into contiguous partitions processed
// concurrently, so output order always equals input order.
//
// # Timezones
//
// Source timestamps are naive wall clocks in a fixed zone. [LocalToUTC]
// resolves DST ambiguity to the earlier instant and moves nonexistent times
// forward by the gap length.
//
// # Error Handling
//
// Fatal errors are typed: [ExtractionError], [TransformationError] and
// [ExportError]. Each matches its kind sentinel and its cause with
// errors.Is. [MapError] turns any error into a [UserMessage] with a support
// code:
//
//   - EXT001-EXT005: extraction (missing file, bounds, header, empty, CSV)
//   - TRN001: unparseable value
//   - EXP001-EXP002: artifact write, warehouse load
//   - RUN001-RUN004: run control (busy, cancelled, timed out, no run yet)
package core
