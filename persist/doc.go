// Package persist provides generic CRUD helpers over a SQLite connection:
// paged and filter-based queries, identifiable-entity persistence with
// string IDs, and JSON-document persistence. All SQL is hand-built from
// validated identifiers and parameterized placeholders; there is no query
// planner and no pooling beyond the single write connection the driver
// provides.
package persist
