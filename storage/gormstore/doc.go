// Package gormstore provides a SQL-backed implementation of the storage
// interfaces using GORM, supporting PostgreSQL and SQLite.
//
// The single-use and rotation guarantees rely on conditional UPDATE
// statements instead of locks: consuming a code runs
// "UPDATE ... SET consumed_at = now WHERE code = ? AND consumed_at IS
// NULL" and inspects RowsAffected, so two concurrent exchanges of the
// same code resolve at the database rather than in process memory.
// Rotation wraps the revoke-old and insert-new steps in a transaction.
//
// Consumed codes and revoked refresh tokens stay in their tables until
// Cleanup removes them, so replayed codes are recognized as consumed
// rather than unknown.
package gormstore
