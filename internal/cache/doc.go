// Package cache provides the persistent backends for built assets.
//
// The pipeline serializes an asset into an Entry and hands it to a Store
// under an opaque key. A Store only needs Get and Set; nothing enumerates
// or deletes entries. Stale entries are never purged explicitly: every
// Entry carries the environment digest it was built under and readers
// ignore entries whose version does not match.
//
// # Backends
//
//   - MemoryStore: process-local, backed by gofiber/storage/memory
//   - FileStore: one zstd-compressed CBOR file per key under a directory
//   - SQLiteStore: a single SQLite database (WAL mode)
//   - RedisStore: any Redis-compatible server
//
// All backends share the CBOR encoding produced by Marshal.
package cache
