// Package jsondb provides a flat-file JSON document store.
//
// # Overview
//
// The package centers around [Collection], a named set of documents stored as
// a single JSON object file mapping string keys to documents. Every operation
// reads the whole file, works in memory and, when it mutates, writes the whole
// file back.
//
// # Concurrency: Pessimistic Locking
//
// [LockedFile] guards the backing file. Reads take a shared lock. Mutations
// take the exclusive lock before reading and keep it until the write-back
// completes, so two writers can never both act on the same snapshot. The lock
// is an flock(2) on a sidecar "<file>.lock", taken through a fresh descriptor
// on every acquisition so goroutines and processes are excluded alike and a
// waiter gives up when its context ends. The sidecar is needed because writes
// replace the data file by rename.
//
// # Values
//
// Documents are trees of [Value], a closed variant over null, bool, int,
// float, string, array and object. Objects are [Document]s and keep insertion
// order.
//
// # Queries and Edits
//
// [Evaluate] filters documents by a list of ANDed [Condition]s. [EditOperation]
// applies one typed in-place change to a field. [Sample] draws a seeded random
// subset of keys.
package jsondb
