// Package redis provides Redis-backed adapters: a document collection with a
// sorted-set index for native counts, a reliable work queue for dispatching
// model runs, and a distributed locker.
package redis
