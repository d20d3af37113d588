// Package storage persists scheduled posts, the destination channel registry
// and the operator audit trail.
//
// Drivers: memory (volatile), file (snapshot + journal), sqlite and redis.
package storage
