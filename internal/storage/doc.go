// Package storage provides the persistence layer used by the dispatcher.
//
// It currently supports:
//   - Subscriptions (read, delete; put for imports and tests)
//   - Leaderboard cache snapshots (read, upsert by access key)
//   - Audit log appends (delivery outcomes)
package storage
