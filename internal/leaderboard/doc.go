// Package leaderboard reads Advent of Code private leaderboards.
//
// A Provider composes a TTL cache (backed by storage or redis) with a
// Fetcher that talks to the provider's JSON endpoint. Within the TTL window
// every subscription following the same board shares one upstream read.
package leaderboard
