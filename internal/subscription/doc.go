// Package subscription defines the durable notification configuration of one
// destination webhook: which leaderboard it follows, at which hours it gets
// standings and whether it gets puzzle-release announcements.
package subscription
