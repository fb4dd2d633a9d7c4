// Package dispatch runs one notification pass: it resolves the tick, selects
// due subscriptions, fetches each distinct leaderboard once, renders and
// delivers messages with fixed pacing, and retires destinations that are
// gone.
//
// A run never aborts because of one subscription or one leaderboard. Item
// failures become records in the Summary and the audit log; Run only returns
// an error when subscriptions cannot be loaded or the context ends.
package dispatch
