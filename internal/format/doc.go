// Package format renders leaderboard standings, puzzle-release announcements
// and test pings into destination-specific webhook payloads.
//
// Everything here is pure: the caller supplies the clock reading and the
// location it should be shown in.
package format
