// Package logx is leaderbot's structured logging layer over zerolog.
//
// A Logger is a cheap value: With adds fixed fields, the zero value drops
// everything. Loggers handed out by a Service follow its sinks across
// Service.Apply, so a config reload retargets every component at once.
//
// Sinks: a human console writer on stderr (stdout is reserved for command
// output such as run summaries), an optional JSON file, and an optional
// operator chat that receives warnings and errors through a rate limit.
package logx
