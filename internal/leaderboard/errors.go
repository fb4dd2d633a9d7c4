package leaderboard

import "fmt"

// ValidationError reports a malformed source URL. No network call is made.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid leaderboard url %q: %s", e.URL, e.Reason)
}

// FetchError reports a failed retrieval after the policy's attempts.
type FetchError struct {
	Key    string
	Status int // 0 when no response was received
	Msg    string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch leaderboard: %s (status %d)", e.Msg, e.Status)
	}
	return "fetch leaderboard: " + e.Msg
}

func (e *FetchError) Unwrap() error { return e.Err }
