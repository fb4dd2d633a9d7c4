// Package delivery posts rendered messages to destination webhooks and
// classifies each result as success, transient failure or permanent failure.
//
// Deliver never returns an error; every failure, including transport errors
// and malformed endpoints, is folded into an Outcome. A permanent outcome
// means the destination no longer exists and its subscription should be
// retired.
package delivery
