// Package scheduler arms one cancellable timer per scheduled post, fires the
// delivery at the post's time and removes the record afterwards.
//
// Every live timer is owned by a Registry entry keyed by post id. Firing and
// cancelling race only through Registry.Claim: whoever removes the entry
// first wins, so a post is delivered at most once per armed handle.
package scheduler
