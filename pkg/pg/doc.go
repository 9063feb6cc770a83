// Package pg provides a pgx connection-pool helper with retrying connect
// semantics and an env-taggable Config, used by the guard package to reach
// the authorization store.
package pg
