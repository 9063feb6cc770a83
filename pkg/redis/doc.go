// Package redis wraps the go-redis client with a retrying Connect helper
// and an env-taggable Config. The queue package builds its Redis-backed
// task storage on top of it.
package redis
