// Package queue is the task-dispatch collaborator of the lifecycle
// runtime: background transition actions are enqueued here and executed
// out-of-band by a Worker.
//
// The Enqueuer writes tasks through a storage interface; MemoryStorage
// serves tests and local development, RedisStorage production. Delivery is
// at-least-once (a crashed worker's lock expires and the task becomes
// claimable again) and no ordering is guaranteed across tasks, including
// tasks for the same entity. Handler authors must tolerate both.
//
// Failed tasks retry with backoff up to their retry limit, then move to a
// dead letter queue for manual inspection.
//
// NewTransitionTaskHandler bridges the dispatch registry's background
// actions into this package: it loads the entity, runs the action
// registered for the task's trigger and persists the entity afterwards.
package queue
