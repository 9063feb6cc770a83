// Package definition loads, validates and caches declarative lifecycle
// graphs for business entities.
//
// A definition resource is a YAML or JSON document describing the states of
// an entity type and the transitions between them:
//
//	states: [draft, review, approved]
//	transitions:
//	  - trigger: submit
//	    source: draft
//	    dest: review
//	    conditions: [is_complete]
//	    meta:
//	      api_trigger: true
//	      permissions: [transition_task_submit]
//
// Resources live on disk under a per-entity-type convention and are
// resolved per (entityType, variant) pair, so a single entity type can run
// different workflows depending on a variant discriminator. When no
// variant-specific resource exists, resolution falls back to the default
// variant; when neither exists, Resolve fails with ErrNotFound.
//
// Structural errors (destination outside the state set, duplicate
// trigger/source pairs, empty sources) are configuration errors and fail at
// load time with ErrInvalid; they never surface mid-transition.
//
// The Store memoizes each resolved definition for the process lifetime.
// Concurrent first access is safe and converges on one shared instance:
//
//	store := definition.NewStore(definition.NewFileLoader("./workflows"))
//	def, err := store.Resolve("task", "default")
package definition
