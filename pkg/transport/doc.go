// Package transport exposes lifecycle transitions over HTTP.
//
// The surface is deliberately thin: a single chi router mapping
// POST /{entityType}/{id}/transition/{name} onto the engine, plus a
// read-only listing of the transitions currently available to the actor.
// Trigger names in URLs use the hyphenated API form declared in the
// definition; transitions without an api_trigger marker are not reachable
// over HTTP.
//
// The transport performs no authentication. It trusts the X-Actor-ID
// header set by upstream middleware and forwards it to the permission
// guard, which makes the actual authorization decision.
package transport
