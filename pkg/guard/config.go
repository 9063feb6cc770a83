package guard

// Config controls the authorization behavior of the guard. Fields are
// env-taggable for loading through the config package.
type Config struct {
	// Enabled toggles the whole authorization subsystem. When false every
	// transition is allowed regardless of actor.
	Enabled bool `env:"AUTHZ_ENABLED" envDefault:"true"`

	// FailClosed rejects transitions whose actor id cannot be resolved.
	// The historical default is fail-open so that system-originated
	// transitions without a session are never blocked; enable this only
	// after auditing every automated caller.
	FailClosed bool `env:"AUTHZ_FAIL_CLOSED" envDefault:"false"`

	// PrincipalType names the entity type subject to the group-based
	// global/self rule. All other entity types use the legacy
	// permission-list path.
	PrincipalType string `env:"AUTHZ_PRINCIPAL_TYPE" envDefault:"user"`
}
