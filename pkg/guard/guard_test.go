package guard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statekit/statekit/pkg/definition"
	"github.com/statekit/statekit/pkg/guard"
)

type testEntity struct {
	id         string
	entityType string
	variant    string
}

func (e testEntity) ID() string         { return e.id }
func (e testEntity) EntityType() string { return e.entityType }
func (e testEntity) Variant() string    { return e.variant }

// failingSource simulates an unavailable authorization store.
type failingSource struct{ err error }

func (s failingSource) Actor(ctx context.Context, id string) (*guard.Actor, error) {
	return nil, s.err
}

func enabledConfig() guard.Config {
	return guard.Config{Enabled: true, PrincipalType: "user"}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("enabled requires a source", func(t *testing.T) {
		t.Parallel()

		_, err := guard.New(enabledConfig(), nil)
		assert.ErrorIs(t, err, guard.ErrSourceNil)
	})

	t.Run("disabled allows nil source", func(t *testing.T) {
		t.Parallel()

		g, err := guard.New(guard.Config{Enabled: false}, nil)
		require.NoError(t, err)
		require.NotNil(t, g)
	})
}

func TestGlobalPermission(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "state_machine_user_default", guard.GlobalPermission("user", "default"))
	assert.Equal(t, "state_machine_user_premium", guard.GlobalPermission("user", "premium"))
	assert.Equal(t, "state_machine_order_default", guard.GlobalPermission("order", ""))
}

func TestGuard_Allowed_Disabled(t *testing.T) {
	t.Parallel()

	g, err := guard.New(guard.Config{Enabled: false}, nil)
	require.NoError(t, err)

	tr := &definition.Transition{Trigger: "approve", Meta: definition.Meta{Permissions: []string{"transition_order_approve"}}}
	ok, reason, err := g.Allowed(context.Background(), tr, testEntity{id: "1", entityType: "order"}, guard.NewCheck("nobody", false))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestGuard_Allowed_Bypass(t *testing.T) {
	t.Parallel()

	g, err := guard.New(enabledConfig(), guard.NewMemorySource())
	require.NoError(t, err)

	tr := &definition.Transition{Trigger: "approve", Meta: definition.Meta{Permissions: []string{"transition_order_approve"}}}
	ok, _, err := g.Allowed(context.Background(), tr, testEntity{id: "1", entityType: "order"}, guard.NewCheck("", true))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuard_Allowed_UnresolvableActor(t *testing.T) {
	t.Parallel()

	tr := &definition.Transition{Trigger: "approve"}
	ent := testEntity{id: "1", entityType: "order"}

	t.Run("fail-open by default", func(t *testing.T) {
		t.Parallel()

		g, err := guard.New(enabledConfig(), guard.NewMemorySource())
		require.NoError(t, err)

		ok, _, err := g.Allowed(context.Background(), tr, ent, guard.NewCheck("ghost", false))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("empty actor id is unresolvable", func(t *testing.T) {
		t.Parallel()

		g, err := guard.New(enabledConfig(), guard.NewMemorySource())
		require.NoError(t, err)

		ok, _, err := g.Allowed(context.Background(), tr, ent, guard.NewCheck("", false))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("fail-closed denies", func(t *testing.T) {
		t.Parallel()

		cfg := enabledConfig()
		cfg.FailClosed = true
		g, err := guard.New(cfg, guard.NewMemorySource())
		require.NoError(t, err)

		ok, reason, err := g.Allowed(context.Background(), tr, ent, guard.NewCheck("ghost", false))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Contains(t, reason, "ghost")
	})

	t.Run("store failure is an error, not a denial", func(t *testing.T) {
		t.Parallel()

		g, err := guard.New(enabledConfig(), failingSource{err: errors.New("connection refused")})
		require.NoError(t, err)

		ok, _, err := g.Allowed(context.Background(), tr, ent, guard.NewCheck("someone", false))
		require.Error(t, err)
		assert.False(t, ok)
	})
}

func TestGuard_Allowed_LegacyPath(t *testing.T) {
	t.Parallel()

	source := guard.NewMemorySource()
	source.Put(guard.Actor{ID: "alice", Permissions: []string{"transition_order_approve"}})
	source.Put(guard.Actor{ID: "bob", Groups: []guard.Group{
		{Name: "managers", Permissions: []string{"transition_order_approve"}},
	}})
	source.Put(guard.Actor{ID: "carol"})

	g, err := guard.New(enabledConfig(), source)
	require.NoError(t, err)

	ent := testEntity{id: "42", entityType: "order"}
	gated := &definition.Transition{
		Trigger: "approve",
		Meta:    definition.Meta{Permissions: []string{"transition_order_approve"}},
	}
	open := &definition.Transition{Trigger: "submit"}

	t.Run("empty permission list allows anyone", func(t *testing.T) {
		t.Parallel()

		ok, _, err := g.Allowed(context.Background(), open, ent, guard.NewCheck("carol", false))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("direct permission allows", func(t *testing.T) {
		t.Parallel()

		ok, _, err := g.Allowed(context.Background(), gated, ent, guard.NewCheck("alice", false))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("group permission allows", func(t *testing.T) {
		t.Parallel()

		ok, _, err := g.Allowed(context.Background(), gated, ent, guard.NewCheck("bob", false))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no permission denies", func(t *testing.T) {
		t.Parallel()

		ok, reason, err := g.Allowed(context.Background(), gated, ent, guard.NewCheck("carol", false))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Contains(t, reason, "carol")
	})
}

func TestGuard_Allowed_PrincipalPath(t *testing.T) {
	t.Parallel()

	source := guard.NewMemorySource()
	// admin may manage other users through the variant-scoped global permission.
	source.Put(guard.Actor{ID: "admin", Groups: []guard.Group{
		{Name: "user-admins", Permissions: []string{"state_machine_user_default"}},
	}})
	// member's only group holds no lifecycle-namespaced permission at all, so
	// it is unrestricted for self-transitions.
	source.Put(guard.Actor{ID: "member", Groups: []guard.Group{
		{Name: "staff", Permissions: []string{"view_reports"}},
	}})
	// restricted belongs only to groups that do hold namespaced permissions.
	source.Put(guard.Actor{ID: "restricted", Groups: []guard.Group{
		{Name: "limited", Permissions: []string{"state_machine_user_premium"}},
	}})
	// loner has no groups.
	source.Put(guard.Actor{ID: "loner"})

	g, err := guard.New(enabledConfig(), source)
	require.NoError(t, err)

	tr := &definition.Transition{Trigger: "suspend"}

	t.Run("other principal requires global permission", func(t *testing.T) {
		t.Parallel()

		target := testEntity{id: "member", entityType: "user", variant: "default"}

		ok, _, err := g.Allowed(context.Background(), tr, target, guard.NewCheck("admin", false))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("other principal without global permission denied", func(t *testing.T) {
		t.Parallel()

		target := testEntity{id: "admin", entityType: "user", variant: "default"}
		ok, reason, err := g.Allowed(context.Background(), tr, target, guard.NewCheck("member", false))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Contains(t, reason, "state_machine_user_default")
	})

	t.Run("global permission is variant scoped", func(t *testing.T) {
		t.Parallel()

		// admin holds the default-variant permission only.
		target := testEntity{id: "member", entityType: "user", variant: "premium"}
		ok, _, err := g.Allowed(context.Background(), tr, target, guard.NewCheck("admin", false))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("self transition via unrestricted group", func(t *testing.T) {
		t.Parallel()

		self := testEntity{id: "member", entityType: "user", variant: "default"}
		ok, _, err := g.Allowed(context.Background(), tr, self, guard.NewCheck("member", false))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("self transition denied when every group is namespaced", func(t *testing.T) {
		t.Parallel()

		self := testEntity{id: "restricted", entityType: "user", variant: "default"}
		ok, reason, err := g.Allowed(context.Background(), tr, self, guard.NewCheck("restricted", false))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Contains(t, reason, "unrestricted")
	})

	t.Run("self transition denied without groups", func(t *testing.T) {
		t.Parallel()

		self := testEntity{id: "loner", entityType: "user", variant: "default"}
		ok, _, err := g.Allowed(context.Background(), tr, self, guard.NewCheck("loner", false))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCheck_MemoizesLookup(t *testing.T) {
	t.Parallel()

	calls := 0
	source := countingSource{calls: &calls}

	g, err := guard.New(enabledConfig(), source)
	require.NoError(t, err)

	tr := &definition.Transition{Trigger: "submit"}
	ent := testEntity{id: "42", entityType: "order"}
	chk := guard.NewCheck("alice", false)

	for i := 0; i < 3; i++ {
		_, _, err := g.Allowed(context.Background(), tr, ent, chk)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

type countingSource struct{ calls *int }

func (s countingSource) Actor(ctx context.Context, id string) (*guard.Actor, error) {
	*s.calls++
	return &guard.Actor{ID: id}, nil
}
