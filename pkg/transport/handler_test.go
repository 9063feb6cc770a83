package transport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statekit/statekit/pkg/definition"
	"github.com/statekit/statekit/pkg/dispatch"
	"github.com/statekit/statekit/pkg/engine"
	"github.com/statekit/statekit/pkg/guard"
	"github.com/statekit/statekit/pkg/transport"
)

type mapLoader struct {
	docs map[string]string
}

func (l mapLoader) Load(entityType, variant string) (*definition.Definition, error) {
	raw, ok := l.docs[entityType+"/"+variant]
	if !ok {
		return nil, &definition.NotFoundError{EntityType: entityType, Variant: variant}
	}
	return definition.Parse([]byte(raw), entityType, variant)
}

type order struct {
	id    string
	state string
}

func (o *order) ID() string         { return o.id }
func (o *order) EntityType() string { return "order" }
func (o *order) Variant() string    { return "default" }
func (o *order) State() string      { return o.state }
func (o *order) SetState(s string)  { o.state = s }

type orderStore struct {
	orders  map[string]*order
	saveErr error
	saved   []string
}

func (s *orderStore) Get(ctx context.Context, entityType, id string) (engine.Entity, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, transport.ErrEntityNotFound
	}
	return o, nil
}

func (s *orderStore) Save(ctx context.Context, e engine.Entity) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, e.ID())
	return nil
}

const orderDoc = `
states: [draft, submitted, approved]
transitions:
  - trigger: submit
    source: draft
    dest: submitted
    meta:
      api_trigger: true
  - trigger: send_back_
    source: submitted
    dest: draft
    meta:
      api_trigger: true
  - trigger: approve
    source: submitted
    dest: approved
    meta:
      api_trigger: true
      permissions: [transition_order_approve]
  - trigger: internal_sync
    source: draft
    dest: draft
`

type fixture struct {
	srv   *httptest.Server
	store *orderStore
}

func newFixture(t *testing.T, opts ...func(*dispatch.Dispatcher)) fixture {
	t.Helper()

	defs := definition.NewStore(mapLoader{docs: map[string]string{
		"order/default": orderDoc,
	}})

	source := guard.NewMemorySource()
	source.Put(guard.Actor{ID: "approver", Permissions: []string{"transition_order_approve"}})
	source.Put(guard.Actor{ID: "clerk"})
	g, err := guard.New(guard.Config{Enabled: true, PrincipalType: "user"}, source)
	require.NoError(t, err)

	dispatcher := dispatch.NewDispatcher(dispatch.NewRegistry())
	for _, opt := range opts {
		opt(dispatcher)
	}
	eng := engine.New(defs, g, dispatcher)

	store := &orderStore{orders: map[string]*order{
		"1": {id: "1", state: "draft"},
		"2": {id: "2", state: "submitted"},
	}}

	h := transport.NewHandler(eng, store, defs, nil)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return fixture{srv: srv, store: store}
}

func (f fixture) post(t *testing.T, path, actor string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if actor != "" {
		req.Header.Set(transport.ActorHeader, actor)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandler_Transition(t *testing.T) {
	t.Parallel()

	t.Run("success persists and reports the new state", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.post(t, "/order/1/transition/submit", "clerk", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "submitted", body["new_state"])
		assert.Equal(t, []string{"1"}, f.store.saved)
	})

	t.Run("hyphenated trigger name maps to underscored trigger", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.post(t, "/order/2/transition/send-back", "clerk", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "draft", decode(t, resp)["new_state"])
	})

	t.Run("non-api trigger is unreachable", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.post(t, "/order/1/transition/internal-sync", "clerk", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown entity", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.post(t, "/order/404/transition/submit", "clerk", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("wrong state conflicts", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.post(t, "/order/2/transition/submit", "clerk", nil)
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, "submit", body["transition"])
		assert.NotEmpty(t, body["conflict"])
		assert.Empty(t, f.store.saved)
	})

	t.Run("permission denial is forbidden", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.post(t, "/order/2/transition/approve", "clerk", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Empty(t, f.store.saved)
	})

	t.Run("permitted actor approves", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.post(t, "/order/2/transition/approve", "approver", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "approved", decode(t, resp)["new_state"])
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/order/1/transition/submit", bytes.NewBufferString("{not json"))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("save failure is a server error", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.store.saveErr = errors.New("db down")
		resp := f.post(t, "/order/1/transition/submit", "clerk", nil)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("listener failure still persists", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, func(d *dispatch.Dispatcher) {
			d.AddListener(dispatch.ListenerFunc(func(ctx context.Context, ev dispatch.Event) error {
				return errors.New("projection failed")
			}))
		})
		resp := f.post(t, "/order/1/transition/submit", "clerk", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []string{"1"}, f.store.saved)
	})
}

func TestHandler_AvailableTransitions(t *testing.T) {
	t.Parallel()

	t.Run("lists triggers open to the actor", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp, err := http.Get(f.srv.URL + "/order/2/transitions")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode(t, resp)
		// System call without an actor passes the guard by default.
		assert.ElementsMatch(t, []any{"send_back_", "approve"}, body["transitions"])
	})

	t.Run("actor without permission sees fewer", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/order/2/transitions", nil)
		require.NoError(t, err)
		req.Header.Set(transport.ActorHeader, "clerk")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode(t, resp)
		assert.ElementsMatch(t, []any{"send_back_"}, body["transitions"])
	})
}
