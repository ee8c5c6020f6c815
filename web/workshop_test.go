package web

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"shaderworkshop/broadcast"
	"shaderworkshop/db"
	"shaderworkshop/frag"
	"shaderworkshop/fragcache"
	"shaderworkshop/session"
	"shaderworkshop/watch"

	"github.com/rohanthewiz/rweb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	recs   []db.Assembly
	events []db.SessionEvent
	err    error
}

func (m *memStore) RecordAssembly(a db.Assembly) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, a)
	return nil
}

func (m *memStore) AssemblyStats() (db.AssemblyStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return db.AssemblyStats{Total: int64(len(m.recs))}, m.err
}

func (m *memStore) ReloadCounts() (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int64{}
	for _, e := range m.events {
		if e.Kind == "reload" {
			counts[e.Shader]++
		}
	}
	return counts, m.err
}

func (m *memStore) SessionEvents(sessionID string) ([]db.SessionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.SessionEvent
	for _, e := range m.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, m.err
}

func newTestWorkshop(t *testing.T, store Store) *Workshop {
	t.Helper()
	fsys := fstest.MapFS{
		"main.frag":   {Data: []byte("#include lib\nuniform float speed; // min:0, max:4, def:1\nvoid main() {}\n")},
		"lib.glsl":    {Data: []byte("float lib;\n")},
		"bad.frag":    {Data: []byte("uniform int n; // def:many\n")},
		"broken.frag": {Data: []byte("#include nowhere\n")},
	}
	cache, err := fragcache.New(fsys, frag.Options{Header: true, LineDirectives: true}, 8)
	require.NoError(t, err)
	bcast := broadcast.New(make(chan watch.Event))
	reg := session.NewRegistry(fsys, bcast, nil)
	t.Cleanup(reg.Shutdown)

	return NewWorkshop(Deps{
		ShaderDir:   "shaders",
		FS:          fsys,
		Cache:       cache,
		Registry:    reg,
		Broadcaster: bcast,
		Store:       store,
	})
}

func TestShaderName(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "main", want: "main.frag"},
		{raw: "main.frag", want: "main.frag"},
		{raw: " main ", want: "main.frag"},
		{raw: "", wantErr: true},
		{raw: "../etc/passwd", wantErr: true},
		{raw: `dir\main`, wantErr: true},
		{raw: ".hidden", wantErr: true},
	}

	for _, tt := range tests {
		got, err := shaderName(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, errBadName, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestFragmentPayload(t *testing.T) {
	store := &memStore{}
	w := newTestWorkshop(t, store)

	p, err := w.Fragment("main")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Content, "#version 300 es\n"))
	assert.Contains(t, p.Content, "#line 1 1\nfloat lib;\n#line 2 0\n")
	assert.Equal(t, []string{"lib.glsl"}, p.Refs)
	require.Len(t, p.Controls, 1)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []any{"lib.glsl"}, decoded["refs"])
	ctl := decoded["controls"].([]any)[0].(map[string]any)
	assert.Equal(t, "f32", ctl["type"])
	assert.Equal(t, "speed", ctl["name"])
	assert.Equal(t, 1.0, ctl["val"])

	_, err = w.Fragment("main.frag")
	require.NoError(t, err)

	require.Len(t, store.recs, 2)
	assert.False(t, store.recs[0].Cached)
	assert.True(t, store.recs[1].Cached)
	assert.Equal(t, 2, store.recs[0].Files)
	assert.Equal(t, 1, store.recs[0].Controls)
}

func TestFragmentEmptyListsAreArrays(t *testing.T) {
	w := newTestWorkshop(t, nil)
	w.FS.(fstest.MapFS)["plain.frag"] = &fstest.MapFile{Data: []byte("void main() {}\n")}

	p, err := w.Fragment("plain")
	require.NoError(t, err)
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"refs":[]`)
	assert.Contains(t, string(raw), `"controls":[]`)
}

func TestFragmentErrorStatus(t *testing.T) {
	store := &memStore{}
	w := newTestWorkshop(t, store)

	tests := []struct {
		name string
		code int
		kind string
	}{
		{name: "missing", code: 404, kind: "io"},
		{name: "broken", code: 404, kind: "io"},
		{name: "bad", code: 422, kind: "parse"},
		{name: "../x", code: 400},
	}

	for _, tt := range tests {
		_, err := w.Fragment(tt.name)
		require.Error(t, err, tt.name)
		assert.Equal(t, tt.code, errorStatus(err), tt.name)
	}

	require.Len(t, store.recs, 3)
	for i, tt := range tests[:3] {
		assert.Equal(t, tt.kind, store.recs[i].ErrorKind, tt.name)
		assert.NotEmpty(t, store.recs[i].Error)
	}
	assert.Equal(t, 500, errorStatus(errors.New("other")))
}

func TestStatusAndStats(t *testing.T) {
	w := newTestWorkshop(t, nil)

	st := w.Status()
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, "shaders", st.ShaderDir)
	assert.Equal(t, 0, st.Sessions)
	assert.False(t, st.Persistence)

	stats, err := w.Stats()
	require.NoError(t, err)
	assert.Nil(t, stats.Assemblies)

	store := &memStore{}
	w = newTestWorkshop(t, store)
	_, err = w.Fragment("main")
	require.NoError(t, err)
	stats, err = w.Stats()
	require.NoError(t, err)
	require.NotNil(t, stats.Assemblies)
	assert.Equal(t, int64(1), stats.Assemblies.Total)
	assert.Equal(t, int64(1), stats.Cache.Misses)

	store.err = errors.New("db down")
	_, err = w.Stats()
	assert.Error(t, err)
}

func TestStatsIncludesReloadCounts(t *testing.T) {
	store := &memStore{events: []db.SessionEvent{
		{SessionID: "s1", Kind: "select", Shader: "main.frag"},
		{SessionID: "s1", Kind: "reload", Shader: "main.frag"},
		{SessionID: "s2", Kind: "reload", Shader: "main.frag"},
		{SessionID: "s2", Kind: "reload", Shader: "bad.frag"},
	}}
	w := newTestWorkshop(t, store)

	stats, err := w.Stats()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"main.frag": 2, "bad.frag": 1}, stats.Reloads)
}

func TestSessionEvents(t *testing.T) {
	_, err := newTestWorkshop(t, nil).SessionEvents("s1")
	require.ErrorIs(t, err, errNoPersistence)
	assert.Equal(t, 404, errorStatus(err))

	store := &memStore{events: []db.SessionEvent{
		{SessionID: "s1", Kind: "open"},
		{SessionID: "s2", Kind: "open"},
		{SessionID: "s1", Kind: "select", Shader: "main.frag"},
	}}
	w := newTestWorkshop(t, store)
	events, err := w.SessionEvents("s1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "select", events[1].Kind)

	store.err = errors.New("db down")
	_, err = w.SessionEvents("s1")
	assert.Error(t, err)
}

func TestSSESender(t *testing.T) {
	s := newSSESender()
	require.NoError(t, s.Send(session.ReloadMessage{Type: session.TypeReload}))

	ev := (<-s.ch).(rweb.SSEvent)
	assert.Equal(t, "message", ev.Type)
	data, ok := ev.Data.(string)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"reload"}`, data)
}

func TestSSESenderTimesOut(t *testing.T) {
	s := &sseSender{ch: make(chan any), timeout: 10 * time.Millisecond}
	assert.Error(t, s.Send(session.ReloadMessage{Type: session.TypeReload}))
}

func TestIndexPage(t *testing.T) {
	html := indexPage()
	for _, id := range []string{"files", "stage", "fragControls", "errorBlock", "refList", "resSelect", "aspectSelect", "playPause"} {
		assert.Contains(t, html, `id="`+id+`"`)
	}
	assert.Contains(t, html, "new EventSource(")
}
