package session

import (
	"errors"
	"sync"
	"testing"
	"testing/fstest"

	"shaderworkshop/watch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records pushed messages and optionally fails.
type fakeSender struct {
	mu   sync.Mutex
	msgs []any
	err  error
}

func (f *fakeSender) Send(msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeSender) take() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.msgs
	f.msgs = nil
	return msgs
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func shaderFS() fstest.MapFS {
	return fstest.MapFS{
		"a.frag":    {Data: []byte("#include b\nvoid main() {}\n")},
		"b.glsl":    {Data: []byte("float b;\n")},
		"c.glsl":    {Data: []byte("float c;\n")},
		"z.frag":    {Data: []byte("void main() {}\n")},
		"notes.txt": {Data: []byte("todo\n")},
	}
}

func selectedReactor(t *testing.T, fsys fstest.MapFS) (*Reactor, *fakeSender) {
	t.Helper()
	out := &fakeSender{}
	r := NewReactor(fsys, out)
	require.NoError(t, r.Refresh())
	r.Select("a.frag")
	out.take()
	return r, out
}

func TestRefreshListsSortedShaders(t *testing.T) {
	out := &fakeSender{}
	r := NewReactor(shaderFS(), out)

	require.NoError(t, r.Refresh())
	assert.Equal(t, []any{ListMessage{Type: TypeList, Frags: []string{"a.frag", "z.frag"}}}, out.take())
	_, ok := r.Selected()
	assert.False(t, ok)
}

func TestUnselectedIgnoresFileEvents(t *testing.T) {
	out := &fakeSender{}
	r := NewReactor(shaderFS(), out)
	require.NoError(t, r.Refresh())
	out.take()

	for _, name := range []string{"a.frag", "b.glsl", "c.glsl", "missing.glsl"} {
		require.NoError(t, r.HandleEvent(watch.Event{Name: name}))
	}
	assert.Empty(t, out.take())
}

func TestSelectComputesReftree(t *testing.T) {
	r, _ := selectedReactor(t, shaderFS())

	name, ok := r.Selected()
	require.True(t, ok)
	assert.Equal(t, "a.frag", name)
	assert.Equal(t, []string{"a.frag", "b.glsl"}, r.Reftree())
}

func TestSelectUnknownIgnored(t *testing.T) {
	r, out := selectedReactor(t, shaderFS())

	r.Select("nope.frag")
	name, _ := r.Selected()
	assert.Equal(t, "a.frag", name)
	assert.Empty(t, out.take())

	fresh := NewReactor(shaderFS(), out)
	fresh.Select("a.frag") // not listed yet
	_, ok := fresh.Selected()
	assert.False(t, ok)
}

func TestReloadOnlyForReftreeMembers(t *testing.T) {
	r, out := selectedReactor(t, shaderFS())

	require.NoError(t, r.HandleEvent(watch.Event{Name: "c.glsl"}))
	assert.Empty(t, out.take())

	require.NoError(t, r.HandleEvent(watch.Event{Name: "b.glsl"}))
	assert.Equal(t, []any{ReloadMessage{Type: TypeReload}}, out.take())

	require.NoError(t, r.HandleEvent(watch.Event{Name: "a.frag"}))
	assert.Equal(t, []any{ReloadMessage{Type: TypeReload}}, out.take())
}

func TestReftreeFollowsEdits(t *testing.T) {
	fsys := shaderFS()
	r, out := selectedReactor(t, fsys)

	fsys["a.frag"] = &fstest.MapFile{Data: []byte("#include c\nvoid main() {}\n")}
	require.NoError(t, r.HandleEvent(watch.Event{Name: "a.frag"}))
	assert.Len(t, out.take(), 1)
	assert.Equal(t, []string{"a.frag", "c.glsl"}, r.Reftree())

	require.NoError(t, r.HandleEvent(watch.Event{Name: "b.glsl"}))
	assert.Empty(t, out.take())

	require.NoError(t, r.HandleEvent(watch.Event{Name: "c.glsl"}))
	assert.Len(t, out.take(), 1)
}

func TestBrokenIncludeKeepsPreviousReftree(t *testing.T) {
	fsys := shaderFS()
	r, out := selectedReactor(t, fsys)

	fsys["a.frag"] = &fstest.MapFile{Data: []byte("#include b\n#include gone\n")}
	require.NoError(t, r.HandleEvent(watch.Event{Name: "a.frag"}))
	assert.Len(t, out.take(), 1)
	assert.Equal(t, []string{"a.frag", "b.glsl"}, r.Reftree())

	require.NoError(t, r.HandleEvent(watch.Event{Name: "b.glsl"}))
	assert.Len(t, out.take(), 1)
}

func TestDirEventRefreshesAndDropsVanishedSelection(t *testing.T) {
	fsys := shaderFS()
	r, out := selectedReactor(t, fsys)

	fsys["new.frag"] = &fstest.MapFile{Data: []byte("void main() {}\n")}
	require.NoError(t, r.HandleEvent(watch.Event{Dir: true, Name: "new.frag"}))
	assert.Equal(t, []any{ListMessage{Type: TypeList, Frags: []string{"a.frag", "new.frag", "z.frag"}}}, out.take())
	_, ok := r.Selected()
	assert.True(t, ok)

	delete(fsys, "a.frag")
	require.NoError(t, r.HandleEvent(watch.Event{Dir: true, Name: "a.frag"}))
	assert.Equal(t, []any{ListMessage{Type: TypeList, Frags: []string{"new.frag", "z.frag"}}}, out.take())
	_, ok = r.Selected()
	assert.False(t, ok)
	assert.Empty(t, r.Reftree())

	require.NoError(t, r.HandleEvent(watch.Event{Name: "b.glsl"}))
	assert.Empty(t, out.take())
}

func TestHandleMessage(t *testing.T) {
	out := &fakeSender{}
	r := NewReactor(shaderFS(), out)
	require.NoError(t, r.Refresh())

	require.NoError(t, r.HandleMessage([]byte(`{"pick":"z.frag"}`)))
	name, _ := r.Selected()
	assert.Equal(t, "z.frag", name)
	assert.Equal(t, []string{"z.frag"}, r.Reftree())

	for _, raw := range []string{`not json`, `{"other":1}`, `{"pick":3}`} {
		err := r.HandleMessage([]byte(raw))
		var pe *ProtocolError
		require.True(t, errors.As(err, &pe), raw)
		assert.Equal(t, raw, pe.Raw)
	}
	name, _ = r.Selected()
	assert.Equal(t, "z.frag", name)
}

func TestSendFailureIsReturned(t *testing.T) {
	r, out := selectedReactor(t, shaderFS())
	out.err = errors.New("client gone")

	assert.Error(t, r.HandleEvent(watch.Event{Name: "b.glsl"}))
	assert.Error(t, r.HandleEvent(watch.Event{Dir: true}))
	assert.NoError(t, r.HandleEvent(watch.Event{Name: "c.glsl"}))
}

func TestObserverSeesTransitions(t *testing.T) {
	out := &fakeSender{}
	r := NewReactor(shaderFS(), out)

	var kinds []string
	r.observe = func(kind, shader string) { kinds = append(kinds, kind+":"+shader) }

	require.NoError(t, r.Refresh())
	r.Select("a.frag")
	require.NoError(t, r.HandleEvent(watch.Event{Name: "b.glsl"}))
	assert.Equal(t, []string{"list:", "select:a.frag", "reload:a.frag"}, kinds)
}
