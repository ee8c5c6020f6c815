// Package session keeps live preview clients in sync with the shader directory.
//
// Each connected client gets a Session running its own Reactor. The reactor
// tracks which shader the client selected and the reftree of that shader,
// and turns filesystem events into list refreshes or reload signals.
package session

import (
	"io/fs"
	"maps"
	"slices"
	"sort"
	"strings"

	"shaderworkshop/frag"
	"shaderworkshop/watch"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ShaderSuffix identifies selectable shaders in the shader directory.
const ShaderSuffix = ".frag"

// Sender delivers push messages to one client.
type Sender interface {
	Send(msg any) error
}

// Reactor is the per-session state machine: Unselected until a known shader is
// picked, then Selected(name, reftree). It is not safe for concurrent use; a
// Session drives it from a single goroutine.
type Reactor struct {
	fsys fs.FS
	out  Sender

	frags    []string
	selected string // empty when unselected
	reftree  map[string]struct{}

	// observe, when set, is told about every transition (kind, shader)
	observe func(kind, shader string)
}

func NewReactor(fsys fs.FS, out Sender) *Reactor {
	return &Reactor{
		fsys:    fsys,
		out:     out,
		reftree: map[string]struct{}{},
	}
}

// Selected returns the selected shader name, if any.
func (r *Reactor) Selected() (string, bool) {
	return r.selected, r.selected != ""
}

// Reftree returns the sorted reftree of the selection (empty when unselected).
func (r *Reactor) Reftree() []string {
	return slices.Sorted(maps.Keys(r.reftree))
}

// Refresh re-lists the available shaders, drops a selection that vanished and
// pushes the list to the client. A listing failure keeps the previous list;
// only delivery failures are returned.
func (r *Reactor) Refresh() error {
	frags, err := ListShaders(r.fsys)
	if err != nil {
		logger.LogErr(err, "failed to list shaders, keeping previous list")
	} else {
		r.frags = frags
	}

	if r.selected != "" && !slices.Contains(r.frags, r.selected) {
		logger.Debug("Selected shader vanished", "shader", r.selected)
		r.selected = ""
		r.reftree = map[string]struct{}{}
		r.notify("unselect", "")
	}

	r.notify(TypeList, "")
	return r.out.Send(newListMessage(r.frags))
}

// Select switches to name if it is currently listed; unknown names are ignored.
func (r *Reactor) Select(name string) {
	if !slices.Contains(r.frags, name) {
		logger.Debug("Ignoring selection of unlisted shader", "shader", name)
		return
	}

	r.selected = name
	r.reftree = map[string]struct{}{}
	r.updateReftree()
	r.notify("select", name)
}

// HandleEvent reacts to one filesystem event. Directory events refresh the
// list; a file event reloads the client only when the file is in the reftree
// of the current selection. Everything else is discarded.
func (r *Reactor) HandleEvent(e watch.Event) error {
	if e.Dir {
		return r.Refresh()
	}
	if r.selected == "" {
		return nil
	}
	if _, ok := r.reftree[e.Name]; !ok {
		return nil
	}

	logger.Debug("Change detected in reftree", "shader", r.selected, "file", e.Name)
	r.updateReftree()
	r.notify(TypeReload, r.selected)
	return r.out.Send(newReloadMessage())
}

// HandleMessage applies an inbound client message.
// A malformed message yields a *ProtocolError and leaves the state untouched.
func (r *Reactor) HandleMessage(raw []byte) error {
	name, err := parsePick(raw)
	if err != nil {
		return err
	}
	r.Select(name)
	return nil
}

// updateReftree recomputes the dependencies of the selection. If they cannot
// be computed the previous reftree is kept, so fixing the broken file still
// triggers a reload.
func (r *Reactor) updateReftree() {
	set, err := frag.DependencySet(r.fsys, r.selected)
	if err != nil {
		logger.LogErr(err, "failed to compute reftree", "shader", r.selected)
		r.reftree[r.selected] = struct{}{}
		return
	}
	r.reftree = set
	logger.Debug("Reftree updated", "shader", r.selected, "files", strings.Join(r.Reftree(), ","))
}

func (r *Reactor) notify(kind, shader string) {
	if r.observe != nil {
		r.observe(kind, shader)
	}
}

// ListShaders returns the sorted names of the selectable shaders in fsys.
func ListShaders(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, serr.Wrap(err, "failed to read shader directory")
	}

	frags := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ShaderSuffix) {
			continue
		}
		frags = append(frags, e.Name())
	}
	sort.Strings(frags)
	return frags, nil
}
