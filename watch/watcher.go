// Package watch turns filesystem notifications for a shader directory into
// the coarse change events consumed by live sessions.
package watch

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Event is a change notification for the watched directory.
type Event struct {
	Dir  bool   // the set of files may have changed
	Name string // base name of the affected file
}

func (e Event) String() string {
	if e.Dir {
		return "dir:" + e.Name
	}
	return "file:" + e.Name
}

// Watcher watches a single directory, non-recursively.
type Watcher struct {
	dir    string
	fw     *fsnotify.Watcher
	events chan Event
}

// New starts watching dir. Events are produced once Run is called.
func New(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, serr.Wrap(err, "failed to create filesystem watcher")
	}

	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, serr.Wrap(err, "failed to watch directory", "dir", dir)
	}

	return &Watcher{
		dir:    dir,
		fw:     fw,
		events: make(chan Event, 64),
	}, nil
}

// Events is the upstream channel fed by Run. It is closed when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run translates fsnotify events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	logger.Info("Watching shader directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			for _, e := range Translate(ev) {
				logger.Debug("Filesystem change", "event", e.String(), "op", ev.Op.String())
				select {
				case w.events <- e:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			logger.LogErr(err, "filesystem watcher error")
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// Translate maps one fsnotify event to zero or more change events.
// A created file both changes the listing and may replace a tracked file
// (editors often save by renaming a temp file over the original).
// Removals and renames only change the listing. Chmod is ignored.
func Translate(ev fsnotify.Event) []Event {
	name := filepath.Base(ev.Name)
	if ignored(name) {
		return nil
	}

	switch {
	case ev.Has(fsnotify.Create):
		return []Event{{Dir: true, Name: name}, {Name: name}}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return []Event{{Dir: true, Name: name}}
	case ev.Has(fsnotify.Write):
		return []Event{{Name: name}}
	}
	return nil
}

// ignored filters editor droppings such as swap and backup files.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}
