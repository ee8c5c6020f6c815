package web

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"shaderworkshop/broadcast"
	"shaderworkshop/db"
	"shaderworkshop/frag"
	"shaderworkshop/fragcache"
	"shaderworkshop/session"
	"shaderworkshop/watch"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Store persists served assemblies and reads back the session log; *db.DB implements it.
type Store interface {
	RecordAssembly(a db.Assembly) error
	AssemblyStats() (db.AssemblyStats, error)
	ReloadCounts() (map[string]int64, error)
	SessionEvents(sessionID string) ([]db.SessionEvent, error)
}

// Deps are the collaborators the HTTP layer serves from.
type Deps struct {
	ShaderDir   string
	FS          fs.FS
	Cache       *fragcache.Cache
	Registry    *session.Registry
	Broadcaster *broadcast.Broadcaster[watch.Event]
	Store       Store // nil when persistence is off
}

// Workshop holds the handler state of one server.
type Workshop struct {
	Deps
	started time.Time
}

func NewWorkshop(d Deps) *Workshop {
	return &Workshop{Deps: d, started: time.Now()}
}

// FragPayload is the JSON answer of GET /frag/:name.
type FragPayload struct {
	Content  string         `json:"content"`
	Refs     []string       `json:"refs"`
	Controls []frag.Control `json:"controls"`
}

var (
	errBadName       = errors.New("invalid shader name")
	errNoPersistence = errors.New("persistence is disabled")
)

// shaderName maps the route parameter to a root shader file name.
func shaderName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", errBadName, raw)
	}
	if !strings.HasSuffix(name, session.ShaderSuffix) {
		name += session.ShaderSuffix
	}
	return name, nil
}

// errorStatus classifies an assembly error as an HTTP status.
func errorStatus(err error) int {
	var ioErr *frag.IOError
	var parseErr *frag.ParseError
	switch {
	case errors.Is(err, errBadName):
		return 400
	case errors.Is(err, errNoPersistence):
		return 404
	case errors.As(err, &ioErr):
		return 404
	case errors.As(err, &parseErr):
		return 422
	default:
		return 500
	}
}

func errorKind(err error) string {
	var ioErr *frag.IOError
	var parseErr *frag.ParseError
	switch {
	case errors.As(err, &ioErr):
		return "io"
	case errors.As(err, &parseErr):
		return "parse"
	default:
		return "other"
	}
}

// Fragment assembles the shader named by the route parameter and records the outcome.
func (w *Workshop) Fragment(raw string) (FragPayload, error) {
	name, err := shaderName(raw)
	if err != nil {
		return FragPayload{}, err
	}

	start := time.Now()
	f, cached, err := w.Cache.Lookup(name)
	elapsed := time.Since(start)
	if err != nil {
		logger.LogErr(err, "failed to assemble shader", "shader", name)
		w.record(db.Assembly{Shader: name, Duration: elapsed, ErrorKind: errorKind(err), Error: err.Error()})
		return FragPayload{}, err
	}

	p := FragPayload{Content: f.Content(), Refs: f.Refs(), Controls: f.Controls}
	if p.Refs == nil {
		p.Refs = []string{}
	}
	if p.Controls == nil {
		p.Controls = []frag.Control{}
	}

	logger.Debug("Shader assembled", "shader", name, "files", len(f.Files), "cached", cached, "took", elapsed.String())
	w.record(db.Assembly{
		Shader:   name,
		Files:    len(f.Files),
		Controls: len(f.Controls),
		Bytes:    len(p.Content),
		Duration: elapsed,
		Cached:   cached,
	})
	return p, nil
}

func (w *Workshop) record(a db.Assembly) {
	if w.Store == nil {
		return
	}
	if err := w.Store.RecordAssembly(a); err != nil {
		logger.LogErr(err, "failed to record assembly", "shader", a.Shader)
	}
}

// Status summarizes the running server.
type Status struct {
	Status      string `json:"status"`
	ShaderDir   string `json:"shader_dir"`
	Sessions    int    `json:"sessions"`
	Subscribers int    `json:"subscribers"`
	Persistence bool   `json:"persistence"`
	Uptime      string `json:"uptime"`
}

func (w *Workshop) Status() Status {
	return Status{
		Status:      "ok",
		ShaderDir:   w.ShaderDir,
		Sessions:    w.Registry.Len(),
		Subscribers: w.Broadcaster.Len(),
		Persistence: w.Store != nil,
		Uptime:      time.Since(w.started).Round(time.Second).String(),
	}
}

// Stats combines cache usage and, when persistence is on, the assembly log
// summary and the reloads each shader triggered.
type Stats struct {
	Cache      fragcache.Stats   `json:"cache"`
	Assemblies *db.AssemblyStats `json:"assemblies"`
	Reloads    map[string]int64  `json:"reloads,omitempty"`
}

func (w *Workshop) Stats() (Stats, error) {
	st := Stats{Cache: w.Cache.Stats()}
	if w.Store == nil {
		return st, nil
	}
	as, err := w.Store.AssemblyStats()
	if err != nil {
		return st, serr.Wrap(err, "failed to read assembly stats")
	}
	st.Assemblies = &as

	reloads, err := w.Store.ReloadCounts()
	if err != nil {
		return st, serr.Wrap(err, "failed to read reload counts")
	}
	st.Reloads = reloads
	return st, nil
}

// SessionEvents returns the recorded transitions of one session.
func (w *Workshop) SessionEvents(id string) ([]db.SessionEvent, error) {
	if w.Store == nil {
		return nil, errNoPersistence
	}
	events, err := w.Store.SessionEvents(id)
	if err != nil {
		return nil, serr.Wrap(err, "failed to read session events", "session", id)
	}
	return events, nil
}
