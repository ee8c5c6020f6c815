// Package frag assembles modular GLSL fragment shaders.
//
// A shader tree is a directory of sources where "#include name" pulls in the
// sibling file "name.glsl". Assembly flattens the tree depth first, including
// each file at most once, optionally emitting #line directives so compiler
// diagnostics point back at the original file. Annotated uniform declarations
// are collected along the way as UI controls.
package frag

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Header is the preamble prepended to assembled fragment shaders.
const Header = `#version 300 es
#if GL_FRAGMENT_PRECISION_HIGH
precision highp float;
precision highp int;
#else
precision mediump float;
precision mediump int;
#endif
out vec4 out_color;
uniform float time;
uniform vec2 resolution;
uniform vec2 mouse;
`

// Options control the shape of an assembled fragment.
type Options struct {
	Header         bool // prepend the fixed preamble
	LineDirectives bool // wrap each inclusion with #line markers
}

// Fragment is an assembled shader.
type Fragment struct {
	Header   string
	Body     string
	Files    []string // by FileId, index 0 is the root
	Controls []Control
}

// Content returns the compilable source.
func (f *Fragment) Content() string {
	return f.Header + f.Body
}

// Refs returns the included file names in first-seen order, root excluded.
func (f *Fragment) Refs() []string {
	if len(f.Files) < 2 {
		return []string{}
	}
	return append([]string(nil), f.Files[1:]...)
}

// visitState is threaded through the depth-first walk of one assembly.
type visitState struct {
	fsys     fs.FS
	opts     Options
	seen     map[string]int // file name -> FileId
	next     int            // last FileId handed out
	controls []Control
	out      strings.Builder
}

// Read assembles the shader rooted at root inside fsys.
// Any unreadable source yields an *IOError and a malformed control annotation a *ParseError;
// no partial fragment is returned in either case.
func Read(fsys fs.FS, root string, opts Options) (*Fragment, error) {
	st := &visitState{
		fsys: fsys,
		opts: opts,
		seen: make(map[string]int),
	}

	if err := st.visit(root, 0); err != nil {
		return nil, err
	}

	files := make([]string, len(st.seen))
	for name, fid := range st.seen {
		files[fid] = name
	}

	frag := &Fragment{
		Body:     st.out.String(),
		Files:    files,
		Controls: st.controls,
	}
	if frag.Controls == nil {
		frag.Controls = []Control{}
	}
	if opts.Header {
		frag.Header = Header
	}

	logger.Debug("Assembled shader", "root", root, "files", len(files), "controls", len(frag.Controls))
	return frag, nil
}

// ReadFile assembles a shader from an OS path; includes resolve next to it.
func ReadFile(filePath string, opts Options) (*Fragment, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, &IOError{Path: filePath, Err: err}
	}
	return Read(os.DirFS(filepath.Dir(abs)), filepath.Base(abs), opts)
}

func (st *visitState) visit(p string, fid int) error {
	st.seen[path.Base(p)] = fid

	lines, err := readLines(st.fsys, p)
	if err != nil {
		return err
	}

	for i, line := range lines {
		d, err := Scan(line)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.File = p
				pe.Line = i + 1
			}
			return err
		}

		switch d.Kind {
		case LineInclude:
			if _, ok := st.seen[d.Include]; ok {
				continue // include once
			}
			st.next++
			child := st.next
			if st.opts.LineDirectives {
				fmt.Fprintf(&st.out, "#line 1 %d\n", child)
			}
			if err := st.visit(path.Join(path.Dir(p), d.Include), child); err != nil {
				return err
			}
			if st.opts.LineDirectives {
				fmt.Fprintf(&st.out, "#line %d %d\n", i+2, fid)
			}
			continue

		case LineControl:
			st.controls = append(st.controls, d.Control)
		}

		st.out.WriteString(line)
		st.out.WriteByte('\n')
	}
	return nil
}

// readLines returns the lines of a source without their trailing newline.
func readLines(fsys fs.FS, p string) ([]string, error) {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, &IOError{Path: p, Err: serr.Wrap(err, "failed to read shader source")}
	}

	if len(data) == 0 {
		return nil, nil
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n"), nil
}
