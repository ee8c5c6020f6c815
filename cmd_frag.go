package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"shaderworkshop/frag"
	"shaderworkshop/session"

	"github.com/rohanthewiz/serr"
	"github.com/spf13/cobra"
)

var flagHeader bool

var fragCmd = &cobra.Command{
	Use:   "frag <shader.frag>",
	Short: "Print the combined shader",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printFrag(cmd.OutOrStdout(), args[0], flagHeader)
	},
}

var depsCmd = &cobra.Command{
	Use:   "deps <shader.frag>",
	Short: "Print the files a shader is assembled from, root first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printDeps(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	fragCmd.Flags().BoolVar(&flagHeader, "header", false, "include the shader header")
}

func checkFragPath(path string) error {
	if !strings.HasSuffix(path, session.ShaderSuffix) {
		return serr.F("fragment must have a %s extension: %s", session.ShaderSuffix, path)
	}
	return nil
}

// printFrag writes the assembled shader without line directives, trailing whitespace trimmed.
func printFrag(w io.Writer, path string, header bool) error {
	if err := checkFragPath(path); err != nil {
		return err
	}
	f, err := frag.ReadFile(path, frag.Options{Header: header})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, strings.TrimRightFunc(f.Content(), unicode.IsSpace))
	return err
}

func printDeps(w io.Writer, path string) error {
	if err := checkFragPath(path); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return serr.Wrap(err, "failed to resolve shader path", "path", path)
	}
	name := filepath.Base(abs)
	deps, err := frag.Dependencies(os.DirFS(filepath.Dir(abs)), name)
	if err != nil {
		return err
	}
	for _, n := range append([]string{name}, deps...) {
		if _, err := fmt.Fprintln(w, n); err != nil {
			return err
		}
	}
	return nil
}
