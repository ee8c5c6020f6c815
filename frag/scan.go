package frag

import (
	"regexp"
	"strings"
)

// IncludeSuffix is appended to every include target to form the sibling file name.
const IncludeSuffix = ".glsl"

var (
	includeRe = regexp.MustCompile(`^\s*#include\s+(\S+)\s*(?://.*)?$`)
	controlRe = regexp.MustCompile(`^\s*uniform\s+(float|int|bool|vec3)\s+(\w+)\s*;\s*(?://(.*))?$`)

	// A key token starts an annotation pair. Values run until the next key token,
	// so comma separated values such as colors stay intact.
	annotationKeyRe = regexp.MustCompile(`(\w+)\s*:`)
)

// LineKind classifies a scanned source line.
type LineKind int

const (
	LineText LineKind = iota
	LineInclude
	LineControl
)

// Directive is the result of scanning one line.
type Directive struct {
	Kind    LineKind
	Include string  // file name for LineInclude, suffix already appended
	Control Control // set for LineControl
}

// Scan classifies a single line. Control recognition runs first and wins;
// include recognition only applies to lines that are not control declarations.
func Scan(line string) (Directive, error) {
	ctl, ok, err := ScanControl(line)
	if err != nil {
		return Directive{}, err
	}
	if ok {
		return Directive{Kind: LineControl, Control: ctl}, nil
	}

	if inc, ok := ScanInclude(line); ok {
		return Directive{Kind: LineInclude, Include: inc}, nil
	}
	return Directive{Kind: LineText}, nil
}

// ScanInclude recognizes "#include name" and returns "name.glsl".
// Targets containing a path separator are not includes.
func ScanInclude(line string) (string, bool) {
	m := includeRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return "", false
	}
	target := m[1]
	if strings.ContainsAny(target, `/\`) {
		return "", false
	}
	return target + IncludeSuffix, true
}

// ScanControl recognizes an annotated uniform declaration.
// A malformed numeric annotation yields a *ParseError.
func ScanControl(line string) (Control, bool, error) {
	m := controlRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return nil, false, nil
	}

	ctl, err := newControl(m[1], m[2], parseAnnotation(m[3]))
	if err != nil {
		return nil, false, err
	}
	return ctl, true, nil
}

type annotationAttr struct {
	key   string
	value string
}

// parseAnnotation splits "min:0.0, max:2.0, def:0.5" into ordered pairs.
// Text before the first key is ignored.
func parseAnnotation(comment string) []annotationAttr {
	idx := annotationKeyRe.FindAllStringSubmatchIndex(comment, -1)
	if len(idx) == 0 {
		return nil
	}

	attrs := make([]annotationAttr, 0, len(idx))
	for i, m := range idx {
		end := len(comment)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		value := strings.TrimSpace(comment[m[1]:end])
		value = strings.TrimSpace(strings.TrimRight(value, ", "))
		attrs = append(attrs, annotationAttr{key: comment[m[2]:m[3]], value: value})
	}
	return attrs
}
