package frag

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Control kinds as exposed to the browser client
const (
	KindInt   = "i32"
	KindFloat = "f32"
	KindBool  = "bool"
	KindColor = "color"
)

// Control is a uniform declaration annotated for exposure as a UI control.
// The set of implementations is closed: IntControl, FloatControl, BoolControl, ColorControl.
type Control interface {
	ControlName() string
	Kind() string
	control()
}

type IntControl struct {
	Name string
	Min  int
	Max  int
	Val  int
}

type FloatControl struct {
	Name string
	Min  float64
	Max  float64
	Val  float64
}

type BoolControl struct {
	Name string
	Val  bool
}

// ColorControl holds its default as a "#rrggbb" string.
type ColorControl struct {
	Name string
	Val  string
}

func (c IntControl) ControlName() string   { return c.Name }
func (c FloatControl) ControlName() string { return c.Name }
func (c BoolControl) ControlName() string  { return c.Name }
func (c ColorControl) ControlName() string { return c.Name }

func (IntControl) Kind() string   { return KindInt }
func (FloatControl) Kind() string { return KindFloat }
func (BoolControl) Kind() string  { return KindBool }
func (ColorControl) Kind() string { return KindColor }

func (IntControl) control()   {}
func (FloatControl) control() {}
func (BoolControl) control()  {}
func (ColorControl) control() {}

func (c IntControl) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Name string `json:"name"`
		Min  int    `json:"min"`
		Max  int    `json:"max"`
		Val  int    `json:"val"`
	}{KindInt, c.Name, c.Min, c.Max, c.Val})
}

func (c FloatControl) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string  `json:"type"`
		Name string  `json:"name"`
		Min  float64 `json:"min"`
		Max  float64 `json:"max"`
		Val  float64 `json:"val"`
	}{KindFloat, c.Name, c.Min, c.Max, c.Val})
}

func (c BoolControl) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Name string `json:"name"`
		Val  bool   `json:"val"`
	}{KindBool, c.Name, c.Val})
}

func (c ColorControl) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Name string `json:"name"`
		Val  string `json:"val"`
	}{KindColor, c.Name, c.Val})
}

// newControl binds a GLSL uniform type to its control variant, applying annotation overrides.
func newControl(glslType, name string, attrs []annotationAttr) (Control, error) {
	switch glslType {
	case "int":
		c := IntControl{Name: name, Min: 0, Max: 100}
		for _, a := range attrs {
			var dst *int
			switch a.key {
			case "min":
				dst = &c.Min
			case "max":
				dst = &c.Max
			case "def":
				dst = &c.Val
			default:
				continue
			}
			v, err := strconv.Atoi(a.value)
			if err != nil {
				return nil, &ParseError{Key: a.key, Value: a.value, Err: err}
			}
			*dst = v
		}
		return c, nil

	case "float":
		c := FloatControl{Name: name, Min: 0, Max: 1}
		for _, a := range attrs {
			var dst *float64
			switch a.key {
			case "min":
				dst = &c.Min
			case "max":
				dst = &c.Max
			case "def":
				dst = &c.Val
			default:
				continue
			}
			v, err := strconv.ParseFloat(a.value, 64)
			if err != nil {
				return nil, &ParseError{Key: a.key, Value: a.value, Err: err}
			}
			*dst = v
		}
		return c, nil

	case "bool":
		c := BoolControl{Name: name}
		for _, a := range attrs {
			if a.key != "def" {
				continue
			}
			switch a.value {
			case "0":
				c.Val = false
			case "1":
				c.Val = true
			default:
				return nil, &ParseError{Key: a.key, Value: a.value, Err: fmt.Errorf("expected 0 or 1")}
			}
		}
		return c, nil

	case "vec3":
		c := ColorControl{Name: name, Val: "#000000"}
		for _, a := range attrs {
			if a.key != "def" {
				continue
			}
			hex, err := rgbToHex(a.value)
			if err != nil {
				return nil, &ParseError{Key: a.key, Value: a.value, Err: err}
			}
			c.Val = hex
		}
		return c, nil
	}

	return nil, fmt.Errorf("unsupported uniform type %q", glslType)
}

// rgbToHex converts "r,g,b" channels in [0,1] to "#rrggbb".
// Channels are scaled by 255 and rounded half away from zero.
func rgbToHex(s string) (string, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return "", fmt.Errorf("expected 3 color channels, got %d", len(parts))
	}

	var sb strings.Builder
	sb.WriteByte('#')
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", err
		}
		if f < 0 || f > 1 || math.IsNaN(f) {
			return "", fmt.Errorf("color channel %v out of [0,1]", f)
		}
		fmt.Fprintf(&sb, "%02x", int(math.Round(f*255)))
	}
	return sb.String(), nil
}
