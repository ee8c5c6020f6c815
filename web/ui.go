package web

import (
	_ "embed"

	"github.com/rohanthewiz/element"
)

//go:embed assets/shader.js
var shaderJS string

//go:embed assets/shader.css
var shaderCSS string

var resolutions = []string{"360", "480", "720", "1080"}
var aspects = []string{"16:9", "4:3", "1:1", "9:16"}

// indexPage renders the live preview page. Element ids are the globals the client script uses.
func indexPage() string {
	b := element.NewBuilder()

	b.Html().R(
		b.Head().R(
			b.Title().T("Shader Workshop"),
			b.Meta("charset", "UTF-8"),
			b.Meta("name", "viewport", "content", "width=device-width, initial-scale=1.0"),
			b.Style().T(shaderCSS),
		),
		b.Body().R(
			b.Aside().R(
				b.H3().T("Shaders"),
				b.Div("id", "files").R(),
			),
			b.Main().R(
				b.Div("class", "toolbar").R(
					b.Button("id", "playPause", "class", "pressed").T("Play/Pause"),
					b.Button("id", "resetBtn").T("Reset"),
					b.Button("id", "screenshotBtn").T("Screenshot"),
					b.Label("for", "resSelect").T("Resolution"),
					b.Select("id", "resSelect").R(
						func() any {
							for _, v := range resolutions {
								if v == "720" {
									b.Option("value", v, "selected", "selected").T(v + "p")
								} else {
									b.Option("value", v).T(v + "p")
								}
							}
							return nil
						}(),
					),
					b.Label("for", "aspectSelect").T("Aspect"),
					b.Select("id", "aspectSelect").R(
						func() any {
							for _, v := range aspects {
								b.Option("value", v).T(v)
							}
							return nil
						}(),
					),
					b.Span("id", "infoLbl", "class", "info").R(),
					b.Span("id", "fpsInfo", "class", "info").R(),
				),
				b.Div("id", "stage").R(),
				b.Div("id", "fragControls").R(),
				b.Div("id", "errorBlock").R(),
				b.Div("id", "refList").R(),
			),
			b.Script().T(shaderJS),
		),
	)

	return b.String()
}
