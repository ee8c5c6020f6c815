package web

import (
	"errors"
	"strings"

	"shaderworkshop/session"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

// SetupRoutes configures all HTTP routes for the server
func SetupRoutes(s *rweb.Server, w *Workshop) {
	s.Get("/", rootHandler)

	// Assembled shaders
	s.Get("/frag/:name", w.fragHandler)

	// Live session: server push over SSE, client messages over POST
	s.Get("/events", func(c rweb.Context) error {
		id := strings.TrimSpace(c.Request().QueryParam("session"))
		if id == "" {
			return c.WriteError(serr.New("session query parameter is required"), 400)
		}

		sender := newSSESender()
		sess := w.Registry.Open(id, sender)

		// the session goroutine is the only writer, so the channel can be closed once it is done
		go func() {
			<-sess.Done()
			close(sender.ch)
		}()

		s.SetupSSE(c, sender.ch, "")
		return nil
	})
	s.Post("/session/:id/message", w.sessionMessageHandler)
	s.Post("/session/:id/ping", w.sessionPingHandler)
	s.Post("/session/:id/close", w.sessionCloseHandler)
	s.Get("/api/sessions/:id/events", w.sessionEventsHandler)

	// API endpoints
	s.Get("/api/frags", w.listFragsHandler)
	s.Get("/api/stats", w.statsHandler)
	s.Get("/api/status", w.statusHandler)
}

// rootHandler serves the preview page
func rootHandler(c rweb.Context) error {
	return c.WriteHTML(indexPage())
}

func (w *Workshop) fragHandler(c rweb.Context) error {
	payload, err := w.Fragment(c.Request().Param("name"))
	if err != nil {
		return c.WriteError(err, errorStatus(err))
	}
	return c.WriteJSON(payload)
}

func (w *Workshop) sessionMessageHandler(c rweb.Context) error {
	id := c.Request().Param("id")
	err := w.Registry.Deliver(id, c.Request().Body())
	switch {
	case errors.Is(err, session.ErrSessionClosed):
		return c.WriteError(serr.Wrap(err, "session is gone", "session", id), 410)
	case err != nil:
		return c.WriteError(err, 404)
	}
	return c.WriteJSON(map[string]any{"ok": true})
}

func (w *Workshop) sessionPingHandler(c rweb.Context) error {
	id := c.Request().Param("id")
	if err := w.Registry.Touch(id); err != nil {
		return c.WriteError(err, 404)
	}
	return c.WriteJSON(map[string]any{"ok": true})
}

func (w *Workshop) sessionCloseHandler(c rweb.Context) error {
	id := c.Request().Param("id")
	closed := w.Registry.Close(id)
	logger.Debug("Session close requested", "session", id, "existed", closed)
	return c.WriteJSON(map[string]any{"closed": closed})
}

func (w *Workshop) sessionEventsHandler(c rweb.Context) error {
	events, err := w.SessionEvents(c.Request().Param("id"))
	if err != nil {
		return c.WriteError(err, errorStatus(err))
	}
	return c.WriteJSON(map[string]any{"events": events})
}

func (w *Workshop) listFragsHandler(c rweb.Context) error {
	frags, err := session.ListShaders(w.FS)
	if err != nil {
		return c.WriteError(err, 500)
	}
	return c.WriteJSON(map[string]any{"frags": frags})
}

func (w *Workshop) statsHandler(c rweb.Context) error {
	st, err := w.Stats()
	if err != nil {
		return c.WriteError(err, 500)
	}
	return c.WriteJSON(st)
}

func (w *Workshop) statusHandler(c rweb.Context) error {
	return c.WriteJSON(w.Status())
}
