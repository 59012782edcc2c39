package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"docflow/internal/helper"
	"docflow/internal/models"
	"docflow/internal/session"
)

const sessionKey = "session"

const genericError = "Something went wrong while processing your request."

// errorHandler maps validation failures to 400 with their message and
// backend failures to 500 with a generic one. Details are only logged.
func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := genericError

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		msg = http.StatusText(code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	case models.IsValidation(err):
		code = http.StatusBadRequest
		msg = validationMessage(err)
	}

	req := c.Request()
	ev := log.Warn()
	if code >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Int("status", code).Str("method", req.Method).Str("path", req.URL.Path).Str("ip", c.RealIP()).Msg("Request failed")

	if !c.Response().Committed {
		if req.Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

// validationMessage drops the operation and kind prefixes of a typed error.
func validationMessage(err error) string {
	msg := err.Error()
	var typed *models.Error
	if errors.As(err, &typed) && typed.Err != nil {
		msg = typed.Err.Error()
	}
	return strings.TrimPrefix(msg, models.ErrValidation.Error()+": ")
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	})
}

// withSession loads the session named by the cookie, holds its lock for the
// whole request and saves it afterwards, also when the handler failed. A
// session that was neither read from the store nor written to is dropped,
// and its cookie is only issued once something was stored in it.
func (s *Server) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := ""
		if ck, err := c.Cookie(s.deps.CookieName); err == nil && helper.IsUUID(ck.Value) {
			id = ck.Value
		}
		issue := id == ""
		if issue {
			newID, err := helper.GenerateUUID()
			if err != nil {
				return err
			}
			id = newID
		}

		unlock := s.locker.Lock(id)
		defer unlock()

		ctx := c.Request().Context()
		sess, err := s.deps.Sessions.Load(ctx, id)
		if err != nil {
			return err
		}
		c.Set(sessionKey, sess)
		if issue {
			c.Response().Before(func() {
				if sess.Modified() {
					c.SetCookie(s.sessionCookie(id))
				}
			})
		}

		herr := next(c)
		if sess.IsNew() && !sess.Modified() {
			return herr
		}
		if err := s.deps.Sessions.Save(ctx, sess); err != nil {
			log.Error().Err(err).Str("session", id).Msg("Failed to save session")
			if herr == nil {
				herr = err
			}
		}
		return herr
	}
}

func (s *Server) sessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     s.deps.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	}
}

func sessionFrom(c echo.Context) *session.Session {
	sess, _ := c.Get(sessionKey).(*session.Session)
	return sess
}
