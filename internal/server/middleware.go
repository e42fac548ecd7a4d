package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/reckon/internal/common"
)

func bindRequestID(c echo.Context, rid string) {
	req := c.Request()
	c.SetRequest(req.WithContext(common.WithRequestID(req.Context(), rid)))
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// let the error handler write the status before it is read
			c.Error(err)
		}

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		status := c.Response().Status
		if s.deps.Metrics != nil {
			s.deps.Metrics.ObserveRequest(c.Request().Method, route, status)
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(c.Request().Context(), level, "http.request",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"route", route,
			"status", status,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"user_id", common.UserIDFromContext(c.Request().Context()),
		)
		return nil
	}
}

// optionalAuth attributes the request to a user when a valid bearer token is
// present. A malformed or expired token is rejected rather than ignored.
func (s *Server) optionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request())
		if !ok {
			return next(c)
		}
		if ok, err := s.authenticate(c, token); !ok {
			return err
		}
		return next(c)
	}
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request())
		if !ok {
			return c.JSON(http.StatusUnauthorized, messageResponse{Message: "Authentication required"})
		}
		if ok, err := s.authenticate(c, token); !ok {
			return err
		}
		return next(c)
	}
}

// authenticate binds the token's user to the request. When it reports false
// the 401 has already been written and the chain must stop.
func (s *Server) authenticate(c echo.Context, token string) (bool, error) {
	id, err := s.deps.Auth.Verify(token)
	if err != nil {
		msg := "Invalid token"
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			msg = appErr.Message
		}
		return false, c.JSON(http.StatusUnauthorized, messageResponse{Message: msg})
	}
	req := c.Request()
	c.SetRequest(req.WithContext(common.WithUserID(req.Context(), id.String())))
	return true, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(h[7:])
	return token, token != ""
}
