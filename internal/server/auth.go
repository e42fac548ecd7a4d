package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/reckon/internal/auth"
	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
)

type userView struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	IsDoctor bool      `json:"isDoctor"`
}

type sessionResponse struct {
	Message string   `json:"message"`
	User    userView `json:"user"`
	Token   string   `json:"token"`
}

func viewOf(u *entity.User) userView {
	return userView{
		ID:       u.ID,
		Name:     u.FullName(),
		Email:    u.Email,
		Username: u.Username,
		IsDoctor: u.IsDoctor,
	}
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid JSON"})
	}
	sess, err := s.deps.Auth.Signup(c.Request().Context(), req)
	if err != nil {
		return s.authFailure(c, "signup", err)
	}
	return c.JSON(http.StatusCreated, sessionResponse{
		Message: "User registered successfully",
		User:    viewOf(sess.User),
		Token:   sess.Token,
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: "Invalid JSON"})
	}
	sess, err := s.deps.Auth.Login(c.Request().Context(), req)
	if err != nil {
		return s.authFailure(c, "login", err)
	}
	return c.JSON(http.StatusOK, sessionResponse{
		Message: "Login successful",
		User:    viewOf(sess.User),
		Token:   sess.Token,
	})
}

// authFailure answers validation, duplicate and credential problems with
// 400 and a specific message; anything else is a server error.
func (s *Server) authFailure(c echo.Context, op string, err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) && (errors.Is(err, common.ErrValidation) ||
		errors.Is(err, common.ErrConflict) || errors.Is(err, common.ErrUnauthorized)) {
		s.logger.Info("http.auth.rejected", "op", op, "code", appErr.Code)
		return c.JSON(http.StatusBadRequest, messageResponse{Message: appErr.Message})
	}
	s.logger.Error("http.auth.failed", "op", op, "error", err)
	return c.JSON(http.StatusInternalServerError, messageResponse{Message: "Server error", Error: err.Error()})
}
