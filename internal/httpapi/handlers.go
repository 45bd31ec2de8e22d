package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"clearfocus/internal/auth"
	"clearfocus/internal/service"
)

const defaultDumpLimit = 50

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type dumpRequest struct {
	Content string `json:"content"`
}

type editTaskRequest struct {
	Text string `json:"text"`
}

type activityRequest struct {
	Type string `json:"type"`
}

type settingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// focusResponse is only sent when no focus could be generated; otherwise
// the resolved view is the body itself.
type focusResponse struct {
	Focus *service.FocusView `json:"focus"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleSignup(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	session, err := s.svc.Auth.Signup(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	session, err := s.svc.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleMe(c echo.Context) error {
	user, err := s.svc.Auth.Me(c.Request().Context(), currentUser(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (s *Server) handleSubmitDump(c echo.Context) error {
	var req dumpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	dump, err := s.svc.Intake.Submit(c.Request().Context(), currentUser(c), req.Content)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, dump)
}

func (s *Server) handleListDumps(c echo.Context) error {
	limit := defaultDumpLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	dumps, err := s.svc.Intake.ListDumps(c.Request().Context(), currentUser(c), limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, dumps)
}

func (s *Server) handleTodayFocus(c echo.Context) error {
	view, err := s.svc.Focus.Today(c.Request().Context(), currentUser(c))
	if err != nil {
		return s.fail(c, err)
	}
	if view == nil {
		return c.JSON(http.StatusOK, focusResponse{})
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) handleRefocus(c echo.Context) error {
	view, err := s.svc.Focus.Refocus(c.Request().Context(), currentUser(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, struct {
		Success bool               `json:"success"`
		Focus   *service.FocusView `json:"focus"`
	}{Success: true, Focus: view})
}

func (s *Server) handleListTasks(c echo.Context) error {
	tasks, err := s.svc.Tasks.List(c.Request().Context(), currentUser(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleEditTask(c echo.Context) error {
	var req editTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	task, err := s.svc.Tasks.Edit(c.Request().Context(), currentUser(c), c.Param("id"), req.Text)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleArchiveTask(c echo.Context) error {
	if err := s.svc.Tasks.Archive(c.Request().Context(), currentUser(c), c.Param("id")); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleActivity(c echo.Context) error {
	var req activityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.svc.Activity.Apply(c.Request().Context(), currentUser(c), c.Param("id"), req.Type); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleListSettings(c echo.Context) error {
	settings, err := s.svc.Settings.List(c.Request().Context(), currentUser(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) handleSetSetting(c echo.Context) error {
	var req settingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.svc.Settings.Set(c.Request().Context(), currentUser(c), req.Key, req.Value); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

// currentUser is only called behind auth.Middleware.
func currentUser(c echo.Context) uint {
	uid, _ := auth.UserID(c)
	return uid
}
