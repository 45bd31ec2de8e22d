package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"clearfocus/internal/service"
)

// observe logs every request and feeds the HTTP metrics. Errors are
// rendered here so the recorded status is the one the client sees.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		duration := time.Since(start)

		req := c.Request()
		status := c.Response().Status
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}

		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(req.Method, route).Observe(duration.Seconds())
		}

		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		}
		if status >= http.StatusInternalServerError {
			s.log.Error("http request", append(fields, zap.Error(err))...)
		} else {
			s.log.Info("http request", fields...)
		}
		return err
	}
}

// fail maps service errors onto HTTP statuses. Unexpected causes are logged
// and replaced with a generic message.
func (s *Server) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	default:
		s.log.Error("request failed",
			zap.String("route", c.Path()),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
