// Package server assembles the echo instance: middleware, health and metrics
// routes, and every handler's route group.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/SynisterSage/verityapp-sub001/internal/auth"
	"github.com/SynisterSage/verityapp-sub001/internal/config"
	"github.com/SynisterSage/verityapp-sub001/internal/handlers"
	"github.com/SynisterSage/verityapp-sub001/internal/metrics"
)

// Registrar is anything that can mount its routes on the echo instance.
type Registrar interface {
	Register(e *echo.Echo)
}

// New builds the HTTP surface. Handlers are mounted in the order given.
func New(cfg *config.Config, log *slog.Logger, registrars ...Registrar) *echo.Echo {
	if log == nil {
		log = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()

	e.Use(middleware.Recover())
	e.Use(requestLogger(log))
	e.Use(instrument)
	e.Use(auth.JWTMiddleware(cfg.JWTSecret, publicRouteSkipper(cfg)))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	for _, r := range registrars {
		r.Register(e)
	}
	return e
}

// publicRouteSkipper exempts the unauthenticated routes from JWT checks. The
// dev token route is only public outside production; in production it is not
// registered at all, so the JWT check rejects it either way.
func publicRouteSkipper(cfg *config.Config) middleware.Skipper {
	return func(c echo.Context) bool {
		switch c.Path() {
		case "/healthz", "/metrics":
			return true
		case "/auth/token":
			return !cfg.Production()
		}
		return false
	}
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	})
}

// instrument feeds the request counters. The route template keeps label
// cardinality bounded; unmatched requests fall back to the raw path.
func instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		path := c.Path()
		if path == "" {
			path = c.Request().URL.Path
		}
		status := c.Response().Status
		if err != nil {
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
			} else {
				status = http.StatusInternalServerError
			}
		}
		metrics.HTTPRequests.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
		return err
	}
}
