// Package router is the HTTP surface of Titan-AAS: Echo-based, grounded
// on the teacher's shared server setup (http/server.go), generalized
// from a generic service scaffold into the fixed AAS resource routes
// spec.md §6 names. It owns the fast/slow path split (C5) and the
// ETag/conditional-request engine (C11); shell, submodel and concept
// description handlers validate and canonicalize the request body, then
// append an event to the Event Log for the Single-Writer to apply rather
// than touching the Store directly. Descriptor handlers do not go
// through the Event Log: they decode the body as plain JSON and write
// the descriptors table through store.DescriptorStore directly.
package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/hadijannat/titan-aas/broadcast"
	"github.com/hadijannat/titan-aas/cache"
	"github.com/hadijannat/titan-aas/eventlog"
	"github.com/hadijannat/titan-aas/store"
	"github.com/hadijannat/titan-aas/titanerr"
	"github.com/hadijannat/titan-aas/version"
)

// Config mirrors the teacher's ServerConfig, trimmed to what the AAS
// surface needs.
type Config struct {
	Port            int
	Debug           bool
	BodyLimit       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	RateLimit       float64

	MaxPageLimit   int
	ServiceName    string
	ServiceVersion string
}

// DefaultConfig mirrors the teacher's DefaultServerConfig defaults.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		BodyLimit:       "10M",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  []string{"*"},
		MaxPageLimit:    1000,
		ServiceName:     "titan-aas",
		ServiceVersion:  "dev",
	}
}

// Server bundles every component the HTTP surface reads from or writes
// through.
type Server struct {
	echo *echo.Echo
	cfg  Config

	Store       *store.Store
	Descriptors *store.DescriptorStore
	Cache       *cache.Cache
	Events      *eventlog.Log
	Hub         *broadcast.Hub
	Logger      *logrus.Entry

	startedAt time.Time
}

// New builds an Echo instance with the teacher's standard middleware
// stack and registers every AAS route on it.
func New(cfg Config, st *store.Store, descriptors *store.DescriptorStore, c *cache.Cache, events *eventlog.Log, hub *broadcast.Hub, logger *logrus.Entry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Debug

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "If-Match", "If-None-Match"},
		}))
	}
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		TargetHeader: echo.HeaderXRequestID,
	}))
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))
	}

	s := &Server{
		echo:        e,
		cfg:         cfg,
		Store:       st,
		Descriptors: descriptors,
		Cache:       c,
		Events:      events,
		Hub:         hub,
		Logger:      logger,
		startedAt:   time.Now().UTC(),
	}

	e.HTTPErrorHandler = s.errorHandler
	s.registerRoutes(e)
	return s
}

// Echo exposes the underlying instance for tests (httptest.NewServer et al).
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	return s.echo.StartServer(srv)
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

// errorHandler renders every error as the spec §6 "messages" envelope,
// mirroring the teacher's CustomHTTPErrorHandler but translating
// titanerr.Error kinds into their mapped status instead of always 500.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var tErr *titanerr.Error
	if as, ok := err.(*titanerr.Error); ok {
		tErr = as
	} else if he, ok := err.(*echo.HTTPError); ok {
		msg := fmt.Sprintf("%v", he.Message)
		switch he.Code {
		case http.StatusNotFound:
			tErr = titanerr.New(titanerr.NotFound, msg)
		case http.StatusRequestEntityTooLarge:
			tErr = titanerr.New(titanerr.PayloadTooLarge, msg)
		case http.StatusTooManyRequests:
			tErr = titanerr.New(titanerr.TooManyRequests, msg)
		default:
			tErr = titanerr.New(titanerr.ValidationError, msg)
		}
	} else {
		tErr = titanerr.Wrap(titanerr.Internal, err)
	}

	if reqID := c.Response().Header().Get(echo.HeaderXRequestID); reqID != "" {
		tErr = tErr.WithCorrelationID(reqID)
	}

	status := titanerr.HTTPStatus(tErr.Kind)
	if tErr.Kind == titanerr.StoreUnavailable || tErr.Kind == titanerr.EventLogUnavailable {
		c.Response().Header().Set("Retry-After", "5")
	}

	writeErr := c.JSON(status, tErr.ToEnvelope())
	if writeErr != nil && s.Logger != nil {
		s.Logger.WithError(writeErr).Error("failed to write error response")
	}
}

// buildInfo backs the /metrics handler's buildInfo field.
func (s *Server) buildInfo() *version.BuildInfo {
	return version.GetBuildInfo()
}
