// Package api exposes the board over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"soundgrid/archive"
	"soundgrid/clip"
	"soundgrid/device"
	"soundgrid/engine"
	"soundgrid/slot"
)

// Controller owns the echo instance and the handlers.
type Controller struct {
	echo   *echo.Echo
	store  *slot.Store
	engine *engine.Engine
	router *device.Router
	logger *slog.Logger
	now    func() time.Time
}

// New builds the controller and registers every route. A nil gatherer
// disables /metrics.
func New(store *slot.Store, eng *engine.Engine, router *device.Router, gatherer prometheus.Gatherer) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("256M"))

	c := &Controller{
		echo:   e,
		store:  store,
		engine: eng,
		router: router,
		logger: slog.With("component", "api"),
		now:    time.Now,
	}
	e.HTTPErrorHandler = c.errorHandler

	g := e.Group("/api")
	g.GET("/slots", c.ListSlots)
	g.GET("/slots/:id", c.GetSlot)
	g.PATCH("/slots/:id", c.UpdateSlot)
	g.DELETE("/slots/:id", c.ResetSlot)
	g.PUT("/slots/:id/clip", c.PutClip)
	g.POST("/slots/:id/trigger", c.TriggerSlot)
	g.POST("/slots/:id/stop", c.StopSlot)
	g.GET("/order", c.GetOrder)
	g.PUT("/order", c.PutOrder)
	g.POST("/cleanup", c.Cleanup)
	g.GET("/status", c.Status)
	g.GET("/devices", c.ListDevices)
	g.PUT("/devices/selected", c.SelectDevice)
	g.GET("/export", c.Export)
	g.POST("/import", c.Import)

	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return c
}

// ServeHTTP lets the controller be mounted or tested without a listener.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown. It returns nil after a clean shutdown.
func (c *Controller) Start(addr string) error {
	c.logger.Info("HTTP API listening", slog.String("addr", addr))
	if err := c.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.echo.Shutdown(ctx)
}

func (c *Controller) slotID(ctx echo.Context) (slot.ID, error) {
	n, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid slot id")
	}
	return slot.ID(n), nil
}

// errorHandler maps domain errors to status codes before echo's default handling.
func (c *Controller) errorHandler(err error, ctx echo.Context) {
	var (
		httpErr  *echo.HTTPError
		paramErr *slot.ParameterError
		status   int
	)
	switch {
	case errors.As(err, &httpErr):
		c.echo.DefaultHTTPErrorHandler(err, ctx)
		return
	case errors.Is(err, slot.ErrUnknownSlot), errors.Is(err, device.ErrUnknownDevice):
		status = http.StatusNotFound
	case errors.As(err, &paramErr),
		errors.Is(err, device.ErrSelectionUnsupported),
		errors.Is(err, clip.ErrNotWAV),
		errors.Is(err, clip.ErrUnsupportedFormat),
		errors.Is(err, clip.ErrDecodeFailure),
		errors.Is(err, clip.ErrEmptyClip),
		errors.Is(err, archive.ErrInvalidArchive),
		errors.Is(err, archive.ErrMissingManifest),
		errors.Is(err, archive.ErrUnsupportedVersion):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrPlaybackRejected):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrStopped):
		status = http.StatusServiceUnavailable
	default:
		c.logger.Error("Request failed",
			slog.String("path", ctx.Request().URL.Path),
			slog.Any("error", err))
		status = http.StatusInternalServerError
	}
	c.echo.DefaultHTTPErrorHandler(echo.NewHTTPError(status, err.Error()), ctx)
}
