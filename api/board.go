package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"soundgrid/archive"
	"soundgrid/output"
)

// Cleanup handles POST /api/cleanup
func (c *Controller) Cleanup(ctx echo.Context) error {
	if err := c.engine.Cleanup(ctx.Request().Context()); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Status handles GET /api/status
func (c *Controller) Status(ctx echo.Context) error {
	status, err := c.engine.Status(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, status)
}

// DevicesResponse lists output sinks and the current selection.
type DevicesResponse struct {
	Selected          string          `json:"selected"`
	SupportsSelection bool            `json:"supportsSelection"`
	Devices           []output.Device `json:"devices"`
}

// ListDevices handles GET /api/devices
func (c *Controller) ListDevices(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, DevicesResponse{
		Selected:          c.router.Selected(),
		SupportsSelection: c.router.SupportsSelection(),
		Devices:           c.router.Devices(),
	})
}

// SelectDevice handles PUT /api/devices/selected with {"id": "..."}
func (c *Controller) SelectDevice(ctx echo.Context) error {
	var req struct {
		ID string `json:"id"`
	}
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid device selection")
	}
	if err := c.router.Select(req.ID); err != nil {
		return err
	}
	return c.ListDevices(ctx)
}

// Export handles GET /api/export
func (c *Controller) Export(ctx echo.Context) error {
	var buf bytes.Buffer
	now := c.now()
	if _, err := archive.Export(&buf, c.store, now); err != nil {
		return err
	}
	name := fmt.Sprintf("soundgrid-%s.zip", now.UTC().Format("20060102-150405"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return ctx.Blob(http.StatusOK, "application/zip", buf.Bytes())
}

// Import handles POST /api/import with a zip body
func (c *Controller) Import(ctx echo.Context) error {
	data, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}
	res, err := archive.Import(bytes.NewReader(data), int64(len(data)), c.store)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
