package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"soundgrid/clip"
	"soundgrid/slot"
)

// SlotResponse is the JSON shape of one pad.
type SlotResponse struct {
	ID           slot.ID    `json:"id"`
	Name         string     `json:"name"`
	Speed        float64    `json:"speed"`
	Balance      float64    `json:"balance"`
	Gain         float64    `json:"gain"`
	EchoDelay    float64    `json:"echoDelay"`
	EchoFeedback float64    `json:"echoFeedback"`
	Loop         bool       `json:"loop"`
	Color        slot.Color `json:"color"`
	HasAudio     bool       `json:"hasAudio"`
	Duration     float64    `json:"duration"`
	Playing      bool       `json:"playing"`
}

// SlotUpdate is a partial edit; absent fields keep their value.
type SlotUpdate struct {
	Name         *string     `json:"name"`
	Speed        *float64    `json:"speed"`
	Balance      *float64    `json:"balance"`
	Gain         *float64    `json:"gain"`
	EchoDelay    *float64    `json:"echoDelay"`
	EchoFeedback *float64    `json:"echoFeedback"`
	Loop         *bool       `json:"loop"`
	Color        *slot.Color `json:"color"`
	ClearClip    bool        `json:"clearClip"`
}

func (u SlotUpdate) patch() slot.Patch {
	return slot.Patch{
		Name:         u.Name,
		Speed:        u.Speed,
		Balance:      u.Balance,
		Gain:         u.Gain,
		EchoDelay:    u.EchoDelay,
		EchoFeedback: u.EchoFeedback,
		Loop:         u.Loop,
		Color:        u.Color,
		ClearClip:    u.ClearClip,
	}
}

func (c *Controller) response(id slot.ID, p slot.Parameters, playing bool) SlotResponse {
	r := SlotResponse{
		ID:           id,
		Name:         p.Name,
		Speed:        p.Speed,
		Balance:      p.Balance,
		Gain:         p.Gain,
		EchoDelay:    p.EchoDelay,
		EchoFeedback: p.EchoFeedback,
		Loop:         p.Loop,
		Color:        p.Color,
		HasAudio:     p.HasClip(),
		Playing:      playing,
	}
	if r.HasAudio {
		r.Duration = p.Clip.Duration().Seconds()
	}
	return r
}

// ListSlots handles GET /api/slots
func (c *Controller) ListSlots(ctx echo.Context) error {
	status, err := c.engine.Status(ctx.Request().Context())
	if err != nil {
		return err
	}
	playing := make(map[slot.ID]bool)
	for _, id := range status.Playing() {
		playing[id] = true
	}
	all := c.store.All()
	out := make([]SlotResponse, len(all))
	for i, p := range all {
		out[i] = c.response(slot.ID(i), p, playing[slot.ID(i)])
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetSlot handles GET /api/slots/:id
func (c *Controller) GetSlot(ctx echo.Context) error {
	id, err := c.slotID(ctx)
	if err != nil {
		return err
	}
	p, err := c.store.Get(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c.response(id, p, c.engine.IsPlaying(id)))
}

// UpdateSlot handles PATCH /api/slots/:id
func (c *Controller) UpdateSlot(ctx echo.Context) error {
	id, err := c.slotID(ctx)
	if err != nil {
		return err
	}
	var update SlotUpdate
	if err := ctx.Bind(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid slot update")
	}
	p, err := c.store.Set(id, update.patch())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c.response(id, p, c.engine.IsPlaying(id)))
}

// ResetSlot handles DELETE /api/slots/:id
func (c *Controller) ResetSlot(ctx echo.Context) error {
	id, err := c.slotID(ctx)
	if err != nil {
		return err
	}
	if err := c.store.Reset(id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// PutClip handles PUT /api/slots/:id/clip with a WAV body. Leading silence is
// trimmed unless ?trim=false.
func (c *Controller) PutClip(ctx echo.Context) error {
	id, err := c.slotID(ctx)
	if err != nil {
		return err
	}
	var body bytes.Buffer
	if _, err := io.Copy(&body, ctx.Request().Body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}
	buf, err := clip.DecodeWAV(body.Bytes())
	if err != nil {
		return err
	}
	if buf.Len() == 0 {
		return clip.ErrEmptyClip
	}
	if trim, err := strconv.ParseBool(ctx.QueryParam("trim")); err != nil || trim {
		buf = clip.TrimLeadingSilence(buf, clip.DefaultSilenceThreshold)
	}
	p, err := c.store.Set(id, slot.Patch{Clip: buf})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c.response(id, p, c.engine.IsPlaying(id)))
}

// TriggerSlot handles POST /api/slots/:id/trigger
func (c *Controller) TriggerSlot(ctx echo.Context) error {
	id, err := c.slotID(ctx)
	if err != nil {
		return err
	}
	if err := c.engine.Trigger(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "playing": c.engine.IsPlaying(id)})
}

// StopSlot handles POST /api/slots/:id/stop
func (c *Controller) StopSlot(ctx echo.Context) error {
	id, err := c.slotID(ctx)
	if err != nil {
		return err
	}
	if err := c.engine.StopSlot(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GetOrder handles GET /api/order
func (c *Controller) GetOrder(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.store.Order())
}

// PutOrder handles PUT /api/order
func (c *Controller) PutOrder(ctx echo.Context) error {
	var order []slot.ID
	if err := ctx.Bind(&order); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid button order")
	}
	if err := c.store.SetOrder(order); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c.store.Order())
}
