package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"soundgrid/clip"
	"soundgrid/device"
	"soundgrid/engine"
	"soundgrid/ledger"
	"soundgrid/output"
	"soundgrid/slot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testRate = beep.SampleRate(48000)

var usb = output.Device{ID: "usb", Label: "USB Headset"}

type fixture struct {
	api    *Controller
	store  *slot.Store
	engine *engine.Engine
	router *device.Router
	audio  *output.Headless
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  slot.NewStore(8),
		router: device.NewRouter(true),
		audio:  output.NewHeadless(testRate, usb),
	}
	f.router.Update([]output.Device{usb})
	factory := func() (output.Context, error) { return f.audio, nil }
	f.engine = engine.New(engine.DefaultConfig(), f.store, f.router, factory)
	require.NoError(t, f.engine.Start())
	t.Cleanup(func() { _ = f.engine.Stop() })

	reg := prometheus.NewRegistry()
	reg.MustRegister(ledger.NewCollector(f.engine.Ledger()))
	f.api = New(f.store, f.engine, f.router, reg)
	f.api.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.api.ServeHTTP(rec, req)
	return rec
}

func wavBody(t *testing.T, lead, tone time.Duration) []byte {
	t.Helper()
	b := clip.New(int(testRate), 2, testRate.N(lead+tone))
	start := testRate.N(lead)
	for c := range b.Data {
		for i := start; i < len(b.Data[c]); i++ {
			b.Data[c][i] = 0.5
		}
	}
	data, err := clip.EncodeWAV(b)
	require.NoError(t, err)
	return data
}

func TestListSlots(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/slots", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var slots []SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	require.Len(t, slots, 8)
	assert.Equal(t, slot.ID(3), slots[3].ID)
	assert.InDelta(t, 1.0, slots[3].Speed, 1e-9)
	assert.False(t, slots[3].HasAudio)
}

func TestGetSlot_InvalidID(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/slots/abc", http.StatusBadRequest},
		{"/api/slots/8", http.StatusNotFound},
		{"/api/slots/-1", http.StatusNotFound},
		{"/api/slots/2", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestUpdateSlot(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/api/slots/1", []byte(`{"name":"Airhorn","gain":1.5,"color":"red"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	p, err := f.store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Airhorn", p.Name)
	assert.InDelta(t, 1.5, p.Gain, 1e-9)
	assert.Equal(t, slot.Red, p.Color)
	assert.InDelta(t, 1.0, p.Speed, 1e-9, "absent fields keep their value")
}

func TestUpdateSlot_Rejected(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/api/slots/1", []byte(`{"speed":9}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "speed")

	rec = f.do(t, http.MethodPatch, "/api/slots/1", []byte(`{"speed":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutClip_TrimsLeadingSilence(t *testing.T) {
	f := newFixture(t)

	body := wavBody(t, 500*time.Millisecond, time.Second)
	req := httptest.NewRequest(http.MethodPut, "/api/slots/0/clip", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.api.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.HasAudio)
	assert.Less(t, resp.Duration, 1.5)

	req = httptest.NewRequest(http.MethodPut, "/api/slots/1/clip?trim=false", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	f.api.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 1.5, resp.Duration, 0.001)
}

func TestPutClip_NotWAV(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/api/slots/0/clip", strings.NewReader("definitely not audio"))
	rec := httptest.NewRecorder()
	f.api.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerAndStop(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Set(2, slot.Patch{Clip: clip.New(int(testRate), 2, testRate.N(time.Second)), Loop: ptrBool(true)})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/slots/2/trigger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.engine.IsPlaying(2))

	rec = f.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st engine.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, []slot.ID{2}, st.Playing())

	rec = f.do(t, http.MethodPost, "/api/slots/2/stop", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, f.engine.IsPlaying(2))
}

func TestTrigger_Rejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Set(0, slot.Patch{Clip: clip.New(int(testRate), 2, testRate.N(time.Second))})
	require.NoError(t, err)
	f.audio.SetState(output.Suspended)
	f.audio.FailResume(output.ErrSuspended)

	rec := f.do(t, http.MethodPost, "/api/slots/0/trigger", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResetSlot(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Set(4, slot.Patch{Name: ptrString("Crowd")})
	require.NoError(t, err)

	rec := f.do(t, http.MethodDelete, "/api/slots/4", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	p, err := f.store.Get(4)
	require.NoError(t, err)
	assert.Empty(t, p.Name)
}

func TestOrder(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/order", []byte(`[7,6,5,4,3,2,1,0]`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []slot.ID{7, 6, 5, 4, 3, 2, 1, 0}, f.store.Order())

	rec = f.do(t, http.MethodGet, "/api/order", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[7,6,5,4,3,2,1,0]`, rec.Body.String())
}

func TestDevices(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/devices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp DevicesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.SupportsSelection)
	assert.Empty(t, resp.Selected)
	assert.Len(t, resp.Devices, 2)

	rec = f.do(t, http.MethodPut, "/api/devices/selected", []byte(`{"id":"usb"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usb", f.router.Selected())

	rec = f.do(t, http.MethodPut, "/api/devices/selected", []byte(`{"id":"hdmi"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "usb", f.router.Selected())
}

func TestExportImport(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Set(3, slot.Patch{Name: ptrString("Drum"), Clip: clip.New(int(testRate), 2, 4800)})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "soundgrid-20240301-120000.zip")
	archived := rec.Body.Bytes()

	require.NoError(t, f.store.Reset(3))

	req := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(archived))
	rec = httptest.NewRecorder()
	f.api.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"slots":8,"audio":1,"missingAudio":0,"skipped":0}`, rec.Body.String())

	p, err := f.store.Get(3)
	require.NoError(t, err)
	assert.Equal(t, "Drum", p.Name)
	assert.True(t, p.HasClip())
}

func TestImport_Invalid(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("not a zip"))
	rec := httptest.NewRecorder()
	f.api.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCleanupAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/cleanup", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "soundgrid_")
}

func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }

func TestEditsReportPlayingState(t *testing.T) {
	f := newFixture(t)
	delay, feedback := 0.5, 0.3
	_, err := f.store.Set(1, slot.Patch{
		Clip:         clip.New(int(testRate), 2, testRate.N(time.Second)),
		EchoDelay:    &delay,
		EchoFeedback: &feedback,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/slots/1/trigger", nil).Code)

	rec := f.do(t, http.MethodPatch, "/api/slots/1", []byte(`{"name":"Thunder"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Playing, "pending echoes keep the pad playing")

	req := httptest.NewRequest(http.MethodPut, "/api/slots/1/clip", bytes.NewReader(wavBody(t, 0, time.Second)))
	rec = httptest.NewRecorder()
	f.api.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Playing)

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/slots/1/stop", nil).Code)
	rec = f.do(t, http.MethodPatch, "/api/slots/1", []byte(`{"name":"Quiet"}`))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Playing)
}
