package endpoints

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/waqt/internal/export"
	"github.com/Nixie-Tech-LLC/waqt/internal/geo"
	"github.com/Nixie-Tech-LLC/waqt/internal/http/api"
	"github.com/Nixie-Tech-LLC/waqt/internal/http/api/widget/packets"
	"github.com/Nixie-Tech-LLC/waqt/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/waqt/internal/session"
	"github.com/Nixie-Tech-LLC/waqt/internal/storage"
)

type WidgetController struct {
	sessions *session.Manager
	secret   string
	tokenTTL time.Duration
	storage  storage.Storage
	// locateTimeout bounds a background location request.
	locateTimeout time.Duration
}

func NewWidgetController(sessions *session.Manager, secret string, tokenTTL, locateTimeout time.Duration, store storage.Storage) *WidgetController {
	return &WidgetController{
		sessions:      sessions,
		secret:        secret,
		tokenTTL:      tokenTTL,
		storage:       store,
		locateTimeout: locateTimeout,
	}
}

// SessionModule mounts the unauthenticated session bootstrap.
func SessionModule(ctl *WidgetController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/sessions", api.ResolveEndpoint(ctl.createSession))
	})
}

// WidgetModule mounts the session-token protected widget routes.
func WidgetModule(ctl *WidgetController) api.Module {
	with := func(h api.HandlerFuncWithSession) gin.HandlerFunc {
		return api.ResolveEndpointWithSession(ctl.sessions, h)
	}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/view", with(ctl.getView))
		c.POST("/permission", with(ctl.permissionChanged))
		c.POST("/locate", with(ctl.locate))
		c.POST("/position", with(ctl.reportPosition))
		c.POST("/position-error", with(ctl.reportPositionError))
		c.POST("/district", with(ctl.chooseDistrict))
		c.GET("/calendar", with(ctl.calendar))
		c.POST("/export", with(ctl.exportCalendar))
		c.DELETE("/session", with(ctl.closeSession))
	})
}

// POST /api/widget/sessions
func (w *WidgetController) createSession(ctx *gin.Context) (any, *api.Error) {
	var req packets.CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BadRequest(err)
	}

	s := w.sessions.Create(ctx.Request.Context(), session.Capabilities{
		Supported:     req.Supported,
		SecureContext: req.SecureContext,
		Permission:    geo.ParsePermission(req.Permission),
	})

	token, err := middleware.GenerateSessionToken(s.ID, w.secret, w.tokenTTL)
	if err != nil {
		_ = w.sessions.Close(s.ID)
		return nil, api.Internal(err)
	}

	return packets.CreateSessionResponse{SessionID: s.ID, Token: token, View: s.Board.Snapshot()}, nil
}

func viewOf(s *session.Session) packets.ViewResponse {
	return packets.ViewResponse{View: s.Board.Snapshot(), State: s.Machine.Snapshot()}
}

// GET /api/widget/view
func (w *WidgetController) getView(_ *gin.Context, s *session.Session) (any, *api.Error) {
	return viewOf(s), nil
}

// POST /api/widget/permission
func (w *WidgetController) permissionChanged(ctx *gin.Context, s *session.Session) (any, *api.Error) {
	var req packets.PermissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BadRequest(err)
	}
	s.SetPermission(ctx.Request.Context(), geo.ParsePermission(req.State))
	return viewOf(s), nil
}

// POST /api/widget/locate
//
// The probe waits for the widget to report a position, so by default it runs
// in the background and the widget follows progress through /view or MQTT.
// ?wait=true blocks until the probe has finished.
func (w *WidgetController) locate(ctx *gin.Context, s *session.Session) (any, *api.Error) {
	if ctx.Query("wait") == "true" {
		s.Machine.RequestLocation(ctx.Request.Context())
		return viewOf(s), nil
	}

	// the gin context is recycled once the handler returns
	detached := context.WithoutCancel(ctx.Request.Context())
	go func() {
		bg, cancel := context.WithTimeout(detached, w.locateTimeout)
		defer cancel()
		s.Machine.RequestLocation(bg)
	}()
	return viewOf(s), nil
}

// POST /api/widget/position
func (w *WidgetController) reportPosition(ctx *gin.Context, s *session.Session) (any, *api.Error) {
	var req packets.PositionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BadRequest(err)
	}
	if s.Relay == nil {
		return nil, &api.Error{Code: http.StatusConflict, Message: "position is fixed for this deployment"}
	}
	s.ReportPosition(geo.Position{Latitude: *req.Latitude, Longitude: *req.Longitude, Accuracy: req.Accuracy})
	return viewOf(s), nil
}

// POST /api/widget/position-error
func (w *WidgetController) reportPositionError(ctx *gin.Context, s *session.Session) (any, *api.Error) {
	var req packets.PositionErrorRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BadRequest(err)
	}
	if s.Relay == nil {
		return nil, &api.Error{Code: http.StatusConflict, Message: "position is fixed for this deployment"}
	}
	s.ReportError(req.Code, req.Message)
	return viewOf(s), nil
}

// POST /api/widget/district
func (w *WidgetController) chooseDistrict(ctx *gin.Context, s *session.Session) (any, *api.Error) {
	var req packets.DistrictRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, api.BadRequest(err)
	}
	s.Machine.ChooseDistrict(ctx.Request.Context(), req.District)
	return viewOf(s), nil
}

// GET /api/widget/calendar
func (w *WidgetController) calendar(ctx *gin.Context, s *session.Session) (any, *api.Error) {
	var q packets.CalendarQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		return nil, api.BadRequest(err)
	}
	month := 0
	if q.Year > 0 && q.Month > 0 {
		month = q.Month - 1
	} else {
		q.Year = 0
	}

	out, err := w.sessions.Calendar(ctx.Request.Context(), s, q.Year, month, q.Shift)
	switch {
	case errors.Is(err, session.ErrNoDistrict):
		return nil, &api.Error{Code: http.StatusConflict, Message: s.Board.Snapshot().Notice}
	case err != nil:
		return nil, &api.Error{Code: http.StatusServiceUnavailable, Message: err.Error()}
	}
	return out, nil
}

// POST /api/widget/export
func (w *WidgetController) exportCalendar(ctx *gin.Context, s *session.Session) (any, *api.Error) {
	district, entries, err := w.sessions.RamadanEntries(ctx.Request.Context(), s)
	switch {
	case errors.Is(err, session.ErrNoDistrict):
		return nil, &api.Error{Code: http.StatusConflict, Message: "Please select a district first to download the calendar."}
	case err != nil:
		return nil, &api.Error{Code: http.StatusServiceUnavailable, Message: err.Error()}
	}

	var buf bytes.Buffer
	pages, err := export.RamadanCalendar(&buf, district, entries)
	if errors.Is(err, export.ErrNoRamadanEntries) {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "No Ramadan calendar data available for this district."}
	}
	if err != nil {
		log.Error().Err(err).Str("district", district).Msg("[export] render failed")
		return nil, api.Internal(err)
	}

	name := export.FileName(district, export.Year(entries, time.Now().Year()))
	url, err := w.storage.Save(name, buf.Bytes())
	if err != nil {
		return nil, api.Internal(err)
	}

	log.Info().Str("session", s.ID).Str("district", district).Str("url", url).Msg("[export] calendar stored")
	return packets.ExportResponse{URL: url, FileName: name, Pages: pages}, nil
}

// DELETE /api/widget/session
func (w *WidgetController) closeSession(_ *gin.Context, s *session.Session) (any, *api.Error) {
	if err := w.sessions.Close(s.ID); err != nil {
		return nil, &api.Error{Code: http.StatusNotFound, Message: err.Error()}
	}
	return nil, nil
}
