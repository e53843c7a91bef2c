package endpoints

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/waqt/internal/dataset"
	"github.com/Nixie-Tech-LLC/waqt/internal/http/api"
	"github.com/Nixie-Tech-LLC/waqt/internal/model"
	"github.com/Nixie-Tech-LLC/waqt/internal/view"
)

type Datasets interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
}

type DistrictController struct {
	data Datasets
	now  func() time.Time
}

func NewDistrictController(data Datasets, now func() time.Time) *DistrictController {
	if now == nil {
		now = time.Now
	}
	return &DistrictController{data: data, now: now}
}

func DistrictModule(ctl *DistrictController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/districts", api.ResolveEndpoint(ctl.listDistricts))
		c.GET("/districts/:name/today", api.ResolveEndpoint(ctl.today))
	})
}

type districtsResponse struct {
	Districts []string `json:"districts"`
}

// GET /api/districts
func (d *DistrictController) listDistricts(ctx *gin.Context) (any, *api.Error) {
	ds, err := d.data.Load(ctx.Request.Context())
	if err != nil {
		return nil, &api.Error{Code: http.StatusServiceUnavailable, Message: "Failed to load prayer times"}
	}
	return districtsResponse{Districts: ds.Districts()}, nil
}

// GET /api/districts/:name/today
func (d *DistrictController) today(ctx *gin.Context) (any, *api.Error) {
	ds, err := d.data.Load(ctx.Request.Context())
	if err != nil {
		return nil, &api.Error{Code: http.StatusServiceUnavailable, Message: "Failed to load prayer times"}
	}

	key, ok := ds.Lookup(ctx.Param("name"))
	if !ok {
		return nil, &api.Error{Code: http.StatusNotFound, Message: dataset.ErrDistrictNotFound.Error()}
	}

	now := d.now()
	entry, ok := dataset.SelectForDate(ds.EntriesFor(key), model.DateOf(now))
	if !ok {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "no schedule for district"}
	}

	board := view.NewBoard(now)
	board.RenderSchedule(key, &entry)
	board.HighlightActivePrayer(entry, model.MinutesSinceMidnight(now))
	return board.Snapshot().Schedule, nil
}
