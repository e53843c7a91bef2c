package endpoints

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/waqt/internal/dataset"
	"github.com/Nixie-Tech-LLC/waqt/internal/http/api"
	"github.com/Nixie-Tech-LLC/waqt/internal/http/api/admin/packets"
)

// Reloader drops the cached dataset and fetches it again.
type Reloader interface {
	Reload(ctx context.Context) (*dataset.Dataset, error)
	SourceName() string
}

type AdminController struct {
	data     Reloader
	sessions func() int
}

func NewAdminController(data Reloader, sessions func() int) *AdminController {
	return &AdminController{data: data, sessions: sessions}
}

func DatasetModule(ctl *AdminController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/dataset/reload", api.ResolveEndpoint(ctl.reload))
	})
}

// POST /api/admin/dataset/reload
func (a *AdminController) reload(ctx *gin.Context) (any, *api.Error) {
	ds, err := a.data.Reload(ctx.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("[admin] dataset reload failed")
		return nil, &api.Error{Code: http.StatusBadGateway, Message: err.Error()}
	}

	resp := packets.ReloadResponse{Source: a.data.SourceName(), Districts: ds.Len()}
	if a.sessions != nil {
		resp.Sessions = a.sessions()
	}
	log.Info().Str("admin", ctx.GetString("admin")).Int("districts", resp.Districts).Msg("[admin] dataset reloaded")
	return resp, nil
}
