package main

import (
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/waqt/internal/config"
	"github.com/Nixie-Tech-LLC/waqt/internal/dataset"
	"github.com/Nixie-Tech-LLC/waqt/internal/http/api"
	adminapi "github.com/Nixie-Tech-LLC/waqt/internal/http/api/admin/endpoints"
	districtapi "github.com/Nixie-Tech-LLC/waqt/internal/http/api/districts/endpoints"
	widgetapi "github.com/Nixie-Tech-LLC/waqt/internal/http/api/widget/endpoints"
	"github.com/Nixie-Tech-LLC/waqt/internal/session"
	"github.com/Nixie-Tech-LLC/waqt/internal/storage"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, cfg *config.Config, loader *dataset.Loader, sessions *session.Manager, storageSystem storage.Storage) error {
	// widgets are embedded on other sites
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	locateTimeout := cfg.GPSTimeout + cfg.GeocodeTimeout + 5*time.Second
	widget := widgetapi.NewWidgetController(sessions, cfg.SessionSecret, cfg.SessionIdleExpiry, locateTimeout, storageSystem)

	if err := api.MountGroup(r, api.GroupConfig{Prefix: "/api/widget"},
		widgetapi.SessionModule(widget),
	); err != nil {
		return err
	}

	if err := api.MountGroup(r, api.GroupConfig{
		Prefix:        "/api/widget",
		Access:        api.SessionToken,
		SessionSecret: cfg.SessionSecret,
	},
		widgetapi.WidgetModule(widget),
	); err != nil {
		return err
	}

	if err := api.MountGroup(r, api.GroupConfig{Prefix: "/api"},
		districtapi.DistrictModule(districtapi.NewDistrictController(loader, nil)),
	); err != nil {
		return err
	}

	err := api.MountGroup(r, api.GroupConfig{
		Prefix:            "/api/admin",
		Access:            api.AdminBasic,
		AdminUser:         cfg.AdminUser,
		AdminPasswordHash: cfg.AdminPasswordHash,
	},
		adminapi.DatasetModule(adminapi.NewAdminController(loader, sessions.Len)),
	)
	switch {
	case errors.Is(err, api.ErrNoAdminCredentials):
		log.Warn().Msg("ADMIN_USER or ADMIN_PASSWORD_HASH not set, admin API disabled")
	case err != nil:
		return err
	}

	// Static content
	if !cfg.UseSpaces {
		r.Static(exportsRoute, cfg.ExportDir)
	}
	return nil
}
