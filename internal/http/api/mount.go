package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/waqt/internal/http/middleware"
)

// Controller is the gin group a Module attaches its endpoints to.
type Controller struct {
	*gin.RouterGroup
}

// Module attaches a feature's endpoints to a Controller.
type Module interface {
	Mount(c *Controller)
}

type ModuleFunc func(c *Controller)

func (f ModuleFunc) Mount(c *Controller) { f(c) }

// Access selects who may call the endpoints of a group.
type Access int

const (
	Public Access = iota
	// SessionToken requires a widget session token in the Authorization header.
	SessionToken
	// AdminBasic requires the operator's basic-auth credentials.
	AdminBasic
)

func (a Access) String() string {
	switch a {
	case SessionToken:
		return "session"
	case AdminBasic:
		return "admin"
	default:
		return "public"
	}
}

var (
	ErrNoSessionSecret    = errors.New("session-token group without a session secret")
	ErrNoAdminCredentials = errors.New("admin group without admin credentials")
)

// GroupConfig describes one mounted group.
type GroupConfig struct {
	Prefix string
	Access Access

	SessionSecret     string
	AdminUser         string
	AdminPasswordHash string

	// Middleware runs before the access check.
	Middleware []gin.HandlerFunc
}

func (cfg GroupConfig) guard() (gin.HandlerFunc, error) {
	switch cfg.Access {
	case SessionToken:
		if cfg.SessionSecret == "" {
			return nil, ErrNoSessionSecret
		}
		return middleware.SessionMiddleware(cfg.SessionSecret), nil
	case AdminBasic:
		if cfg.AdminUser == "" || cfg.AdminPasswordHash == "" {
			return nil, ErrNoAdminCredentials
		}
		return middleware.AdminAuth(cfg.AdminUser, cfg.AdminPasswordHash), nil
	default:
		return nil, nil
	}
}

// MountGroup mounts modules under cfg.Prefix behind the configured access
// check. A group whose access check cannot be built is not mounted at all.
func MountGroup(parent gin.IRouter, cfg GroupConfig, modules ...Module) error {
	guard, err := cfg.guard()
	if err != nil {
		return err
	}

	grp := parent.Group(cfg.Prefix, cfg.Middleware...)
	if guard != nil {
		grp.Use(guard)
	}

	controller := &Controller{RouterGroup: grp}
	for _, m := range modules {
		m.Mount(controller)
	}

	log.Debug().Str("prefix", grp.BasePath()).Stringer("access", cfg.Access).Int("modules", len(modules)).Msg("[api] group mounted")
	return nil
}
