package packets

import (
	"github.com/Nixie-Tech-LLC/waqt/internal/resolver"
	"github.com/Nixie-Tech-LLC/waqt/internal/view"
)

// RESPONSES FOR /api/widget/*

type CreateSessionResponse struct {
	SessionID string        `json:"session_id"`
	Token     string        `json:"token"`
	View      view.Snapshot `json:"view"`
}

// ViewResponse is the widget's paint state plus the resolver state behind it.
type ViewResponse struct {
	View  view.Snapshot  `json:"view"`
	State resolver.State `json:"state"`
}

type ExportResponse struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	Pages    int    `json:"pages"`
}
