package packets

// RESPONSES FOR /api/admin/*

type ReloadResponse struct {
	Source    string `json:"source"`
	Districts int    `json:"districts"`
	Sessions  int    `json:"sessions"`
}
