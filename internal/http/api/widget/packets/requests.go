package packets

// REQUESTS FOR /api/widget/*

// CreateSessionRequest describes the widget's platform when it connects.
type CreateSessionRequest struct {
	Supported     bool   `json:"supported"`
	SecureContext bool   `json:"secure_context"`
	Permission    string `json:"permission"`
}

type PermissionRequest struct {
	State string `json:"state" binding:"required,oneof=prompt granted denied"`
}

type PositionRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
	Accuracy  float64  `json:"accuracy"`
}

// PositionErrorRequest carries a platform error code: 1 denied, 2 unavailable, 3 timeout.
type PositionErrorRequest struct {
	Code    int    `json:"code" binding:"required,oneof=1 2 3"`
	Message string `json:"message"`
}

type DistrictRequest struct {
	District string `json:"district" binding:"required"`
}

type CalendarQuery struct {
	Year  int `form:"year" binding:"omitempty,min=1900,max=2200"`
	Month int `form:"month" binding:"omitempty,min=1,max=12"`
	Shift int `form:"shift"`
}
