package dto

import "time"

// Offline catalog item statuses.
const (
	OfflineStatusQueued      = "queued"
	OfflineStatusDownloading = "downloading"
	OfflineStatusReady       = "ready"
)

// OfflineMarkRequest asks for a course or lesson to be made available offline.
type OfflineMarkRequest struct {
	CourseID  uint   `json:"course_id" validate:"required,gt=0"`
	LessonID  *uint  `json:"lesson_id" validate:"omitempty,gt=0"`
	Title     string `json:"title" validate:"required,min=1,max=255"`
	SizeBytes int64  `json:"size_bytes" validate:"required,gt=0"`
}

// OfflineItemResponse describes one entry in the offline catalog.
type OfflineItemResponse struct {
	ID        string    `json:"id"`
	CourseID  uint      `json:"course_id"`
	LessonID  *uint     `json:"lesson_id"`
	Title     string    `json:"title"`
	SizeBytes int64     `json:"size_bytes"`
	Progress  int       `json:"progress"`
	Status    string    `json:"status"`
	MarkedAt  time.Time `json:"marked_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OfflineQuotaResponse reports storage consumption for the offline catalog.
type OfflineQuotaResponse struct {
	UsedBytes  int64   `json:"used_bytes"`
	LimitBytes int64   `json:"limit_bytes"`
	UsedPct    float64 `json:"used_pct"`
}

// OfflineCatalogResponse bundles the catalog with its quota.
type OfflineCatalogResponse struct {
	Items []OfflineItemResponse `json:"items"`
	Quota OfflineQuotaResponse  `json:"quota"`
}
