package domain

import "time"

// FileCategory is the coarse media class used to route a finished upload
type FileCategory string

const (
	FileCategoryRawImage FileCategory = "raw_image"
	FileCategoryVideo    FileCategory = "video"
	FileCategoryOther    FileCategory = "other"
)

// UploadCompleted is published once an upload is finalized
type UploadCompleted struct {
	EventID     string            `json:"event_id"`
	UploadID    string            `json:"upload_id"`
	Size        int64             `json:"size"`
	Filename    string            `json:"filename"`
	Filetype    string            `json:"filetype"`
	Metadata    map[string]string `json:"metadata"`
	Digest      string            `json:"digest"`
	ETag        string            `json:"etag"`
	CompletedAt time.Time         `json:"completed_at"`
}
