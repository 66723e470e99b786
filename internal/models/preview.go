package models

// ImagePreview is one entry of the merged image list shown to the user.
// Exactly one of SourceID/Handle is set: SourceID for server-known images,
// Handle for files added locally and not yet uploaded.
type ImagePreview struct {
	SourceID    *int64     `json:"source_id"`
	Handle      FileHandle `json:"-"`
	URL         string     `json:"url"`
	DisplayName string     `json:"display_name"`
	IsExisting  bool       `json:"is_existing"`
}
