package models

import "time"

const (
	MimeJSON   = "application/json"
	MimeFolder = "application/vnd.opsboard.folder"

	BoardSuffix    = ".opsboard"
	ConfigFileName = "opsboard_global_config.json"
)

// FileMeta is the metadata record the document store keeps next to every blob.
// LocationID is the typed location tag; Description may still carry the legacy
// [FID:<id>] token for documents created before the field existed.
type FileMeta struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	MimeType    string    `json:"mimeType" bson:"mime_type"`
	Description string    `json:"description" bson:"description"`
	LocationID  string    `json:"locationId,omitempty" bson:"location_id"`
	Parents     []string  `json:"parents" bson:"parents"`
	CreatedAt   time.Time `json:"createdTime" bson:"created_at"`
}

func (m FileMeta) InFolder(folderID string) bool {
	for _, p := range m.Parents {
		if p == folderID {
			return true
		}
	}
	return false
}
