package usecase

import "github.com/google/uuid"

// NewRecordID returns a fresh vector record identifier.
func NewRecordID() string {
	return "doc_" + uuid.NewString()
}
