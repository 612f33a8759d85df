package knowledge

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eion/tenantgate/internal/zerrors"
)

// CreateKnowledgeSpaceRequest represents a request to create a knowledge space or a new version of one
type CreateKnowledgeSpaceRequest struct {
	KnowledgeSpaceID string   `json:"knowledgeSpaceId,omitempty"`
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	SourceURLs       []string `json:"sourceUrls"`
	Version          string   `json:"version,omitempty"`
}

// Validate validates the create knowledge space request
func (r *CreateKnowledgeSpaceRequest) Validate() error {
	if r.Name == "" {
		return zerrors.NewValidationError("name", "name is required")
	}
	if r.KnowledgeSpaceID != "" {
		if err := CheckIdentifier("knowledgeSpaceId", r.KnowledgeSpaceID); err != nil {
			return err
		}
	}
	if len(r.SourceURLs) == 0 {
		return zerrors.NewValidationError("sourceUrls", "sourceUrls must contain at least one url")
	}
	for i, u := range r.SourceURLs {
		if u == "" {
			return zerrors.NewValidationError("sourceUrls", fmt.Sprintf("sourceUrls[%d] must not be empty", i))
		}
	}
	return nil
}

// ToKnowledgeSpace converts the request to a KnowledgeSpace owned by tenantID
func (r *CreateKnowledgeSpaceRequest) ToKnowledgeSpace(tenantID string, now time.Time) (*KnowledgeSpace, error) {
	id := r.KnowledgeSpaceID
	if id == "" {
		id = uuid.New().String()
	}

	version := r.Version
	if version == "" {
		version = now.UTC().Format(VersionLayout)
	}

	spaceType := r.Type
	if spaceType == "" {
		spaceType = "web"
	}

	return NewKnowledgeSpace(SpaceParams{
		TenantID:         tenantID,
		KnowledgeSpaceID: id,
		Name:             r.Name,
		Type:             spaceType,
		SourceURLs:       r.SourceURLs,
		CurrentVersion:   version,
		CreatedAt:        now.UTC(),
	})
}
