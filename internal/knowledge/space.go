package knowledge

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/eion/tenantgate/internal/zerrors"
)

var versionPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// VersionLayout is the time layout of knowledge-space versions.
const VersionLayout = "2006-01-02"

// SpaceParams carries the fields of a knowledge space before validation.
type SpaceParams struct {
	TenantID         string
	KnowledgeSpaceID string
	Name             string
	Type             string
	SourceURLs       []string
	CurrentVersion   string
	CreatedAt        time.Time
}

// KnowledgeSpace is a tenant's named, versioned collection of sources. Values are immutable;
// a new version is a new KnowledgeSpace.
type KnowledgeSpace struct {
	tenantID         string
	knowledgeSpaceID string
	name             string
	spaceType        string
	sourceURLs       []string
	currentVersion   string
	createdAt        time.Time
}

// NewKnowledgeSpace validates p and builds the entity. No partially valid entity is ever returned.
func NewKnowledgeSpace(p SpaceParams) (*KnowledgeSpace, error) {
	if p.TenantID == "" {
		return nil, zerrors.NewValidationError("tenantId", "tenantId is required")
	}
	if p.KnowledgeSpaceID == "" {
		return nil, zerrors.NewValidationError("knowledgeSpaceId", "knowledgeSpaceId is required")
	}
	if len(p.SourceURLs) == 0 {
		return nil, zerrors.NewValidationError("sourceUrls", "sourceUrls must contain at least one url")
	}
	if !versionPattern.MatchString(p.CurrentVersion) {
		return nil, zerrors.NewValidationError("currentVersion", "currentVersion must match YYYY-MM-DD")
	}

	urls := make([]string, len(p.SourceURLs))
	copy(urls, p.SourceURLs)

	return &KnowledgeSpace{
		tenantID:         p.TenantID,
		knowledgeSpaceID: p.KnowledgeSpaceID,
		name:             p.Name,
		spaceType:        p.Type,
		sourceURLs:       urls,
		currentVersion:   p.CurrentVersion,
		createdAt:        p.CreatedAt,
	}, nil
}

func (k *KnowledgeSpace) TenantID() string       { return k.tenantID }
func (k *KnowledgeSpace) ID() string             { return k.knowledgeSpaceID }
func (k *KnowledgeSpace) Name() string           { return k.name }
func (k *KnowledgeSpace) Type() string           { return k.spaceType }
func (k *KnowledgeSpace) CurrentVersion() string { return k.currentVersion }
func (k *KnowledgeSpace) CreatedAt() time.Time   { return k.createdAt }

// SourceURLs returns a copy of the ordered source list.
func (k *KnowledgeSpace) SourceURLs() []string {
	urls := make([]string, len(k.sourceURLs))
	copy(urls, k.sourceURLs)
	return urls
}

// Namespace returns the retrieval partition of the current version.
func (k *KnowledgeSpace) Namespace() Namespace {
	return NewNamespace(k.tenantID, k.knowledgeSpaceID, k.currentVersion)
}

// WithVersion returns a new knowledge space for another version.
func (k *KnowledgeSpace) WithVersion(version string) (*KnowledgeSpace, error) {
	p := k.params()
	p.CurrentVersion = version
	return NewKnowledgeSpace(p)
}

func (k *KnowledgeSpace) params() SpaceParams {
	return SpaceParams{
		TenantID:         k.tenantID,
		KnowledgeSpaceID: k.knowledgeSpaceID,
		Name:             k.name,
		Type:             k.spaceType,
		SourceURLs:       k.SourceURLs(),
		CurrentVersion:   k.currentVersion,
		CreatedAt:        k.createdAt,
	}
}

// spaceView is the JSON shape of a knowledge space.
type spaceView struct {
	TenantID         string    `json:"tenantId"`
	KnowledgeSpaceID string    `json:"knowledgeSpaceId"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	SourceURLs       []string  `json:"sourceUrls"`
	CurrentVersion   string    `json:"currentVersion"`
	Namespace        string    `json:"namespace"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (k *KnowledgeSpace) MarshalJSON() ([]byte, error) {
	return json.Marshal(spaceView{
		TenantID:         k.tenantID,
		KnowledgeSpaceID: k.knowledgeSpaceID,
		Name:             k.name,
		Type:             k.spaceType,
		SourceURLs:       k.sourceURLs,
		CurrentVersion:   k.currentVersion,
		Namespace:        k.Namespace().String(),
		CreatedAt:        k.createdAt,
	})
}
