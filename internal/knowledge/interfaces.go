package knowledge

import "context"

// Repository defines the interface for knowledge space persistence
type Repository interface {
	Save(ctx context.Context, space *KnowledgeSpace) error
	FindByTenant(ctx context.Context, tenantID string) ([]*KnowledgeSpace, error)
	// FindByTenantAndID returns (nil, nil) when the knowledge space does not exist.
	FindByTenantAndID(ctx context.Context, tenantID, knowledgeSpaceID string) (*KnowledgeSpace, error)
	Delete(ctx context.Context, tenantID, knowledgeSpaceID string) error
}

// Manager defines the knowledge management use cases
type Manager interface {
	CreateKnowledgeSpace(ctx context.Context, tenantID string, req *CreateKnowledgeSpaceRequest) (*KnowledgeSpace, error)
	ListKnowledgeSpaces(ctx context.Context, tenantID string) ([]*KnowledgeSpace, error)
	GetKnowledgeSpace(ctx context.Context, tenantID, knowledgeSpaceID string) (*KnowledgeSpace, error)
	DeleteKnowledgeSpace(ctx context.Context, tenantID, knowledgeSpaceID string) error
}

// PartitionRegistry records which retrieval partitions exist. It is optional.
type PartitionRegistry interface {
	RegisterPartition(ctx context.Context, namespace, tenantID, knowledgeSpaceID, version string) error
	DeletePartitions(ctx context.Context, tenantID, knowledgeSpaceID string) error
}
