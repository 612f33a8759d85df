package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/eion/tenantgate/internal/docstore"
	"github.com/eion/tenantgate/internal/logging"
	"github.com/eion/tenantgate/internal/retry"
	"github.com/eion/tenantgate/internal/zerrors"
)

// DefaultTable is the document-store table holding knowledge spaces.
const DefaultTable = "knowledge_spaces"

// Stored attribute names.
const (
	attrTenantID         = "tenantId"
	attrKnowledgeSpaceID = "knowledgeSpaceId"
	attrName             = "name"
	attrType             = "type"
	attrSourceURLs       = "sourceUrls"
	attrCurrentVersion   = "currentVersion"
	attrCreatedAt        = "createdAt"
)

// DocumentRepository implements Repository on a docstore.Client. Every store call goes through the
// retry policy; transient store errors are retried, anything else fails at once.
type DocumentRepository struct {
	client docstore.Client
	table  string
	policy retry.Policy
	logger logging.Logger
}

// NewDocumentRepository creates a repository. An empty table selects DefaultTable.
func NewDocumentRepository(client docstore.Client, table string, policy retry.Policy, logger logging.Logger) *DocumentRepository {
	if table == "" {
		table = DefaultTable
	}
	policy.RetryIf = zerrors.IsRetryable
	return &DocumentRepository{
		client: client,
		table:  table,
		policy: policy,
		logger: logger,
	}
}

// Save stores the knowledge space, replacing any previous version.
func (r *DocumentRepository) Save(ctx context.Context, space *KnowledgeSpace) error {
	fields := r.fields(space.TenantID(), space.ID())
	fields["version"] = space.CurrentVersion()
	r.logger.Debug("saving knowledge space", fields)

	key := docstore.Key{PartitionKey: space.TenantID(), SortKey: space.ID()}
	_, err := retry.Do(ctx, r.policy, r.logger, docstore.OpPutItem, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.client.PutItem(ctx, r.table, key, toItem(space))
	})
	if err != nil {
		r.logger.Error("failed to save knowledge space", err, fields)
		return err
	}

	r.logger.Info("knowledge space saved", fields)
	return nil
}

// FindByTenant returns the tenant's knowledge spaces ordered by id.
func (r *DocumentRepository) FindByTenant(ctx context.Context, tenantID string) ([]*KnowledgeSpace, error) {
	fields := r.fields(tenantID, "")
	r.logger.Debug("querying knowledge spaces", fields)

	items, err := retry.Do(ctx, r.policy, r.logger, docstore.OpQuery, func(ctx context.Context) ([]docstore.Item, error) {
		return r.client.Query(ctx, r.table, tenantID)
	})
	if err != nil {
		r.logger.Error("failed to query knowledge spaces", err, fields)
		return nil, err
	}

	spaces := make([]*KnowledgeSpace, 0, len(items))
	for _, item := range items {
		space, err := fromItemForKey(item, tenantID, "")
		if err != nil {
			r.logger.Error("stored knowledge space is invalid", err, fields)
			return nil, zerrors.NewUnhandledError("stored knowledge space is invalid", err)
		}
		spaces = append(spaces, space)
	}

	fields["count"] = len(spaces)
	r.logger.Info("knowledge spaces queried", fields)
	return spaces, nil
}

// FindByTenantAndID returns (nil, nil) when the knowledge space does not exist.
func (r *DocumentRepository) FindByTenantAndID(ctx context.Context, tenantID, knowledgeSpaceID string) (*KnowledgeSpace, error) {
	fields := r.fields(tenantID, knowledgeSpaceID)
	r.logger.Debug("fetching knowledge space", fields)

	type result struct {
		item  docstore.Item
		found bool
	}
	key := docstore.Key{PartitionKey: tenantID, SortKey: knowledgeSpaceID}
	res, err := retry.Do(ctx, r.policy, r.logger, docstore.OpGetItem, func(ctx context.Context) (result, error) {
		item, found, err := r.client.GetItem(ctx, r.table, key)
		return result{item: item, found: found}, err
	})
	if err != nil {
		r.logger.Error("failed to fetch knowledge space", err, fields)
		return nil, err
	}

	if !res.found {
		r.logger.Debug("knowledge space not found", fields)
		return nil, nil
	}

	space, err := fromItemForKey(res.item, tenantID, knowledgeSpaceID)
	if err != nil {
		r.logger.Error("stored knowledge space is invalid", err, fields)
		return nil, zerrors.NewUnhandledError("stored knowledge space is invalid", err)
	}

	r.logger.Info("knowledge space fetched", fields)
	return space, nil
}

// Delete removes the knowledge space. Deleting a missing one is not an error.
func (r *DocumentRepository) Delete(ctx context.Context, tenantID, knowledgeSpaceID string) error {
	fields := r.fields(tenantID, knowledgeSpaceID)
	r.logger.Debug("deleting knowledge space", fields)

	key := docstore.Key{PartitionKey: tenantID, SortKey: knowledgeSpaceID}
	_, err := retry.Do(ctx, r.policy, r.logger, docstore.OpDeleteItem, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.client.DeleteItem(ctx, r.table, key)
	})
	if err != nil {
		r.logger.Error("failed to delete knowledge space", err, fields)
		return err
	}

	r.logger.Info("knowledge space deleted", fields)
	return nil
}

func (r *DocumentRepository) fields(tenantID, knowledgeSpaceID string) logging.Fields {
	f := logging.Fields{"table": r.table, "tenantId": tenantID}
	if knowledgeSpaceID != "" {
		f["knowledgeSpaceId"] = knowledgeSpaceID
	}
	return f
}

func toItem(space *KnowledgeSpace) docstore.Item {
	return docstore.Item{
		attrTenantID:         space.TenantID(),
		attrKnowledgeSpaceID: space.ID(),
		attrName:             space.Name(),
		attrType:             space.Type(),
		attrSourceURLs:       space.SourceURLs(),
		attrCurrentVersion:   space.CurrentVersion(),
		attrCreatedAt:        space.CreatedAt().UTC().Format(time.RFC3339Nano),
	}
}

// fromItemForKey rebuilds a stored knowledge space and checks that it belongs to the key it was
// read under. An empty knowledgeSpaceID only checks the tenant.
func fromItemForKey(item docstore.Item, tenantID, knowledgeSpaceID string) (*KnowledgeSpace, error) {
	space, err := fromItem(item)
	if err != nil {
		return nil, err
	}
	if space.TenantID() != tenantID {
		return nil, zerrors.NewValidationError(attrTenantID,
			fmt.Sprintf("stored tenantId %q does not match key %q", space.TenantID(), tenantID))
	}
	if knowledgeSpaceID != "" && space.ID() != knowledgeSpaceID {
		return nil, zerrors.NewValidationError(attrKnowledgeSpaceID,
			fmt.Sprintf("stored knowledgeSpaceId %q does not match key %q", space.ID(), knowledgeSpaceID))
	}
	return space, nil
}

// fromItem rebuilds a knowledge space through the same validation as a new one.
func fromItem(item docstore.Item) (*KnowledgeSpace, error) {
	sourceURLs, err := stringsAttr(item, attrSourceURLs)
	if err != nil {
		return nil, err
	}

	var createdAt time.Time
	if raw := stringAttr(item, attrCreatedAt); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, zerrors.NewValidationErrorWithCause(attrCreatedAt, "createdAt is not a valid timestamp", err)
		}
		createdAt = t
	}

	return NewKnowledgeSpace(SpaceParams{
		TenantID:         stringAttr(item, attrTenantID),
		KnowledgeSpaceID: stringAttr(item, attrKnowledgeSpaceID),
		Name:             stringAttr(item, attrName),
		Type:             stringAttr(item, attrType),
		SourceURLs:       sourceURLs,
		CurrentVersion:   stringAttr(item, attrCurrentVersion),
		CreatedAt:        createdAt,
	})
}

func stringAttr(item docstore.Item, name string) string {
	s, _ := item[name].(string)
	return s
}

// stringsAttr accepts both []string and the []any produced by JSON decoding. Any non-string
// element fails the whole attribute.
func stringsAttr(item docstore.Item, name string) ([]string, error) {
	switch v := item[name].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, zerrors.NewValidationError(name, fmt.Sprintf("%s[%d] must be a string", name, i))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, zerrors.NewValidationError(name, name+" must be a list of strings")
	}
}
