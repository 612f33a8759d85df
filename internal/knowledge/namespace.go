package knowledge

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/eion/tenantgate/internal/zerrors"
)

// Namespace is the retrieval partition key of one version of a knowledge space.
// The zero value is not meaningful; build it with NewNamespace or KnowledgeSpace.Namespace.
type Namespace struct {
	tenantID         string
	knowledgeSpaceID string
	version          string
}

// NewNamespace builds a namespace. Inputs are used verbatim: no trimming or case folding.
func NewNamespace(tenantID, knowledgeSpaceID, version string) Namespace {
	return Namespace{
		tenantID:         tenantID,
		knowledgeSpaceID: knowledgeSpaceID,
		version:          version,
	}
}

func (n Namespace) TenantID() string         { return n.tenantID }
func (n Namespace) KnowledgeSpaceID() string { return n.knowledgeSpaceID }
func (n Namespace) Version() string          { return n.version }

// String returns the canonical form t_{tenantId}_ks_{knowledgeSpaceId}_{version}.
func (n Namespace) String() string {
	return fmt.Sprintf("t_%s_ks_%s_%s", n.tenantID, n.knowledgeSpaceID, n.version)
}

// Equal compares canonical forms.
func (n Namespace) Equal(other Namespace) bool {
	return n.String() == other.String()
}

// MaxIdentifierLength bounds tenant and knowledge-space identifiers accepted at ingress.
const MaxIdentifierLength = 128

// CheckIdentifier rejects identifiers that could make two different namespaces render the same
// canonical string. The namespace separator is '_', so identifiers may not contain it.
func CheckIdentifier(field, value string) error {
	switch {
	case value == "":
		return zerrors.NewValidationError(field, fmt.Sprintf("%s is required", field))
	case len(value) > MaxIdentifierLength:
		return zerrors.NewValidationError(field, fmt.Sprintf("%s must be at most %d characters", field, MaxIdentifierLength))
	case strings.Contains(value, "_"):
		return zerrors.NewValidationError(field, fmt.Sprintf("%s must not contain '_'", field))
	case strings.IndexFunc(value, unicode.IsSpace) >= 0:
		return zerrors.NewValidationError(field, fmt.Sprintf("%s must not contain whitespace", field))
	}
	return nil
}
