package company

import (
	"context"

	pkgerrors "github.com/furniq/furniq-backend/pkg/errors"
	"github.com/google/uuid"
)

// Scope identifies the active company every read and write is stamped by.
type Scope struct {
	ID   uuid.UUID
	Name string
}

// Resolver supplies the active company for the current call. Implemented by
// the surrounding service layer; the engines only consume it.
type Resolver interface {
	Active(ctx context.Context) (Scope, error)
}

// Contact is the minimal counterparty projection the engines need.
type Contact struct {
	ID   uuid.UUID
	Name string
}

// ContactResolver resolves counterparties (suppliers, customers) by id.
type ContactResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (Contact, error)
}

// FixedResolver returns a single pre-configured scope. Used by the cmd harness
// and tests; multi-tenant hosts provide their own Resolver.
type FixedResolver struct {
	Scope Scope
}

func (r FixedResolver) Active(ctx context.Context) (Scope, error) {
	if r.Scope.ID == uuid.Nil {
		return Scope{}, pkgerrors.New(pkgerrors.CodeMissingScope, "no active company")
	}
	return r.Scope, nil
}

// Require resolves the active scope and fails loudly when none is configured.
func Require(ctx context.Context, resolver Resolver) (Scope, error) {
	if resolver == nil {
		return Scope{}, pkgerrors.New(pkgerrors.CodeMissingScope, "company resolver not configured")
	}
	scope, err := resolver.Active(ctx)
	if err != nil {
		return Scope{}, err
	}
	if scope.ID == uuid.Nil {
		return Scope{}, pkgerrors.New(pkgerrors.CodeMissingScope, "no active company")
	}
	return scope, nil
}
