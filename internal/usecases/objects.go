// Package usecases contains the application business logic.
// This package orchestrates domain entities and interfaces to answer graph queries.
package usecases

import (
	"context"
	"fmt"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// Logger defines the logging interface required by the use cases.
// This abstracts the logger dependency to avoid coupling to a specific implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// ObjectResolver turns an oid into a typed object.
type ObjectResolver struct {
	store domain.ObjectStore
}

// NewObjectResolver creates an ObjectResolver reading from store.
func NewObjectResolver(store domain.ObjectStore) *ObjectResolver {
	return &ObjectResolver{store: store}
}

// Resolve looks up the kind of oid and fetches it through the matching accessor.
// Blobs, tags and unknown kinds fail with *domain.UnsupportedObjectKindError.
func (r *ObjectResolver) Resolve(ctx context.Context, oid domain.Oid) (domain.Object, error) {
	kind, err := r.store.LookupKind(ctx, oid)
	if err != nil {
		return nil, err
	}

	switch kind {
	case domain.KindCommit:
		return r.store.Commit(ctx, oid)
	case domain.KindTree:
		return r.store.Tree(ctx, oid)
	case domain.KindBlob, domain.KindTag, domain.KindUnknown:
		return nil, &domain.UnsupportedObjectKindError{Oid: oid, Kind: kind}
	default:
		return nil, &domain.UnsupportedObjectKindError{Oid: oid, Kind: kind}
	}
}

// ResolveCommit resolves oid and requires the result to be a commit.
func (r *ObjectResolver) ResolveCommit(ctx context.Context, oid domain.Oid) (*domain.Commit, error) {
	obj, err := r.Resolve(ctx, oid)
	if err != nil {
		return nil, err
	}
	c, ok := obj.(*domain.Commit)
	if !ok {
		return nil, fmt.Errorf("expected commit: %w", &domain.UnsupportedObjectKindError{Oid: oid, Kind: obj.Kind()})
	}
	return c, nil
}
