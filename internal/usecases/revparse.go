package usecases

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// MinAbbrevLength is the shortest hex prefix accepted as an abbreviated id.
const MinAbbrevLength = 4

// maxPeelDepth bounds tag-to-tag chains.
const maxPeelDepth = 16

// maxConcurrentResolves bounds the fan-out of ResolveAll.
const maxConcurrentResolves = 8

var (
	fullHashRegexp   = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
	abbrevHashRegexp = regexp.MustCompile(`^[0-9a-fA-F]{4,39}$`)
)

// revModType is the operator of a revision modifier.
type revModType rune

const (
	revModTilde revModType = '~'
	revModCaret revModType = '^'
)

// revModifier is one ~N or ^N suffix.
type revModifier struct {
	Type  revModType
	Value int
}

// rawRevision is a parsed revision expression.
// Example: main~2^2 parses into {Base:"main", Modifiers:[{~,2},{^,2}]}.
type rawRevision struct {
	Base      string
	Modifiers []revModifier
}

// parseRevision splits an expression into its base and modifiers.
func parseRevision(expr string) (rawRevision, error) {
	idx := strings.IndexAny(expr, "~^")
	base := expr
	if idx >= 0 {
		base = expr[:idx]
	}
	if base == "" || strings.ContainsAny(base, " \t\n:?*[\\") || strings.Contains(base, "..") {
		return rawRevision{}, fmt.Errorf("%w: %q", domain.ErrInvalidRevision, expr)
	}

	rev := rawRevision{Base: base}
	if idx < 0 {
		return rev, nil
	}

	rest := expr[idx:]
	for len(rest) > 0 {
		op := revModType(rest[0])
		if op != revModTilde && op != revModCaret {
			return rawRevision{}, fmt.Errorf("%w: %q", domain.ErrInvalidRevision, expr)
		}
		rest = rest[1:]

		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		value := 1
		if end > 0 {
			n, err := strconv.Atoi(rest[:end])
			if err != nil {
				return rawRevision{}, fmt.Errorf("%w: %q: %w", domain.ErrInvalidRevision, expr, err)
			}
			value = n
		}
		rev.Modifiers = append(rev.Modifiers, revModifier{Type: op, Value: value})
		rest = rest[end:]
	}
	return rev, nil
}

// RevisionResolver resolves revision expressions to object ids.
type RevisionResolver struct {
	store  domain.ObjectStore
	logger Logger
}

// NewRevisionResolver creates a RevisionResolver reading from store.
func NewRevisionResolver(store domain.ObjectStore, log Logger) *RevisionResolver {
	return &RevisionResolver{store: store, logger: log}
}

type revResolverFunc func(ctx context.Context, base string) (domain.Oid, error)

// Resolve returns the oid named by expr. Without modifiers the named object is
// returned as is, so an annotated tag resolves to the tag object.
func (r *RevisionResolver) Resolve(ctx context.Context, expr string) (domain.Oid, error) {
	rev, err := parseRevision(expr)
	if err != nil {
		return "", err
	}

	oid, err := r.resolveBase(ctx, rev.Base)
	if err != nil {
		return "", err
	}
	if len(rev.Modifiers) == 0 {
		return oid, nil
	}

	oid, err = r.peelToCommit(ctx, expr, oid)
	if err != nil {
		return "", err
	}

	for _, mod := range rev.Modifiers {
		switch mod.Type {
		case revModTilde:
			for i := 0; i < mod.Value; i++ {
				c, err := r.store.Commit(ctx, oid)
				if err != nil {
					return "", r.unknown(expr, err)
				}
				if len(c.ParentOids) == 0 {
					return "", fmt.Errorf("%w: %s: %s has no parent", domain.ErrUnknownRevision, expr, oid.Short())
				}
				oid = c.ParentOids[0]
			}
		case revModCaret:
			if mod.Value == 0 {
				// ^0 is the commit itself
				continue
			}
			c, err := r.store.Commit(ctx, oid)
			if err != nil {
				return "", r.unknown(expr, err)
			}
			if mod.Value > len(c.ParentOids) {
				return "", fmt.Errorf("%w: %s: %s has %d parent(s)",
					domain.ErrUnknownRevision, expr, oid.Short(), len(c.ParentOids))
			}
			oid = c.ParentOids[mod.Value-1]
		default:
			return "", fmt.Errorf("%w: %q", domain.ErrInvalidRevision, expr)
		}
	}
	return oid, nil
}

// ResolveCommit resolves expr and peels annotated tags down to a commit, the
// form required for walk roots.
func (r *RevisionResolver) ResolveCommit(ctx context.Context, expr string) (domain.Oid, error) {
	oid, err := r.Resolve(ctx, expr)
	if err != nil {
		return "", err
	}
	return r.peelToCommit(ctx, expr, oid)
}

// ResolveAll resolves every expression to a commit concurrently. The first
// failure cancels the rest and is returned; no partial result is produced.
func (r *RevisionResolver) ResolveAll(ctx context.Context, exprs []string) ([]domain.Oid, error) {
	if len(exprs) == 0 {
		return nil, nil
	}

	oids := make([]domain.Oid, len(exprs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentResolves)
	for i, expr := range exprs {
		g.Go(func() error {
			oid, err := r.ResolveCommit(gctx, expr)
			if err != nil {
				return err
			}
			oids[i] = oid
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return oids, nil
}

// resolveBase returns the first match of base by full id, reference name or
// abbreviated id.
func (r *RevisionResolver) resolveBase(ctx context.Context, base string) (domain.Oid, error) {
	resolvers := []revResolverFunc{r.revResolveFullHash, r.revResolveRef, r.revResolveAbbrev}
	for _, resolve := range resolvers {
		oid, err := resolve(ctx, base)
		if err != nil {
			return "", err
		}
		if oid != "" {
			return oid, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrUnknownRevision, base)
}

func (r *RevisionResolver) revResolveFullHash(ctx context.Context, base string) (domain.Oid, error) {
	if !fullHashRegexp.MatchString(base) {
		return "", nil
	}
	oid := domain.Oid(strings.ToLower(base))
	if _, err := r.store.LookupKind(ctx, oid); err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return "", nil
		}
		return "", err
	}
	return oid, nil
}

// refCandidates lists the names tried for base, in git's dwim order.
func refCandidates(base string) []string {
	if base == "@" {
		return []string{"HEAD"}
	}
	if base == "HEAD" || strings.HasPrefix(base, "refs/") {
		return []string{base}
	}
	return []string{
		base,
		"refs/" + base,
		"refs/tags/" + base,
		"refs/heads/" + base,
		"refs/remotes/" + base,
		"refs/remotes/" + base + "/HEAD",
	}
}

func (r *RevisionResolver) revResolveRef(ctx context.Context, base string) (domain.Oid, error) {
	for _, name := range refCandidates(base) {
		ref, err := r.store.Reference(ctx, name)
		if errors.Is(err, domain.ErrReferenceNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		return ref.Target, nil
	}
	return "", nil
}

func (r *RevisionResolver) revResolveAbbrev(ctx context.Context, base string) (domain.Oid, error) {
	if !abbrevHashRegexp.MatchString(base) {
		return "", nil
	}
	matches, err := r.store.HashesWithPrefix(ctx, strings.ToLower(base))
	if err != nil {
		return "", err
	}

	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		return matches[0], nil
	default:
		r.logger.Debug(ctx, "abbreviated id is ambiguous", map[string]interface{}{
			"prefix":  base,
			"matches": len(matches),
		})
		return "", fmt.Errorf("%w: %s matches %d objects", domain.ErrAmbiguousRevision, base, len(matches))
	}
}

// peelToCommit follows annotated tags until it reaches a commit.
func (r *RevisionResolver) peelToCommit(ctx context.Context, expr string, oid domain.Oid) (domain.Oid, error) {
	for i := 0; i < maxPeelDepth; i++ {
		kind, err := r.store.LookupKind(ctx, oid)
		if err != nil {
			return "", r.unknown(expr, err)
		}
		switch kind {
		case domain.KindCommit:
			return oid, nil
		case domain.KindTag:
			target, _, err := r.store.TagTarget(ctx, oid)
			if err != nil {
				return "", r.unknown(expr, err)
			}
			oid = target
		case domain.KindTree, domain.KindBlob, domain.KindUnknown:
			return "", fmt.Errorf("%s: %w", expr, &domain.UnsupportedObjectKindError{Oid: oid, Kind: kind})
		default:
			return "", fmt.Errorf("%s: %w", expr, &domain.UnsupportedObjectKindError{Oid: oid, Kind: kind})
		}
	}
	return "", fmt.Errorf("%w: %s: tag chain too deep", domain.ErrUnknownRevision, expr)
}

// unknown maps a missing object to ErrUnknownRevision and passes other errors through.
func (r *RevisionResolver) unknown(expr string, err error) error {
	if errors.Is(err, domain.ErrObjectNotFound) {
		return fmt.Errorf("%w: %s: %w", domain.ErrUnknownRevision, expr, err)
	}
	return err
}
