package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// RepositoryGraph answers queries against a single repository.
// It implements domain.Graph and is safe for concurrent use when the
// underlying store is.
type RepositoryGraph struct {
	store   domain.ObjectStore
	objects *ObjectResolver
	revs    *RevisionResolver
	walker  *Walker
	slips   *SlipResolver
	finder  domain.SlipFinder
	logger  Logger
}

// NewRepositoryGraph wires the resolvers and the walker over store.
// slips may be nil, in which case Slip always resolves to nil.
// observer may be nil.
func NewRepositoryGraph(
	store domain.ObjectStore,
	slips domain.SlipFinder,
	log Logger,
	observer WalkObserver,
) *RepositoryGraph {
	g := &RepositoryGraph{
		store:   store,
		objects: NewObjectResolver(store),
		revs:    NewRevisionResolver(store, log),
		walker:  NewWalker(store, log, observer),
		finder:  slips,
		logger:  log,
	}
	if slips != nil {
		g.slips = NewSlipResolver(store, g.walker, slips, log)
	}
	return g
}

var _ domain.Graph = (*RepositoryGraph)(nil)

// Path returns the repository location.
func (g *RepositoryGraph) Path() string {
	return g.store.Path()
}

// Name returns owner/repo derived from the 'origin' remote.
func (g *RepositoryGraph) Name(ctx context.Context) (string, error) {
	return g.store.RepositoryName(ctx)
}

// Reference looks up a reference by canonical name, or by short name using
// the same candidate order as revision parsing.
func (g *RepositoryGraph) Reference(ctx context.Context, name string) (*domain.Reference, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", domain.ErrReferenceNotFound)
	}
	for _, candidate := range refCandidates(name) {
		ref, err := g.store.Reference(ctx, candidate)
		if errors.Is(err, domain.ErrReferenceNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return ref, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrReferenceNotFound, name)
}

// Branch looks up refs/heads/<name>.
func (g *RepositoryGraph) Branch(ctx context.Context, name string) (*domain.Reference, error) {
	return g.store.Reference(ctx, "refs/heads/"+strings.TrimPrefix(name, "refs/heads/"))
}

// Commit returns the commit for a full or abbreviated oid.
func (g *RepositoryGraph) Commit(ctx context.Context, oid string) (*domain.Commit, error) {
	full, err := g.expandOid(ctx, oid)
	if err != nil {
		return nil, err
	}
	return g.objects.ResolveCommit(ctx, full)
}

// Object resolves a full or abbreviated oid to a commit or tree.
func (g *RepositoryGraph) Object(ctx context.Context, oid string) (domain.Object, error) {
	full, err := g.expandOid(ctx, oid)
	if err != nil {
		return nil, err
	}
	return g.objects.Resolve(ctx, full)
}

// RevParse resolves a revision expression to an oid.
func (g *RepositoryGraph) RevParse(ctx context.Context, expression string) (domain.Oid, error) {
	return g.revs.Resolve(ctx, expression)
}

// Log resolves every boundary expression, failing on the first bad one, and
// then starts the walk.
func (g *RepositoryGraph) Log(ctx context.Context, input domain.LogInput) (domain.CommitIterator, error) {
	exprs := make([]string, 0, len(input.ReachableFrom)+len(input.NotReachableFrom))
	exprs = append(exprs, input.ReachableFrom...)
	exprs = append(exprs, input.NotReachableFrom...)

	oids, err := g.revs.ResolveAll(ctx, exprs)
	if err != nil {
		g.logger.Warn(ctx, "failed to resolve log boundaries", map[string]interface{}{
			"reachable_from":     input.ReachableFrom,
			"not_reachable_from": input.NotReachableFrom,
			"error":              err.Error(),
		})
		return nil, err
	}

	walk := domain.WalkInput{FirstParent: input.FirstParent}
	if len(oids) > 0 {
		walk.Include = oids[:len(input.ReachableFrom)]
		walk.Exclude = oids[len(input.ReachableFrom):]
	}

	g.logger.Info(ctx, "walking history", map[string]interface{}{
		"reachable_from":     input.ReachableFrom,
		"not_reachable_from": input.NotReachableFrom,
		"first_parent":       input.FirstParent,
	})
	return g.walker.Walk(ctx, walk)
}

// Parents returns the parents of c in recorded order.
func (g *RepositoryGraph) Parents(ctx context.Context, c *domain.Commit) ([]*domain.Commit, error) {
	parents := make([]*domain.Commit, 0, len(c.ParentOids))
	for _, oid := range c.ParentOids {
		p, err := g.store.Commit(ctx, oid)
		if err != nil {
			return nil, fmt.Errorf("failed to read parent %s of %s: %w", oid.Short(), c.Oid.Short(), err)
		}
		parents = append(parents, p)
	}
	return parents, nil
}

// Tree returns the snapshot tree of c.
func (g *RepositoryGraph) Tree(ctx context.Context, c *domain.Commit) (*domain.Tree, error) {
	return g.store.Tree(ctx, c.TreeOid)
}

// Target resolves the object a reference points at.
func (g *RepositoryGraph) Target(ctx context.Context, ref *domain.Reference) (domain.Object, error) {
	obj, err := g.objects.Resolve(ctx, ref.Target)
	if err != nil {
		return nil, dangling(ref, err)
	}
	return obj, nil
}

// TargetCommit resolves the commit a reference points at, peeling annotated tags.
func (g *RepositoryGraph) TargetCommit(ctx context.Context, ref *domain.Reference) (*domain.Commit, error) {
	oid, err := g.revs.peelToCommit(ctx, ref.Name, ref.Target)
	if err != nil {
		return nil, dangling(ref, err)
	}
	c, err := g.store.Commit(ctx, oid)
	if err != nil {
		return nil, dangling(ref, err)
	}
	return c, nil
}

// Slip returns the routing slip recorded for c or one of its first depth-1
// ancestors. It returns nil without error when slip lookups are not
// configured or no slip matches.
func (g *RepositoryGraph) Slip(ctx context.Context, c *domain.Commit, depth int) (*domain.Slip, error) {
	if g.slips == nil {
		return nil, nil
	}
	return g.slips.Resolve(ctx, c, depth)
}

// Close releases the store and the slip finder.
func (g *RepositoryGraph) Close() error {
	var errs []error
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close object store: %w", err))
	}
	if g.finder != nil {
		if err := g.finder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close slip finder: %w", err))
		}
	}
	return errors.Join(errs...)
}

// expandOid turns a full or abbreviated hex id into a full oid.
func (g *RepositoryGraph) expandOid(ctx context.Context, s string) (domain.Oid, error) {
	switch {
	case fullHashRegexp.MatchString(s):
		return domain.Oid(strings.ToLower(s)), nil
	case abbrevHashRegexp.MatchString(s):
		oid, err := g.revs.revResolveAbbrev(ctx, s)
		if err != nil {
			return "", err
		}
		if oid == "" {
			return "", fmt.Errorf("%w: %s", domain.ErrObjectNotFound, s)
		}
		return oid, nil
	default:
		return "", fmt.Errorf("%w: malformed object id %q", domain.ErrObjectNotFound, s)
	}
}

// dangling reports a missing target as a dangling reference.
func dangling(ref *domain.Reference, err error) error {
	if errors.Is(err, domain.ErrObjectNotFound) {
		return fmt.Errorf("%w: %s -> %s: %w", domain.ErrDanglingReference, ref.Name, ref.Target, err)
	}
	return err
}
