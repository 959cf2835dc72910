package usecases

import (
	"context"
	"fmt"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// SlipResolver finds the routing slip of a commit by searching the commit and
// its ancestry in the slip store.
type SlipResolver struct {
	store  domain.ObjectStore
	walker *Walker
	finder domain.SlipFinder
	logger Logger
}

// NewSlipResolver creates a new SlipResolver with the given dependencies.
func NewSlipResolver(
	store domain.ObjectStore,
	walker *Walker,
	finder domain.SlipFinder,
	log Logger,
) *SlipResolver {
	return &SlipResolver{
		store:  store,
		walker: walker,
		finder: finder,
		logger: log,
	}
}

// Resolve walks up to depth commits of c's history, newest first, and returns
// the slip matching any of them. It returns (nil, nil) when none matches.
func (r *SlipResolver) Resolve(ctx context.Context, c *domain.Commit, depth int) (*domain.Slip, error) {
	switch {
	case depth <= 0:
		depth = domain.DefaultAncestryDepth
	case depth > domain.MaxAncestryDepth:
		depth = domain.MaxAncestryDepth
	}

	repository, err := r.store.RepositoryName(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to determine repository for slip lookup: %w", err)
	}

	commits, err := r.ancestry(ctx, c, depth)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit ancestry: %w", err)
	}

	r.logger.Debug(ctx, "searching slip store", map[string]interface{}{
		"repository":    repository,
		"commits_count": len(commits),
		"head":          c.Oid.String(),
	})

	found, matchedCommit, err := r.finder.FindByCommits(ctx, repository, commits)
	if err != nil {
		r.logger.Error(ctx, "slip lookup failed", err, map[string]interface{}{
			"repository": repository,
			"head":       c.Oid.String(),
		})
		return nil, fmt.Errorf("failed to find slip by commits: %w", err)
	}

	if found == nil {
		r.logger.Debug(ctx, "no slip found in commit ancestry", map[string]interface{}{
			"repository":    repository,
			"commits_count": len(commits),
			"head":          c.Oid.String(),
		})
		return nil, nil
	}

	r.logger.Info(ctx, "slip resolved successfully", map[string]interface{}{
		"correlation_id": found.CorrelationID,
		"matched_commit": matchedCommit,
		"repository":     repository,
	})

	return &domain.Slip{
		CorrelationID: found.CorrelationID,
		MatchedCommit: domain.Oid(matchedCommit),
		Repository:    repository,
	}, nil
}

func (r *SlipResolver) ancestry(ctx context.Context, c *domain.Commit, depth int) ([]string, error) {
	if depth == 1 {
		return []string{c.Oid.String()}, nil
	}

	it, err := r.walker.Walk(ctx, domain.WalkInput{Include: []domain.Oid{c.Oid}})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	commits := make([]string, 0, depth)
	for len(commits) < depth && it.Next() {
		commits = append(commits, it.Value().Oid.String())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return commits, nil
}
