// Package git provides adapters for interacting with local Git repositories.
// This package implements the domain.ObjectStore interface using go-git/v5.
package git

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// Logger defines the logging interface for the git adapter.
// This interface enables dependency injection and testability.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// prefixStorer is implemented by go-git storages that can expand abbreviated
// hashes without a full object scan (the filesystem storage does).
type prefixStorer interface {
	HashesWithPrefix(prefix []byte) ([]plumbing.Hash, error)
}

// GoGitRepository implements domain.ObjectStore using go-git/v5.
// Raw storage reads are serialised; decoded commits are cached and shared
// between callers, who must treat them as immutable.
type GoGitRepository struct {
	repo    *git.Repository
	path    string
	logger  Logger
	mu      sync.Mutex
	commits *lru.Cache[plumbing.Hash, *domain.Commit]
}

// NewGoGitRepository opens the repository at path.
// The path can be either a working directory or a bare repository.
// Returns domain.ErrRepositoryNotFound if the path is not a valid Git repository.
func NewGoGitRepository(path string, cacheSize int, log Logger) (*GoGitRepository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRepositoryNotFound, path)
	}
	return NewFromRepository(repo, path, cacheSize, log)
}

// NewFromRepository wraps an already opened go-git repository, e.g. one backed
// by in-memory storage.
func NewFromRepository(repo *git.Repository, path string, cacheSize int, log Logger) (*GoGitRepository, error) {
	if cacheSize <= 0 {
		cacheSize = domain.DefaultObjectCacheSize
	}
	commits, err := lru.New[plumbing.Hash, *domain.Commit](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create commit cache: %w", err)
	}

	return &GoGitRepository{
		repo:    repo,
		path:    path,
		logger:  log,
		commits: commits,
	}, nil
}

// Path returns the location the repository was opened from.
func (r *GoGitRepository) Path() string {
	return r.path
}

// LookupKind returns the kind of the object stored under oid.
func (r *GoGitRepository) LookupKind(ctx context.Context, oid domain.Oid) (domain.ObjectKind, error) {
	h, err := toHash(ctx, oid)
	if err != nil {
		return domain.KindUnknown, err
	}
	if r.commits.Contains(h) {
		return domain.KindCommit, nil
	}

	r.mu.Lock()
	obj, err := r.repo.Storer.EncodedObject(plumbing.AnyObject, h)
	r.mu.Unlock()
	if err != nil {
		return domain.KindUnknown, storeError(err, oid)
	}

	return kindOf(obj.Type()), nil
}

// Commit returns the commit with the given oid.
func (r *GoGitRepository) Commit(ctx context.Context, oid domain.Oid) (*domain.Commit, error) {
	h, err := toHash(ctx, oid)
	if err != nil {
		return nil, err
	}
	if c, ok := r.commits.Get(h); ok {
		return c, nil
	}

	r.mu.Lock()
	gc, err := r.repo.CommitObject(h)
	r.mu.Unlock()
	if err != nil {
		return nil, storeError(err, oid)
	}

	c := toDomainCommit(gc)
	r.commits.Add(h, c)
	return c, nil
}

// Tree returns the tree with the given oid.
func (r *GoGitRepository) Tree(ctx context.Context, oid domain.Oid) (*domain.Tree, error) {
	h, err := toHash(ctx, oid)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	gt, err := r.repo.TreeObject(h)
	r.mu.Unlock()
	if err != nil {
		return nil, storeError(err, oid)
	}

	tree := &domain.Tree{
		Oid:     domain.Oid(gt.Hash.String()),
		Entries: make([]domain.TreeEntry, 0, len(gt.Entries)),
	}
	for _, e := range gt.Entries {
		tree.Entries = append(tree.Entries, domain.TreeEntry{
			Oid:  domain.Oid(e.Hash.String()),
			Path: e.Name,
			Mode: strconv.FormatUint(uint64(e.Mode), 8),
		})
	}
	return tree, nil
}

// TagTarget returns the object an annotated tag points at.
func (r *GoGitRepository) TagTarget(ctx context.Context, oid domain.Oid) (domain.Oid, domain.ObjectKind, error) {
	h, err := toHash(ctx, oid)
	if err != nil {
		return "", domain.KindUnknown, err
	}

	r.mu.Lock()
	tag, err := r.repo.TagObject(h)
	r.mu.Unlock()
	if err != nil {
		return "", domain.KindUnknown, storeError(err, oid)
	}

	return domain.Oid(tag.Target.String()), kindOf(tag.TargetType), nil
}

// Reference looks up a reference by canonical name, following symbolic references.
func (r *GoGitRepository) Reference(ctx context.Context, name string) (*domain.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	refName := plumbing.ReferenceName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := r.repo.Reference(refName, false)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrReferenceNotFound, name)
		}
		return nil, fmt.Errorf("failed to read reference %s: %w", name, err)
	}

	ref := &domain.Reference{Name: raw.Name().String()}
	if raw.Type() != plumbing.SymbolicReference {
		ref.Target = domain.Oid(raw.Hash().String())
		return ref, nil
	}

	ref.SymbolicTarget = raw.Target().String()
	resolved, err := r.repo.Reference(refName, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Unborn branch: HEAD points at a branch without commits.
			return nil, fmt.Errorf("%w: %s -> %s", domain.ErrReferenceNotFound, name, ref.SymbolicTarget)
		}
		return nil, fmt.Errorf("failed to resolve reference %s: %w", name, err)
	}
	ref.Target = domain.Oid(resolved.Hash().String())
	return ref, nil
}

// HashesWithPrefix returns every object id starting with the hex prefix.
func (r *GoGitRepository) HashesWithPrefix(ctx context.Context, prefix string) ([]domain.Oid, error) {
	prefix = strings.ToLower(prefix)
	if !hexPattern.MatchString(prefix) {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []domain.Oid
	if ps, ok := r.repo.Storer.(prefixStorer); ok && len(prefix) >= 2 {
		even, err := hex.DecodeString(prefix[:len(prefix)&^1])
		if err != nil {
			return nil, err
		}
		hashes, err := ps.HashesWithPrefix(even)
		if err != nil {
			return nil, fmt.Errorf("failed to expand hash prefix %s: %w", prefix, err)
		}
		for _, h := range hashes {
			if s := h.String(); strings.HasPrefix(s, prefix) {
				matches = append(matches, domain.Oid(s))
			}
		}
		return matches, nil
	}

	iter, err := r.repo.Storer.IterEncodedObjects(plumbing.AnyObject)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate objects: %w", err)
	}
	err = iter.ForEach(func(obj plumbing.EncodedObject) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s := obj.Hash().String(); strings.HasPrefix(s, prefix) {
			matches = append(matches, domain.Oid(s))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug(ctx, "expanded hash prefix by object scan", map[string]interface{}{
		"prefix":  prefix,
		"matches": len(matches),
	})
	return matches, nil
}

// RepositoryName returns owner/repo derived from the 'origin' remote URL.
// Returns domain.ErrNoRemoteOrigin if no origin remote is configured.
func (r *GoGitRepository) RepositoryName(ctx context.Context) (string, error) {
	r.mu.Lock()
	remote, err := r.repo.Remote("origin")
	r.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("%w: failed to get origin remote: %w", domain.ErrNoRemoteOrigin, err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("%w: origin remote has no URLs configured", domain.ErrNoRemoteOrigin)
	}

	name, err := parseRepoFromURL(urls[0])
	if err != nil {
		r.logger.Warn(ctx, "origin remote URL not recognised", map[string]interface{}{
			"url":  urls[0],
			"path": r.path,
		})
		return "", fmt.Errorf("%w: failed to parse URL: %w", domain.ErrInvalidRemoteURL, err)
	}
	return name, nil
}

// Close releases any resources held by the repository.
// For go-git, this only drops the commit cache.
func (r *GoGitRepository) Close() error {
	r.commits.Purge()
	return nil
}

var hexPattern = regexp.MustCompile(`^[0-9a-f]{1,40}$`)

var fullHashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// toHash validates a full oid and converts it to a go-git hash.
func toHash(ctx context.Context, oid domain.Oid) (plumbing.Hash, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, err
	}
	if !fullHashPattern.MatchString(string(oid)) {
		return plumbing.ZeroHash, fmt.Errorf("%w: malformed object id %q", domain.ErrObjectNotFound, oid)
	}
	return plumbing.NewHash(string(oid)), nil
}

func storeError(err error, oid domain.Oid) error {
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrObjectNotFound, oid)
	}
	return fmt.Errorf("failed to read object %s: %w", oid, err)
}

func kindOf(t plumbing.ObjectType) domain.ObjectKind {
	switch t {
	case plumbing.CommitObject:
		return domain.KindCommit
	case plumbing.TreeObject:
		return domain.KindTree
	case plumbing.BlobObject:
		return domain.KindBlob
	case plumbing.TagObject:
		return domain.KindTag
	default:
		return domain.KindUnknown
	}
}

func toDomainCommit(gc *object.Commit) *domain.Commit {
	parents := make([]domain.Oid, 0, len(gc.ParentHashes))
	for _, p := range gc.ParentHashes {
		parents = append(parents, domain.Oid(p.String()))
	}
	return &domain.Commit{
		Oid:        domain.Oid(gc.Hash.String()),
		Author:     toSignature(gc.Author),
		Committer:  toSignature(gc.Committer),
		Message:    gc.Message,
		ParentOids: parents,
		TreeOid:    domain.Oid(gc.TreeHash.String()),
	}
}

func toSignature(s object.Signature) domain.Signature {
	return domain.Signature{Name: s.Name, Email: s.Email, When: s.When}
}

// Regular expressions for parsing Git remote URLs.
var (
	// httpsURLPattern matches HTTPS URLs like:
	// https://github.com/owner/repo.git
	// https://github.com/owner/repo
	httpsURLPattern = regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+?)(?:\.git)?$`)

	// sshURLPattern matches SSH URLs like:
	// git@github.com:owner/repo.git
	// git@github.com:owner/repo
	sshURLPattern = regexp.MustCompile(`^git@[^:]+:([^/]+)/([^/]+?)(?:\.git)?$`)
)

// parseRepoFromURL extracts owner/repo from a Git remote URL.
// Supports both HTTPS and SSH formats:
//   - https://github.com/owner/repo.git -> owner/repo
//   - git@github.com:owner/repo.git -> owner/repo
func parseRepoFromURL(url string) (string, error) {
	url = strings.TrimSpace(url)

	if matches := httpsURLPattern.FindStringSubmatch(url); len(matches) == 3 {
		return matches[1] + "/" + matches[2], nil
	}

	if matches := sshURLPattern.FindStringSubmatch(url); len(matches) == 3 {
		return matches[1] + "/" + matches[2], nil
	}

	return "", fmt.Errorf("unrecognized URL format: %s", url)
}
