// Package testutil provides an in-memory object store for unit tests of the
// query layers. Object ids are derived from object content so that the same
// history always produces the same ids.
package testutil

import (
	"context"
	"crypto/sha1" //nolint:gosec // object ids, not security
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// Epoch is the timestamp of the first commit created by Tick.
var Epoch = time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)

type tagObject struct {
	target domain.Oid
	kind   domain.ObjectKind
}

// MemoryStore implements domain.ObjectStore over maps.
type MemoryStore struct {
	mu       sync.RWMutex
	path     string
	name     string
	nameErr  error
	kinds    map[domain.Oid]domain.ObjectKind
	commits  map[domain.Oid]*domain.Commit
	trees    map[domain.Oid]*domain.Tree
	tags     map[domain.Oid]tagObject
	refs     map[string]domain.Oid
	symbolic map[string]string
	failures map[domain.Oid]error
	clock    time.Time

	commitReads atomic.Int64
	closed      atomic.Bool
}

// NewMemoryStore returns an empty store with the given path.
func NewMemoryStore(path string) *MemoryStore {
	return &MemoryStore{
		path:     path,
		nameErr:  domain.ErrNoRemoteOrigin,
		kinds:    make(map[domain.Oid]domain.ObjectKind),
		commits:  make(map[domain.Oid]*domain.Commit),
		trees:    make(map[domain.Oid]*domain.Tree),
		tags:     make(map[domain.Oid]tagObject),
		refs:     make(map[string]domain.Oid),
		symbolic: make(map[string]string),
		failures: make(map[domain.Oid]error),
		clock:    Epoch,
	}
}

func hashOf(kind domain.ObjectKind, payload string) domain.Oid {
	sum := sha1.Sum([]byte(kind.String() + "\x00" + payload)) //nolint:gosec
	return domain.Oid(hex.EncodeToString(sum[:]))
}

// Tick advances the store clock by a minute and returns the new time.
func (s *MemoryStore) Tick() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

// AddBlob stores a blob and returns its oid.
func (s *MemoryStore) AddBlob(content string) domain.Oid {
	oid := hashOf(domain.KindBlob, content)
	s.mu.Lock()
	s.kinds[oid] = domain.KindBlob
	s.mu.Unlock()
	return oid
}

// AddTree stores a tree with the given entries and returns its oid.
func (s *MemoryStore) AddTree(entries ...domain.TreeEntry) domain.Oid {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s %s\n", e.Mode, e.Path, e.Oid)
	}
	oid := hashOf(domain.KindTree, b.String())
	s.mu.Lock()
	s.kinds[oid] = domain.KindTree
	s.trees[oid] = &domain.Tree{Oid: oid, Entries: append([]domain.TreeEntry(nil), entries...)}
	s.mu.Unlock()
	return oid
}

// AddCommit stores a commit on an empty tree at the next clock tick.
func (s *MemoryStore) AddCommit(message string, parents ...domain.Oid) domain.Oid {
	return s.AddCommitAt(message, s.Tick(), parents...)
}

// AddCommitAt stores a commit with an explicit committer time.
func (s *MemoryStore) AddCommitAt(message string, when time.Time, parents ...domain.Oid) domain.Oid {
	tree := s.AddTree()
	sig := domain.Signature{Name: "Test User", Email: "test@example.com", When: when}

	var b strings.Builder
	fmt.Fprintf(&b, "tree %s\n", tree)
	for _, p := range parents {
		fmt.Fprintf(&b, "parent %s\n", p)
	}
	fmt.Fprintf(&b, "time %d\n\n%s", when.UnixNano(), message)

	oid := hashOf(domain.KindCommit, b.String())
	s.PutCommit(&domain.Commit{
		Oid:        oid,
		Author:     sig,
		Committer:  sig,
		Message:    message,
		ParentOids: append([]domain.Oid(nil), parents...),
		TreeOid:    tree,
	})
	return oid
}

// PutCommit stores a commit under its own oid, which the caller chooses.
func (s *MemoryStore) PutCommit(c *domain.Commit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds[c.Oid] = domain.KindCommit
	s.commits[c.Oid] = c
}

// AddTag stores an annotated tag pointing at target and creates refs/tags/<name>.
func (s *MemoryStore) AddTag(name string, target domain.Oid) domain.Oid {
	oid := hashOf(domain.KindTag, name+" "+string(target))
	s.mu.Lock()
	s.kinds[oid] = domain.KindTag
	s.tags[oid] = tagObject{target: target, kind: s.kinds[target]}
	s.refs["refs/tags/"+name] = oid
	s.mu.Unlock()
	return oid
}

// SetRef points a direct reference at oid. The oid need not exist.
func (s *MemoryStore) SetRef(name string, oid domain.Oid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[name] = oid
}

// SetSymbolicRef makes name point at another reference.
func (s *MemoryStore) SetSymbolicRef(name, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbolic[name] = target
}

// SetName sets the owner/repo name returned by RepositoryName.
func (s *MemoryStore) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.nameErr = nil
}

// FailOn makes every read of oid return err.
func (s *MemoryStore) FailOn(oid domain.Oid, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[oid] = err
}

// CommitReads returns the number of Commit calls served so far.
func (s *MemoryStore) CommitReads() int {
	return int(s.commitReads.Load())
}

// Closed reports whether Close was called.
func (s *MemoryStore) Closed() bool {
	return s.closed.Load()
}

// Path implements domain.ObjectStore.
func (s *MemoryStore) Path() string {
	return s.path
}

// LookupKind implements domain.ObjectStore.
func (s *MemoryStore) LookupKind(ctx context.Context, oid domain.Oid) (domain.ObjectKind, error) {
	if err := s.check(ctx, oid); err != nil {
		return domain.KindUnknown, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	kind, ok := s.kinds[oid]
	if !ok {
		return domain.KindUnknown, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, oid)
	}
	return kind, nil
}

// Commit implements domain.ObjectStore.
func (s *MemoryStore) Commit(ctx context.Context, oid domain.Oid) (*domain.Commit, error) {
	s.commitReads.Add(1)
	if err := s.check(ctx, oid); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commits[oid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, oid)
	}
	return c, nil
}

// Tree implements domain.ObjectStore.
func (s *MemoryStore) Tree(ctx context.Context, oid domain.Oid) (*domain.Tree, error) {
	if err := s.check(ctx, oid); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trees[oid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, oid)
	}
	return t, nil
}

// TagTarget implements domain.ObjectStore.
func (s *MemoryStore) TagTarget(ctx context.Context, oid domain.Oid) (domain.Oid, domain.ObjectKind, error) {
	if err := s.check(ctx, oid); err != nil {
		return "", domain.KindUnknown, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tags[oid]
	if !ok {
		return "", domain.KindUnknown, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, oid)
	}
	return t.target, t.kind, nil
}

// Reference implements domain.ObjectStore.
func (s *MemoryStore) Reference(ctx context.Context, name string) (*domain.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref := &domain.Reference{Name: name}
	current := name
	for depth := 0; depth < 5; depth++ {
		if oid, ok := s.refs[current]; ok {
			ref.Target = oid
			return ref, nil
		}
		next, ok := s.symbolic[current]
		if !ok {
			break
		}
		if ref.SymbolicTarget == "" {
			ref.SymbolicTarget = next
		}
		current = next
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrReferenceNotFound, name)
}

// HashesWithPrefix implements domain.ObjectStore.
func (s *MemoryStore) HashesWithPrefix(ctx context.Context, prefix string) ([]domain.Oid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix = strings.ToLower(prefix)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []domain.Oid
	for oid := range s.kinds {
		if strings.HasPrefix(string(oid), prefix) {
			matches = append(matches, oid)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i] < matches[j] })
	return matches, nil
}

// RepositoryName implements domain.ObjectStore.
func (s *MemoryStore) RepositoryName(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name, s.nameErr
}

// Close implements domain.ObjectStore.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *MemoryStore) check(ctx context.Context, oid domain.Oid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[oid]
}
