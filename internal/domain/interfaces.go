// Package domain defines the core entities and interfaces for repograph.
// This package contains no external dependencies and represents the innermost layer
// of the CLEAN architecture.
package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors for repository access, revision parsing and object resolution.
var (
	// ErrRepositoryNotFound indicates the specified path is not a valid Git repository.
	ErrRepositoryNotFound = errors.New("git repository not found at specified path")

	// ErrObjectNotFound indicates an oid is absent from the object store.
	ErrObjectNotFound = errors.New("object not found")

	// ErrReferenceNotFound indicates no reference exists with the given name.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrUnknownRevision indicates a revision expression matched nothing.
	ErrUnknownRevision = errors.New("unknown revision")

	// ErrAmbiguousRevision indicates an abbreviated id matched more than one object.
	ErrAmbiguousRevision = errors.New("ambiguous revision")

	// ErrInvalidRevision indicates a revision expression could not be parsed.
	ErrInvalidRevision = errors.New("invalid revision expression")

	// ErrUnsupportedObjectKind indicates the object is neither a commit nor a tree.
	ErrUnsupportedObjectKind = errors.New("unsupported object kind")

	// ErrDanglingReference indicates a reference points at an oid missing from the store.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrNoRemoteOrigin indicates no 'origin' remote is configured in the repository.
	ErrNoRemoteOrigin = errors.New("no 'origin' remote configured; cannot determine repository name")

	// ErrInvalidRemoteURL indicates the remote URL could not be parsed to extract owner/repo.
	ErrInvalidRemoteURL = errors.New("could not parse repository name from remote URL")

	// ErrSlipsDisabled indicates slip lookups were requested but no slip store is configured.
	ErrSlipsDisabled = errors.New("slip lookups are not configured")
)

// UnsupportedObjectKindError carries the oid and kind of an object that the
// resolver does not project.
type UnsupportedObjectKindError struct {
	Oid  Oid
	Kind ObjectKind
}

func (e *UnsupportedObjectKindError) Error() string {
	return fmt.Sprintf("%s: %s is a %s (kind %d)", ErrUnsupportedObjectKind, e.Oid, e.Kind, int(e.Kind))
}

// Is makes errors.Is(err, ErrUnsupportedObjectKind) match.
func (e *UnsupportedObjectKindError) Is(target error) bool {
	return target == ErrUnsupportedObjectKind
}

// ObjectStore is the narrow, read-only view of a Git-compatible object store.
// Implementations must be safe for concurrent use.
type ObjectStore interface {
	// Path returns the location the repository was opened from.
	Path() string

	// LookupKind returns the kind of any object. Returns ErrObjectNotFound when absent.
	LookupKind(ctx context.Context, oid Oid) (ObjectKind, error)

	// Commit returns the commit with the given oid.
	Commit(ctx context.Context, oid Oid) (*Commit, error)

	// Tree returns the tree with the given oid.
	Tree(ctx context.Context, oid Oid) (*Tree, error)

	// TagTarget returns the object an annotated tag points at.
	TagTarget(ctx context.Context, oid Oid) (Oid, ObjectKind, error)

	// Reference looks up a reference by its canonical name, following symbolic
	// references. Returns ErrReferenceNotFound when absent.
	Reference(ctx context.Context, name string) (*Reference, error)

	// HashesWithPrefix returns every object id starting with the hex prefix.
	HashesWithPrefix(ctx context.Context, prefix string) ([]Oid, error)

	// RepositoryName returns owner/repo derived from the 'origin' remote URL.
	RepositoryName(ctx context.Context) (string, error)

	// Close releases any resources held by the store.
	Close() error
}

// CommitIterator is a lazy, finite, non-restartable sequence of commits.
type CommitIterator interface {
	// Next advances the iterator. It returns false when the sequence is
	// exhausted or an error occurred.
	Next() bool

	// Value returns the current commit.
	Value() *Commit

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Close releases the walk state. It is safe to call more than once.
	Close()
}

// SlipFinder queries the slip store to find slips by commit.
type SlipFinder interface {
	// FindByCommits searches for a slip matching any of the given commits.
	// Returns the slip, the matched commit SHA, and any error.
	// Returns (nil, "", nil) if no matching slip is found.
	FindByCommits(ctx context.Context, repository string, commits []string) (*Slip, string, error)

	// Close releases any resources held by the finder.
	Close() error
}

// Graph is the query surface over one repository. Every accessor may fail
// independently so callers can attribute errors to a single field.
type Graph interface {
	// Path returns the repository location.
	Path() string

	// Name returns owner/repo derived from the 'origin' remote.
	Name(ctx context.Context) (string, error)

	// Reference looks up a reference by full or short name.
	Reference(ctx context.Context, name string) (*Reference, error)

	// Branch looks up refs/heads/<name>.
	Branch(ctx context.Context, name string) (*Reference, error)

	// Commit returns the commit for a full or abbreviated oid.
	Commit(ctx context.Context, oid string) (*Commit, error)

	// Object resolves an oid to a commit or tree.
	Object(ctx context.Context, oid string) (Object, error)

	// RevParse resolves a revision expression to an oid.
	RevParse(ctx context.Context, expression string) (Oid, error)

	// Log walks the history bounded by the given revision expressions.
	Log(ctx context.Context, input LogInput) (CommitIterator, error)

	// Parents returns the parents of c in recorded order.
	Parents(ctx context.Context, c *Commit) ([]*Commit, error)

	// Tree returns the snapshot tree of c.
	Tree(ctx context.Context, c *Commit) (*Tree, error)

	// Target resolves the object a reference points at.
	Target(ctx context.Context, ref *Reference) (Object, error)

	// TargetCommit resolves the commit a reference points at.
	TargetCommit(ctx context.Context, ref *Reference) (*Commit, error)

	// Slip returns the routing slip recorded for c or one of its first
	// depth-1 ancestors, or nil when none exists.
	Slip(ctx context.Context, c *Commit, depth int) (*Slip, error)
}

// OutputWriter renders query results for the CLI.
type OutputWriter interface {
	// WriteCommit writes a single commit.
	WriteCommit(c *Commit) error

	// WriteOid writes a bare object id.
	WriteOid(oid Oid) error

	// WriteObject writes a resolved object.
	WriteObject(obj Object) error
}
