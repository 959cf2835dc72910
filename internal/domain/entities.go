// Package domain defines the core entities and interfaces for repograph.
package domain

import (
	"strings"
	"time"
)

// Oid is a full, lowercase, hex-encoded object id.
type Oid string

// String returns the hex form of the oid.
func (o Oid) String() string {
	return string(o)
}

// Short returns the first seven characters of the oid.
func (o Oid) Short() string {
	if len(o) <= 7 {
		return string(o)
	}
	return string(o[:7])
}

// ObjectKind is the type of an object as recorded by the object store.
type ObjectKind int

// Object kinds known to the store.
const (
	KindUnknown ObjectKind = iota
	KindCommit
	KindTree
	KindBlob
	KindTag
)

func (k ObjectKind) String() string {
	switch k {
	case KindCommit:
		return "commit"
	case KindTree:
		return "tree"
	case KindBlob:
		return "blob"
	case KindTag:
		return "tag"
	default:
		return "unknown"
	}
}

// Object is a resolved object. It is implemented by *Commit and *Tree only;
// callers switch on the concrete type.
type Object interface {
	ID() Oid
	Kind() ObjectKind
	object()
}

// Signature identifies the author or committer of a commit.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Commit is a commit object as read from the store. Relationships (parents,
// tree) are kept as oids and fetched on demand.
type Commit struct {
	Oid        Oid
	Author     Signature
	Committer  Signature
	Message    string
	ParentOids []Oid
	TreeOid    Oid
}

// ID implements Object.
func (c *Commit) ID() Oid { return c.Oid }

// Kind implements Object.
func (c *Commit) Kind() ObjectKind { return KindCommit }

func (c *Commit) object() {}

// Summary returns the first line of the commit message.
func (c *Commit) Summary() string {
	line, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimRight(line, "\r")
}

// Time is the committer timestamp used for history ordering.
func (c *Commit) Time() time.Time {
	return c.Committer.When
}

// DateLayout renders commit dates as ISO-8601 in UTC with millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// Date returns the commit timestamp formatted with DateLayout in UTC.
func (c *Commit) Date() string {
	return c.Time().UTC().Format(DateLayout)
}

// IsMerge reports whether the commit has more than one parent.
func (c *Commit) IsMerge() bool {
	return len(c.ParentOids) > 1
}

// TreeEntry is a single entry of a tree. Entries are not expanded.
type TreeEntry struct {
	Oid  Oid
	Path string
	Mode string
}

// Tree is a tree object.
type Tree struct {
	Oid     Oid
	Entries []TreeEntry
}

// ID implements Object.
func (t *Tree) ID() Oid { return t.Oid }

// Kind implements Object.
func (t *Tree) Kind() ObjectKind { return KindTree }

func (t *Tree) object() {}

// Reference is a named pointer into the object graph.
type Reference struct {
	// Name is the canonical reference name, e.g. refs/heads/main or HEAD.
	Name string

	// Target is the oid the reference resolves to after following symbolic links.
	Target Oid

	// SymbolicTarget is the canonical name this reference points at when it
	// is symbolic (HEAD -> refs/heads/main). Empty for direct references.
	SymbolicTarget string
}

// Slip is the routing slip recorded for a commit.
type Slip struct {
	// CorrelationID is the unique identifier for the slip.
	CorrelationID string

	// MatchedCommit is the commit whose slip was found. It differs from the
	// queried commit when the slip was found on an ancestor.
	MatchedCommit Oid

	// Repository is the owner/repo the slip was looked up for.
	Repository string
}

// LogInput holds the boundary expressions of a history query.
type LogInput struct {
	// ReachableFrom lists revision expressions whose ancestry is included.
	ReachableFrom []string

	// NotReachableFrom lists revision expressions whose ancestry is excluded.
	NotReachableFrom []string

	// FirstParent restricts the walk to first parents of included commits.
	FirstParent bool
}

// WalkInput holds resolved walk roots.
type WalkInput struct {
	Include     []Oid
	Exclude     []Oid
	FirstParent bool
}

// DefaultAncestryDepth is the number of commits searched for a slip when the
// caller does not specify a depth.
const DefaultAncestryDepth = 1

// MaxAncestryDepth caps slip ancestry searches.
const MaxAncestryDepth = 100

// DefaultObjectCacheSize is the number of decoded commits kept per repository.
const DefaultObjectCacheSize = 4096
