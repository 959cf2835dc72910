package git

import (
	"context"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

// testLogger is a minimal logger for testing that doesn't output anything.
type testLogger struct{}

func (l *testLogger) Debug(_ context.Context, _ string, _ map[string]interface{}) {}
func (l *testLogger) Warn(_ context.Context, _ string, _ map[string]interface{})  {}

// fixture builds repositories object by object on in-memory storage so that
// parents, timestamps and tags are fully controlled.
type fixture struct {
	t    *testing.T
	st   *memory.Storage
	repo *gogit.Repository
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.NewStorage()
	repo, err := gogit.Init(st, nil)
	require.NoError(t, err)
	return &fixture{
		t:    t,
		st:   st,
		repo: repo,
		now:  time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) store() *GoGitRepository {
	f.t.Helper()
	r, err := NewFromRepository(f.repo, "memory", 16, &testLogger{})
	require.NoError(f.t, err)
	return r
}

func (f *fixture) blob(content string) plumbing.Hash {
	f.t.Helper()
	obj := f.st.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	require.NoError(f.t, err)
	_, err = w.Write([]byte(content))
	require.NoError(f.t, err)
	require.NoError(f.t, w.Close())
	h, err := f.st.SetEncodedObject(obj)
	require.NoError(f.t, err)
	return h
}

func (f *fixture) tree(entries ...object.TreeEntry) plumbing.Hash {
	f.t.Helper()
	obj := f.st.NewEncodedObject()
	require.NoError(f.t, (&object.Tree{Entries: entries}).Encode(obj))
	h, err := f.st.SetEncodedObject(obj)
	require.NoError(f.t, err)
	return h
}

func (f *fixture) fileTree(name, content string) plumbing.Hash {
	f.t.Helper()
	return f.tree(object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: f.blob(content)})
}

func (f *fixture) commit(msg string, tree plumbing.Hash, parents ...plumbing.Hash) plumbing.Hash {
	f.t.Helper()
	f.now = f.now.Add(time.Minute)
	sig := object.Signature{Name: "Test User", Email: "test@example.com", When: f.now}
	c := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      msg,
		TreeHash:     tree,
		ParentHashes: parents,
	}
	obj := f.st.NewEncodedObject()
	require.NoError(f.t, c.Encode(obj))
	h, err := f.st.SetEncodedObject(obj)
	require.NoError(f.t, err)
	return h
}

func (f *fixture) annotatedTag(name string, target plumbing.Hash) plumbing.Hash {
	f.t.Helper()
	tag := &object.Tag{
		Name:       name,
		Tagger:     object.Signature{Name: "Test User", Email: "test@example.com", When: f.now},
		Message:    "release " + name + "\n",
		TargetType: plumbing.CommitObject,
		Target:     target,
	}
	obj := f.st.NewEncodedObject()
	require.NoError(f.t, tag.Encode(obj))
	h, err := f.st.SetEncodedObject(obj)
	require.NoError(f.t, err)
	require.NoError(f.t, f.st.SetReference(plumbing.NewHashReference(plumbing.NewTagReferenceName(name), h)))
	return h
}

func (f *fixture) branch(name string, h plumbing.Hash) {
	f.t.Helper()
	require.NoError(f.t, f.st.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), h)))
}

func (f *fixture) head(branch string) {
	f.t.Helper()
	require.NoError(f.t, f.st.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch)),
	))
}
