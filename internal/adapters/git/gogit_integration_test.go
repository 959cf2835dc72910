package git

import (
	"context"
	"sync"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

func oidOf(h plumbing.Hash) domain.Oid {
	return domain.Oid(h.String())
}

func TestNewGoGitRepository_Success(t *testing.T) {
	dir := t.TempDir()
	_, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	repo, err := NewGoGitRepository(dir, 0, &testLogger{})

	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, dir, repo.Path())
	require.NoError(t, repo.Close())
}

func TestNewGoGitRepository_NotARepository(t *testing.T) {
	repo, err := NewGoGitRepository(t.TempDir(), 0, &testLogger{})

	require.Error(t, err)
	assert.Nil(t, repo)
	assert.ErrorIs(t, err, domain.ErrRepositoryNotFound)
}

func TestGoGitRepository_LookupKind(t *testing.T) {
	f := newFixture(t)
	blob := f.blob("hello")
	tree := f.tree(object.TreeEntry{Name: "hello.txt", Mode: filemode.Regular, Hash: blob})
	commit := f.commit("Initial commit\n", tree)
	tag := f.annotatedTag("v1.0.0", commit)
	repo := f.store()
	ctx := context.Background()

	tests := []struct {
		name string
		oid  domain.Oid
		want domain.ObjectKind
	}{
		{name: "commit", oid: oidOf(commit), want: domain.KindCommit},
		{name: "tree", oid: oidOf(tree), want: domain.KindTree},
		{name: "blob", oid: oidOf(blob), want: domain.KindBlob},
		{name: "annotated tag", oid: oidOf(tag), want: domain.KindTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := repo.LookupKind(ctx, tt.oid)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestGoGitRepository_LookupKind_Missing(t *testing.T) {
	repo := newFixture(t).store()

	_, err := repo.LookupKind(context.Background(), "0123456789012345678901234567890123456789")
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)

	_, err = repo.LookupKind(context.Background(), "not-a-hash")
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestGoGitRepository_Commit(t *testing.T) {
	f := newFixture(t)
	tree := f.fileTree("a.txt", "a")
	first := f.commit("first\n", tree)
	second := f.commit("second\n", tree)
	merge := f.commit("Merge second into first\n\nbody\n", tree, first, second)
	repo := f.store()

	c, err := repo.Commit(context.Background(), oidOf(merge))

	require.NoError(t, err)
	assert.Equal(t, oidOf(merge), c.Oid)
	assert.Equal(t, []domain.Oid{oidOf(first), oidOf(second)}, c.ParentOids)
	assert.Equal(t, oidOf(tree), c.TreeOid)
	assert.Equal(t, "Test User", c.Author.Name)
	assert.Equal(t, "test@example.com", c.Committer.Email)
	assert.Equal(t, "Merge second into first", c.Summary())
	assert.Equal(t, f.now.Unix(), c.Time().Unix())

	// served from cache the second time
	again, err := repo.Commit(context.Background(), oidOf(merge))
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestGoGitRepository_Commit_WrongKind(t *testing.T) {
	f := newFixture(t)
	tree := f.fileTree("a.txt", "a")
	repo := f.store()

	_, err := repo.Commit(context.Background(), oidOf(tree))

	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestGoGitRepository_Tree(t *testing.T) {
	f := newFixture(t)
	blob := f.blob("package main\n")
	sub := f.fileTree("inner.txt", "inner")
	tree := f.tree(
		object.TreeEntry{Name: "dir", Mode: filemode.Dir, Hash: sub},
		object.TreeEntry{Name: "main.go", Mode: filemode.Regular, Hash: blob},
	)
	repo := f.store()

	got, err := repo.Tree(context.Background(), oidOf(tree))

	require.NoError(t, err)
	assert.Equal(t, oidOf(tree), got.Oid)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, domain.TreeEntry{Oid: oidOf(sub), Path: "dir", Mode: "40000"}, got.Entries[0])
	assert.Equal(t, domain.TreeEntry{Oid: oidOf(blob), Path: "main.go", Mode: "100644"}, got.Entries[1])
}

func TestGoGitRepository_TagTarget(t *testing.T) {
	f := newFixture(t)
	commit := f.commit("tagged\n", f.fileTree("a.txt", "a"))
	tag := f.annotatedTag("v2.0.0", commit)
	repo := f.store()

	target, kind, err := repo.TagTarget(context.Background(), oidOf(tag))

	require.NoError(t, err)
	assert.Equal(t, oidOf(commit), target)
	assert.Equal(t, domain.KindCommit, kind)

	_, _, err = repo.TagTarget(context.Background(), oidOf(commit))
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestGoGitRepository_Reference(t *testing.T) {
	f := newFixture(t)
	commit := f.commit("first\n", f.fileTree("a.txt", "a"))
	f.branch("main", commit)
	f.head("main")
	repo := f.store()
	ctx := context.Background()

	t.Run("direct branch", func(t *testing.T) {
		ref, err := repo.Reference(ctx, "refs/heads/main")
		require.NoError(t, err)
		assert.Equal(t, "refs/heads/main", ref.Name)
		assert.Equal(t, oidOf(commit), ref.Target)
		assert.Empty(t, ref.SymbolicTarget)
	})

	t.Run("symbolic HEAD", func(t *testing.T) {
		ref, err := repo.Reference(ctx, "HEAD")
		require.NoError(t, err)
		assert.Equal(t, "HEAD", ref.Name)
		assert.Equal(t, "refs/heads/main", ref.SymbolicTarget)
		assert.Equal(t, oidOf(commit), ref.Target)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.Reference(ctx, "refs/heads/nope")
		assert.ErrorIs(t, err, domain.ErrReferenceNotFound)
	})
}

func TestGoGitRepository_Reference_UnbornHead(t *testing.T) {
	f := newFixture(t)
	f.head("main")
	repo := f.store()

	_, err := repo.Reference(context.Background(), "HEAD")

	assert.ErrorIs(t, err, domain.ErrReferenceNotFound)
}

func TestGoGitRepository_HashesWithPrefix(t *testing.T) {
	f := newFixture(t)
	commit := f.commit("first\n", f.fileTree("a.txt", "a"))
	repo := f.store()
	ctx := context.Background()
	full := commit.String()

	for _, n := range []int{1, 4, 7, 40} {
		matches, err := repo.HashesWithPrefix(ctx, full[:n])
		require.NoError(t, err)
		assert.Contains(t, matches, oidOf(commit), "prefix length %d", n)
	}

	matches, err := repo.HashesWithPrefix(ctx, "zz")
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = repo.HashesWithPrefix(ctx, full[:7]+"X")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestGoGitRepository_RepositoryName(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/TestOrg/test-repo.git"},
	})
	require.NoError(t, err)
	repo := f.store()

	name, err := repo.RepositoryName(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "TestOrg/test-repo", name)
}

func TestGoGitRepository_RepositoryName_NoOriginRemote(t *testing.T) {
	repo := newFixture(t).store()

	name, err := repo.RepositoryName(context.Background())

	require.Error(t, err)
	assert.Empty(t, name)
	assert.ErrorIs(t, err, domain.ErrNoRemoteOrigin)
}

func TestGoGitRepository_RepositoryName_InvalidURL(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{"file:///srv/git/project"},
	})
	require.NoError(t, err)
	repo := f.store()

	_, err = repo.RepositoryName(context.Background())

	assert.ErrorIs(t, err, domain.ErrInvalidRemoteURL)
}

func TestGoGitRepository_ContextCancellation(t *testing.T) {
	f := newFixture(t)
	commit := f.commit("first\n", f.fileTree("a.txt", "a"))
	repo := f.store()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Commit(ctx, oidOf(commit))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = repo.LookupKind(ctx, oidOf(commit))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGoGitRepository_ConcurrentReads(t *testing.T) {
	f := newFixture(t)
	tree := f.fileTree("a.txt", "a")
	var hashes []plumbing.Hash
	var parent []plumbing.Hash
	for i := 0; i < 20; i++ {
		h := f.commit("commit\n", tree, parent...)
		hashes = append(hashes, h)
		parent = []plumbing.Hash{h}
	}
	repo := f.store()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, len(hashes)*2)
	for _, h := range hashes {
		wg.Add(2)
		go func(h plumbing.Hash) {
			defer wg.Done()
			_, err := repo.Commit(ctx, oidOf(h))
			errs <- err
		}(h)
		go func(h plumbing.Hash) {
			defer wg.Done()
			_, err := repo.LookupKind(ctx, oidOf(h))
			errs <- err
		}(h)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
