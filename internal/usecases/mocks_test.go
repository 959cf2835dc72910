package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// mockLogger implements the Logger interface for testing.
type mockLogger struct{}

func (m *mockLogger) Info(_ context.Context, _ string, _ map[string]interface{})           {}
func (m *mockLogger) Debug(_ context.Context, _ string, _ map[string]interface{})          {}
func (m *mockLogger) Warn(_ context.Context, _ string, _ map[string]interface{})           {}
func (m *mockLogger) Error(_ context.Context, _ string, _ error, _ map[string]interface{}) {}

// mockSlipFinder implements domain.SlipFinder for testing.
type mockSlipFinder struct {
	mu                  sync.Mutex
	findByCommitsSlip   *domain.Slip
	findByCommitsCommit string
	findByCommitsErr    error
	findByCommitsCalls  []findByCommitsCall
	closeErr            error
	closeCalled         bool
}

type findByCommitsCall struct {
	repository string
	commits    []string
}

func (m *mockSlipFinder) FindByCommits(_ context.Context, repository string, commits []string) (*domain.Slip, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findByCommitsCalls = append(m.findByCommitsCalls, findByCommitsCall{
		repository: repository,
		commits:    commits,
	})
	return m.findByCommitsSlip, m.findByCommitsCommit, m.findByCommitsErr
}

func (m *mockSlipFinder) Close() error {
	m.closeCalled = true
	return m.closeErr
}

// recordingObserver implements WalkObserver for testing.
type recordingObserver struct {
	mu    sync.Mutex
	walks []observedWalk
}

type observedWalk struct {
	limited bool
	emitted int
}

func (o *recordingObserver) ObserveWalk(limited bool, emitted int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.walks = append(o.walks, observedWalk{limited: limited, emitted: emitted})
}

// collect drains it and returns the emitted oids.
func collect(t *testing.T, it domain.CommitIterator) []domain.Oid {
	t.Helper()
	defer it.Close()
	var oids []domain.Oid
	for it.Next() {
		oids = append(oids, it.Value().Oid)
	}
	require.NoError(t, it.Err())
	return oids
}
