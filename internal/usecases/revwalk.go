package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

type walkFlag uint8

const (
	flagSeen walkFlag = 1 << iota
	flagUninteresting
	flagParentsAdded
	flagQueued
	flagCandidate
)

// WalkObserver receives a summary of every finished walk.
type WalkObserver interface {
	ObserveWalk(limited bool, emitted int, elapsed time.Duration)
}

// Walker computes the commits reachable from include roots minus those
// reachable from exclude roots, newest first.
type Walker struct {
	store    domain.ObjectStore
	logger   Logger
	observer WalkObserver
}

// NewWalker creates a Walker reading from store. observer may be nil.
func NewWalker(store domain.ObjectStore, log Logger, observer WalkObserver) *Walker {
	return &Walker{store: store, logger: log, observer: observer}
}

// Walk starts a walk from the given roots. Root commits are fetched before
// Walk returns, so a missing root fails here rather than during iteration.
// The returned iterator is lazy: each Next reads only the parents of the
// commit it emits unless exclude roots force a limiting pass first.
func (w *Walker) Walk(ctx context.Context, input domain.WalkInput) (domain.CommitIterator, error) {
	it := &revWalk{
		ctx:         ctx,
		store:       w.store,
		firstParent: input.FirstParent,
		limited:     len(input.Exclude) > 0,
		queue:       newCommitQueue(),
		flags:       make(map[domain.Oid]walkFlag),
		parsed:      make(map[domain.Oid]*domain.Commit),
		started:     time.Now(),
		observer:    w.observer,
	}

	if len(input.Include) == 0 {
		it.done = true
		return it, nil
	}

	for _, oid := range input.Include {
		if err := it.addRoot(oid, false); err != nil {
			return nil, err
		}
	}
	for _, oid := range input.Exclude {
		if err := it.addRoot(oid, true); err != nil {
			return nil, err
		}
	}

	w.logger.Debug(ctx, "starting revision walk", map[string]interface{}{
		"include":      len(input.Include),
		"exclude":      len(input.Exclude),
		"first_parent": input.FirstParent,
		"limited":      it.limited,
	})
	return it, nil
}

// revWalk is the per-call walk state. It is not safe for concurrent use.
type revWalk struct {
	ctx         context.Context
	store       domain.ObjectStore
	firstParent bool
	limited     bool

	queue  *commitQueue
	flags  map[domain.Oid]walkFlag
	parsed map[domain.Oid]*domain.Commit

	limitDone  bool
	candidates []*domain.Commit
	pos        int

	// queuedInteresting counts queued commits not yet marked uninteresting;
	// liveCandidates counts collected candidates not yet marked.
	queuedInteresting int
	liveCandidates    int

	value   *domain.Commit
	err     error
	done    bool
	emitted int

	started  time.Time
	observer WalkObserver
	observed bool
}

func (it *revWalk) addRoot(oid domain.Oid, uninteresting bool) error {
	c, err := it.fetch(oid)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return fmt.Errorf("%w: %s: %w", domain.ErrUnknownRevision, oid, err)
		}
		return err
	}

	if uninteresting {
		it.markUninteresting(oid)
	}
	if it.flags[oid]&flagSeen != 0 {
		return nil
	}
	it.flags[oid] |= flagSeen
	it.push(c)
	return nil
}

// Next advances to the next commit.
func (it *revWalk) Next() bool {
	if it.done || it.err != nil {
		it.value = nil
		return false
	}
	if err := it.ctx.Err(); err != nil {
		return it.fail(err)
	}

	if it.limited {
		return it.nextLimited()
	}

	for {
		c, ok := it.pop()
		if !ok {
			return it.finish()
		}
		if err := it.addParents(c); err != nil {
			return it.fail(err)
		}
		if it.flags[c.Oid]&flagUninteresting != 0 {
			continue
		}
		it.value = c
		it.emitted++
		return true
	}
}

func (it *revWalk) nextLimited() bool {
	if !it.limitDone {
		if err := it.limit(); err != nil {
			return it.fail(err)
		}
		it.limitDone = true
	}
	for it.pos < len(it.candidates) {
		c := it.candidates[it.pos]
		it.pos++
		if it.flags[c.Oid]&flagUninteresting != 0 {
			continue
		}
		it.value = c
		it.emitted++
		return true
	}
	return it.finish()
}

// limit processes the frontier so that every commit also reachable from an
// exclude root is marked before anything is emitted. It runs until the queue
// is empty, or until nothing queued is interesting and every candidate has
// already been marked: past that point no further pop can change the output.
// Commit dates play no part in the stop condition.
func (it *revWalk) limit() error {
	for it.queue.Len() > 0 {
		if err := it.ctx.Err(); err != nil {
			return err
		}
		c, _ := it.pop()
		if err := it.addParents(c); err != nil {
			return err
		}
		if it.flags[c.Oid]&flagUninteresting == 0 {
			it.flags[c.Oid] |= flagCandidate
			it.liveCandidates++
			it.candidates = append(it.candidates, c)
			continue
		}
		if it.queuedInteresting == 0 && it.liveCandidates == 0 {
			break
		}
	}
	return nil
}

func (it *revWalk) push(c *domain.Commit) {
	it.flags[c.Oid] |= flagQueued
	if it.flags[c.Oid]&flagUninteresting == 0 {
		it.queuedInteresting++
	}
	it.queue.Push(c)
}

func (it *revWalk) pop() (*domain.Commit, bool) {
	c, ok := it.queue.Pop()
	if !ok {
		return nil, false
	}
	it.flags[c.Oid] &^= flagQueued
	if it.flags[c.Oid]&flagUninteresting == 0 {
		it.queuedInteresting--
	}
	return c, true
}

// addParents enqueues the parents of c. Uninteresting commits pass the mark
// to every parent; interesting commits follow only the first parent in
// first-parent mode.
func (it *revWalk) addParents(c *domain.Commit) error {
	if it.flags[c.Oid]&flagParentsAdded != 0 {
		return nil
	}
	it.flags[c.Oid] |= flagParentsAdded

	if it.flags[c.Oid]&flagUninteresting != 0 {
		for _, p := range c.ParentOids {
			if it.flags[p]&flagSeen != 0 {
				it.markUninteresting(p)
				continue
			}
			pc, err := it.fetch(p)
			if err != nil {
				return err
			}
			it.flags[p] |= flagSeen | flagUninteresting
			it.push(pc)
		}
		return nil
	}

	for _, p := range c.ParentOids {
		if it.flags[p]&flagSeen == 0 {
			pc, err := it.fetch(p)
			if err != nil {
				return err
			}
			it.flags[p] |= flagSeen
			it.push(pc)
		}
		if it.firstParent {
			break
		}
	}
	return nil
}

// markUninteresting flags the given commits and every already-read ancestor
// of them as uninteresting, keeping the queue and candidate counts in step.
func (it *revWalk) markUninteresting(oids ...domain.Oid) {
	stack := append([]domain.Oid(nil), oids...)
	for len(stack) > 0 {
		oid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.flags[oid]&flagUninteresting != 0 {
			continue
		}
		f := it.flags[oid]
		if f&flagQueued != 0 {
			it.queuedInteresting--
		}
		if f&flagCandidate != 0 {
			it.liveCandidates--
		}
		it.flags[oid] = f | flagUninteresting
		if c, ok := it.parsed[oid]; ok {
			stack = append(stack, c.ParentOids...)
		}
	}
}

func (it *revWalk) fetch(oid domain.Oid) (*domain.Commit, error) {
	if c, ok := it.parsed[oid]; ok {
		return c, nil
	}
	c, err := it.store.Commit(it.ctx, oid)
	if err != nil {
		return nil, err
	}
	it.parsed[oid] = c
	return c, nil
}

func (it *revWalk) fail(err error) bool {
	it.err = err
	it.value = nil
	it.observe()
	return false
}

func (it *revWalk) finish() bool {
	it.done = true
	it.value = nil
	it.observe()
	return false
}

func (it *revWalk) observe() {
	if it.observed || it.observer == nil {
		return
	}
	it.observed = true
	it.observer.ObserveWalk(it.limited, it.emitted, time.Since(it.started))
}

// Value returns the current commit.
func (it *revWalk) Value() *domain.Commit {
	return it.value
}

// Err returns the error that stopped the walk, if any.
func (it *revWalk) Err() error {
	return it.err
}

// Close drops the walk state.
func (it *revWalk) Close() {
	if !it.done {
		it.done = true
		it.observe()
	}
	it.value = nil
	it.queue = newCommitQueue()
	it.candidates = nil
	it.parsed = nil
	it.flags = nil
}
