package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"giveaway-bot/internal/model"
	"giveaway-bot/internal/scheduler"
)

// memStore is an in-memory Store that records every save.
type memStore struct {
	mu      sync.Mutex
	saved   []*model.Giveaway
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Load(context.Context) ([]*model.Giveaway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return cloneAll(m.saved), nil
}

func (m *memStore) Save(_ context.Context, gs []*model.Giveaway) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.saved = cloneAll(gs)
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) failSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memStore) persisted(id int64) *model.Giveaway {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.saved {
		if g.ID == id {
			return g.Clone()
		}
	}
	return nil
}

func cloneAll(gs []*model.Giveaway) []*model.Giveaway {
	out := make([]*model.Giveaway, len(gs))
	for i, g := range gs {
		out[i] = g.Clone()
	}
	return out
}

// fakeNotifier records announcements.
type fakeNotifier struct {
	mu             sync.Mutex
	creations      []int64
	results        map[int64][][]model.Participant
	empty          map[int64]int
	creationErr    error
	creationDelay  time.Duration
	resultErr      error
	nextMessageRef int
	events         []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		results:        make(map[int64][][]model.Participant),
		empty:          make(map[int64]int),
		nextMessageRef: 100,
	}
}

func (n *fakeNotifier) AnnounceCreation(_ context.Context, g *model.Giveaway) (string, error) {
	n.mu.Lock()
	delay := n.creationDelay
	n.mu.Unlock()
	time.Sleep(delay)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.creationErr != nil {
		return "", n.creationErr
	}
	n.creations = append(n.creations, g.ID)
	n.events = append(n.events, "creation")
	n.nextMessageRef++
	return strconv.Itoa(n.nextMessageRef), nil
}

func (n *fakeNotifier) AnnounceResults(_ context.Context, g *model.Giveaway, winners []model.Participant) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results[g.ID] = append(n.results[g.ID], winners)
	n.events = append(n.events, "results")
	return n.resultErr
}

func (n *fakeNotifier) AnnounceNoParticipants(_ context.Context, g *model.Giveaway) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.empty[g.ID]++
	n.events = append(n.events, "no_participants")
	return n.resultErr
}

func (n *fakeNotifier) resultCount(id int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.results[id])
}

func (n *fakeNotifier) emptyCount(id int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.empty[id]
}

// eventLog returns the announcements in the order they were posted.
func (n *fakeNotifier) eventLog() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func (n *fakeNotifier) creationCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.creations)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc      *GiveawayService
	store    *memStore
	notifier *fakeNotifier
	clock    *fakeClock
	sched    *scheduler.Scheduler
}

// buildEnv builds a service over an in-memory store. Options are applied
// after the test clock and scheduler.
func buildEnv(store *memStore, opts ...Option) (*testEnv, error) {
	if store == nil {
		store = &memStore{}
	}
	env := &testEnv{
		store:    store,
		notifier: newFakeNotifier(),
		clock:    newFakeClock(),
		sched:    scheduler.New(),
	}
	all := append([]Option{WithClock(env.clock.Now), WithScheduler(env.sched)}, opts...)
	svc, err := NewGiveawayService(context.Background(), store, env.notifier, all...)
	if err != nil {
		return nil, err
	}
	env.svc = svc
	return env, nil
}

func newTestEnv(t *testing.T, store *memStore, opts ...Option) *testEnv {
	t.Helper()
	env, err := buildEnv(store, opts...)
	require.NoError(t, err)
	t.Cleanup(env.svc.Stop)
	return env
}

func (e *testEnv) create(t require.TestingT, winners int) *model.Giveaway {
	res, err := e.svc.Create(context.Background(), CreateParams{
		Title:           "Giveaway",
		Prize:           "Prize",
		DurationSeconds: 3600,
		WinnerCount:     winners,
	})
	require.NoError(t, err)
	return res.Giveaway
}

func participant(id int64) model.Participant {
	return model.Participant{UserID: id, DisplayName: "user" + strconv.FormatInt(id, 10)}
}
