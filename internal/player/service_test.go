package player

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/cache"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/events"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/session"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/sheetdb"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/sheetdb/sheetdbtest"
)

var fixedNow = time.Date(2026, 10, 16, 15, 17, 12, 0, time.UTC)

const fixedStamp = "16/10/2026, 8:47:12 pm"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PlayerEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.PlayerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []events.PlayerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.PlayerEvent(nil), p.events...)
}

type fixture struct {
	svc   *Service
	sheet *sheetdbtest.Sheet
	cache cache.Store
	pub   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCache(t, cache.NewFileStore(filepath.Join(t.TempDir(), "player.json")), Config{})
}

func newFixtureWithCache(t *testing.T, store cache.Store, cfg Config) *fixture {
	t.Helper()
	sheet := sheetdbtest.NewSheet()
	srv := httptest.NewServer(sheet)
	t.Cleanup(srv.Close)

	remote := sheetdb.NewClient(sheetdb.Config{BaseURL: srv.URL, MaxAttempts: 1}, logger.NewNop())
	clock, err := record.NewClock(record.DefaultTimezone)
	require.NoError(t, err)
	clock = clock.WithNow(func() time.Time { return fixedNow })

	if cfg.ProceedDelay == 0 {
		cfg.ProceedDelay = 1500 * time.Millisecond
	}
	pub := &recordingPublisher{}
	return &fixture{
		svc:   NewService(logger.NewNop(), remote, store, pub, clock, cfg),
		sheet: sheet,
		cache: store,
		pub:   pub,
	}
}

func (f *fixture) cached(t *testing.T) record.StudentRecord {
	t.Helper()
	rec, err := f.cache.LoadPlayer(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	return *rec
}

func (f *fixture) state(t *testing.T) session.State {
	t.Helper()
	st, err := f.cache.LoadState(context.Background())
	require.NoError(t, err)
	return st
}

func (f *fixture) remoteRows(t *testing.T) []record.StudentRecord {
	t.Helper()
	rows, err := f.sheet.Records()
	require.NoError(t, err)
	return rows
}

func input(roll string) record.RegistrationInput {
	return record.RegistrationInput{
		Name:    "Asha Verma",
		Roll:    roll,
		Branch:  "CSE",
		Session: "2024-28",
		Contact: "9876543210",
	}
}

func intPtr(v int) *int { return &v }

func TestRegisterNewRoll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, input(" 1042 "))
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.False(t, res.Existing)
	assert.Equal(t, 1500*time.Millisecond, res.ProceedAfter)

	rows := f.remoteRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1042), rows[0].Roll)
	assert.Equal(t, int64(0), rows[0].Score)
	assert.Equal(t, 1, rows[0].Level)
	assert.Equal(t, int64(0), rows[0].Points)
	assert.Equal(t, fixedStamp, rows[0].LastPlayed)

	assert.Equal(t, rows[0], f.cached(t))
	assert.Equal(t, session.State{Registered: true, Connected: true}, f.state(t))
	assert.Equal(t, session.RegisteredOnline, f.state(t).Phase())

	evs := f.pub.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeRegistered, evs[0].Type)
	assert.Equal(t, events.SourceRemote, evs[0].Source)
	assert.Equal(t, fixedNow, evs[0].OccurredAt)
}

func TestRegisterExistingRollKeepsProgress(t *testing.T) {
	f := newFixture(t)
	f.sheet.Seed(record.StudentRecord{
		Name: "Asha Verma", Roll: 1042, Branch: "CSE", Session: "2024-28", Contact: "9876543210",
		Score: 40, Level: 2, Points: 40, LastPlayed: "1/9/2026, 10:00:00 am",
	})

	res, err := f.svc.Register(context.Background(), input("1042"))
	require.NoError(t, err)
	assert.True(t, res.Existing)
	assert.False(t, res.Degraded)

	cached := f.cached(t)
	assert.Equal(t, int64(1042), cached.Roll)
	assert.Equal(t, int64(40), cached.Score)
	assert.Equal(t, 2, cached.Level)
	assert.Equal(t, int64(40), cached.Points)

	rows := f.remoteRows(t)
	require.Len(t, rows, 1, "no duplicate row")
	assert.Equal(t, fixedStamp, rows[0].LastPlayed)
	assert.Equal(t, int64(40), rows[0].Score)
	assert.Equal(t, 0, f.sheet.Calls(http.MethodPost))
}

func TestRegisterFallsBackWhenRemoteDown(t *testing.T) {
	f := newFixture(t)
	f.sheet.SetDown(true)

	res, err := f.svc.Register(context.Background(), input("7"))
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.True(t, sheetdb.IsNetworkError(res.RemoteErr))
	assert.Equal(t, 1500*time.Millisecond, res.ProceedAfter)

	cached := f.cached(t)
	assert.True(t, strings.HasPrefix(cached.ID, LocalIDPrefix))
	assert.True(t, cached.IsLocal())
	assert.Equal(t, int64(0), cached.Score)
	assert.Equal(t, 1, cached.Level)

	st := f.state(t)
	assert.Equal(t, session.State{Registered: true, Offline: true}, st)
	assert.Equal(t, session.RegisteredOffline, st.Phase())

	evs := f.pub.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.SourceLocal, evs[0].Source)
}

func TestRegisterPatchFailureKeepsRemoteProgress(t *testing.T) {
	f := newFixture(t)
	f.sheet.Seed(record.StudentRecord{Name: "Asha Verma", Roll: 1042, Score: 40, Level: 2, Points: 40})
	f.sheet.FailNext(http.MethodPatch, http.StatusInternalServerError)

	res, err := f.svc.Register(context.Background(), input("1042"))
	require.NoError(t, err)
	assert.True(t, res.Degraded)

	cached := f.cached(t)
	assert.Equal(t, int64(40), cached.Score)
	assert.Equal(t, 2, cached.Level)
	assert.True(t, cached.IsLocal())
	assert.False(t, f.state(t).Connected)
}

func TestRegisterRejectsInvalidInputBeforeNetwork(t *testing.T) {
	f := newFixture(t)

	in := input("1042")
	in.Contact = "12345"
	_, err := f.svc.Register(context.Background(), in)

	var verr *record.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "contact", verr.Fields[0].Field)
	assert.Equal(t, 0, f.sheet.TotalCalls())

	_, err = f.svc.Register(context.Background(), record.RegistrationInput{Roll: "1"})
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, f.sheet.TotalCalls())

	rec, err := f.cache.LoadPlayer(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRegisterWithoutContact(t *testing.T) {
	f := newFixture(t)
	in := input("5")
	in.Contact = ""

	_, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, record.ContactNotProvided, f.cached(t).Contact)
}

func TestRegisterNewRollProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a new roll gains exactly one zero-progress record", prop.ForAll(
		func(name string, roll int64) bool {
			f := newFixture(t)
			in := input("0")
			in.Name = name
			in.Roll = strconv.FormatInt(roll, 10)

			if _, err := f.svc.Register(context.Background(), in); err != nil {
				return false
			}
			rows, err := f.sheet.Records()
			if err != nil || len(rows) != 1 {
				return false
			}
			cached, err := f.cache.LoadPlayer(context.Background())
			if err != nil || cached == nil {
				return false
			}
			r := rows[0]
			return r.Roll == roll && r.Score == 0 && r.Level == 1 && r.Points == 0 && *cached == r
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		gen.Int64Range(1, 999999999),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUpdateScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, input("1042"))
	require.NoError(t, err)

	res, err := f.svc.UpdateScore(ctx, 10, nil)
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.False(t, res.Skipped)

	res, err = f.svc.UpdateScore(ctx, 15, nil)
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Equal(t, int64(25), res.Record.Score)
	assert.Equal(t, int64(25), res.Record.Points)
	assert.Equal(t, 1, res.Record.Level)

	res, err = f.svc.UpdateScore(ctx, 5, intPtr(3))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Record.Level)

	res, err = f.svc.UpdateScore(ctx, 5, intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Record.Level, "level never decreases")
	assert.Equal(t, int64(35), res.Record.Score)

	assert.Equal(t, res.Record, f.cached(t))
	rows := f.remoteRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(35), rows[0].Score)
	assert.Equal(t, 3, rows[0].Level)
	assert.Equal(t, session.RegisteredOnline, f.state(t).Phase())
}

func TestUpdateScoreWithoutPlayer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateScore(context.Background(), 10, nil)
	assert.ErrorIs(t, err, ErrNoPlayer)
	assert.Equal(t, 0, f.sheet.TotalCalls())
}

func TestUpdateScoreRejectsNegativePoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, input("3"))
	require.NoError(t, err)

	_, err = f.svc.UpdateScore(ctx, -5, nil)
	assert.ErrorIs(t, err, record.ErrNegativePoints)
	assert.Equal(t, int64(0), f.cached(t).Score)
}

func TestUpdateWhileRemoteDownThenSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, input("1042"))
	require.NoError(t, err)
	_, err = f.svc.UpdateScore(ctx, 10, nil)
	require.NoError(t, err)

	f.sheet.SetDown(true)
	res, err := f.svc.UpdateScore(ctx, 15, intPtr(2))
	require.NoError(t, err)
	assert.False(t, res.Synced)
	assert.False(t, res.Skipped)
	assert.Error(t, res.RemoteErr)

	cached := f.cached(t)
	assert.Equal(t, int64(25), cached.Score)
	assert.Equal(t, int64(25), cached.Points)
	assert.Equal(t, 2, cached.Level)
	assert.True(t, f.state(t).NeedsSync)
	assert.Equal(t, session.OfflinePendingSync, f.state(t).Phase())

	sres, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, sres.Pending)
	assert.False(t, sres.Synced, "still down")
	assert.True(t, f.state(t).NeedsSync, "flags stay set after a failed sync")

	f.sheet.SetDown(false)
	sres, err = f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, sres.Synced)
	assert.False(t, f.state(t).NeedsSync)
	assert.Equal(t, session.RegisteredOnline, f.state(t).Phase())
	assert.Equal(t, cached, f.cached(t), "sync never changes the cached record")

	rows := f.remoteRows(t)
	assert.Equal(t, int64(25), rows[0].Score)
	assert.Equal(t, 2, rows[0].Level)

	last := f.pub.Events()
	assert.Equal(t, events.TypeSynced, last[len(last)-1].Type)
}

func TestSyncWithNothingPendingIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, res.Pending)

	_, err = f.svc.Register(ctx, input("9"))
	require.NoError(t, err)
	before := f.sheet.TotalCalls()

	res, err = f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, res.Pending)
	assert.False(t, res.Synced)
	assert.Equal(t, before, f.sheet.TotalCalls())
}

func TestOfflineRegistrationReachesStoreOnSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sheet.SetDown(true)
	_, err := f.svc.Register(ctx, input("77"))
	require.NoError(t, err)

	res, err := f.svc.UpdateScore(ctx, 20, nil)
	require.NoError(t, err)
	assert.False(t, res.Synced)
	assert.True(t, res.Skipped)
	assert.NoError(t, res.RemoteErr)
	assert.False(t, f.state(t).NeedsSync)
	assert.True(t, f.state(t).SyncPending())

	f.sheet.SetDown(false)
	sres, err := f.svc.HandleReconnect(ctx)
	require.NoError(t, err)
	assert.True(t, sres.Synced)

	rows := f.remoteRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(77), rows[0].Roll)
	assert.Equal(t, int64(20), rows[0].Score)
	assert.Equal(t, session.State{Registered: true, Connected: true}, f.state(t))

	// A second sync has nothing to do and must not insert again.
	sres, err = f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, sres.Pending)
	assert.Len(t, f.remoteRows(t), 1)
}

func TestOfflineRegistrationPatchesExistingRowOnSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sheet.SetDown(true)
	_, err := f.svc.Register(ctx, input("8"))
	require.NoError(t, err)
	_, err = f.svc.UpdateScore(ctx, 30, nil)
	require.NoError(t, err)

	f.sheet.SetDown(false)
	f.sheet.Seed(record.StudentRecord{Name: "Asha Verma", Roll: 8, Score: 5, Level: 1, Points: 5})

	sres, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, sres.Synced)

	rows := f.remoteRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(30), rows[0].Score)
	assert.Equal(t, 0, f.sheet.Calls(http.MethodPost))
}

func TestOfflineRegistrationNeverLowersRemoteProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sheet.Seed(record.StudentRecord{Name: "Asha Verma", Roll: 8, Score: 40, Level: 2, Points: 40})

	f.sheet.SetDown(true)
	reg, err := f.svc.Register(ctx, input("8"))
	require.NoError(t, err)
	require.True(t, reg.Degraded)
	_, err = f.svc.UpdateScore(ctx, 5, nil)
	require.NoError(t, err)
	require.Equal(t, int64(5), f.cached(t).Score)

	f.sheet.SetDown(false)
	sres, err := f.svc.HandleReconnect(ctx)
	require.NoError(t, err)
	assert.True(t, sres.Synced)

	rows := f.remoteRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(40), rows[0].Score)
	assert.Equal(t, 2, rows[0].Level)
	assert.Equal(t, int64(40), rows[0].Points)

	cached := f.cached(t)
	assert.Equal(t, int64(40), cached.Score)
	assert.Equal(t, 2, cached.Level)
	assert.Equal(t, int64(40), cached.Points)
	assert.Equal(t, session.RegisteredOnline, f.state(t).Phase())
}

func TestDisconnectDefersUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, input("12"))
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleDisconnect(ctx))
	assert.Equal(t, session.RegisteredOffline, f.state(t).Phase())

	res, err := f.svc.UpdateScore(ctx, 10, nil)
	require.NoError(t, err)
	assert.False(t, res.Synced)
	assert.NoError(t, res.RemoteErr)
	assert.Equal(t, 0, f.sheet.Calls(http.MethodPatch))
	assert.True(t, f.state(t).NeedsSync)

	sres, err := f.svc.HandleReconnect(ctx)
	require.NoError(t, err)
	assert.True(t, sres.Synced)
	assert.Equal(t, int64(10), f.remoteRows(t)[0].Score)
	assert.Equal(t, session.RegisteredOnline, f.state(t).Phase())
}

func TestPublishFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	res, err := f.svc.Register(context.Background(), input("4"))
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Len(t, f.remoteRows(t), 1)
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, input("21"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.UpdateScore(ctx, 1, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), f.cached(t).Score)
	assert.Equal(t, int64(20), f.remoteRows(t)[0].Score)
}

func TestRedisCacheBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	store := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "quest:")
	f := newFixtureWithCache(t, store, Config{})
	ctx := context.Background()

	_, err := f.svc.Register(ctx, input("31"))
	require.NoError(t, err)
	_, err = f.svc.UpdateScore(ctx, 15, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(15), f.cached(t).Score)
	v, err := mr.Get("quest:sheetsConnected")
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestLookupAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sheet.Seed(record.StudentRecord{Name: "Ravi", Roll: 55, Score: 12, Level: 1, Points: 12})

	rec, err := f.svc.Lookup(ctx, 55)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", rec.Name)

	_, err = f.svc.Lookup(ctx, 56)
	assert.ErrorIs(t, err, sheetdb.ErrNotFound)

	f.sheet.SetDown(true)
	_, err = f.svc.Lookup(ctx, 55)
	assert.True(t, sheetdb.IsNetworkError(err))
	assert.Error(t, f.svc.Ping(ctx))
	f.sheet.SetDown(false)

	st, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.Player)
	assert.Equal(t, session.Unregistered, st.Phase)
	assert.Empty(t, st.Greeting())

	_, err = f.svc.Register(ctx, input("55"))
	require.NoError(t, err)
	st, err = f.svc.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.Player)
	assert.Equal(t, session.RegisteredOnline, st.Phase)
	assert.Equal(t, "Welcome back, Asha Verma!", st.Greeting())
}
