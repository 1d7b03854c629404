// internal/game/engine_test.go
package game

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixelasacul/friend-blind-test/internal/models"
)

// fakeStore is an in-memory Store for scenario tests.
type fakeStore struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*models.Lobby
	players map[uuid.UUID]*models.Player
	artists map[uuid.UUID][]models.Artist
	tracks  map[uuid.UUID]*models.Track
	answers map[uuid.UUID]*models.Answer
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lobbies: make(map[uuid.UUID]*models.Lobby),
		players: make(map[uuid.UUID]*models.Player),
		artists: make(map[uuid.UUID][]models.Artist),
		tracks:  make(map[uuid.UUID]*models.Track),
		answers: make(map[uuid.UUID]*models.Answer),
	}
}

func (s *fakeStore) CreateLobby(ctx context.Context) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := uuid.NewV7()
	lobby := &models.Lobby{ID: id, Status: models.StatusWaiting}
	s.lobbies[id] = lobby
	cp := *lobby
	return &cp, nil
}

func (s *fakeStore) Lobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobby, ok := s.lobbies[id]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	cp := *lobby
	return &cp, nil
}

func (s *fakeStore) SetLobbyState(ctx context.Context, id uuid.UUID, status models.LobbyStatus, trackID *uuid.UUID, startedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobby, ok := s.lobbies[id]
	if !ok {
		return ErrLobbyNotFound
	}
	lobby.Status = status
	lobby.CurrentTrackID = trackID
	lobby.StartedTrackAt = startedAt
	return nil
}

func (s *fakeStore) CreatePlayer(ctx context.Context, p *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.players[p.ID] = &cp
	return nil
}

func (s *fakeStore) Player(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) PlayersByLobby(ctx context.Context, lobbyID uuid.UUID) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Player
	for _, p := range s.players {
		if p.LobbyID == lobbyID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) DeletePlayer(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	return nil
}

func (s *fakeStore) SetPlayerReady(ctx context.Context, id uuid.UUID, ready bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Ready = ready
	return nil
}

func (s *fakeStore) ResetReady(ctx context.Context, lobbyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.LobbyID == lobbyID {
			p.Ready = false
		}
	}
	return nil
}

func (s *fakeStore) SetPlayerName(ctx context.Context, id uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Name = name
	return nil
}

func (s *fakeStore) SetPlayerPresence(ctx context.Context, id uuid.UUID, online bool, timeoutHandle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Online = online
	p.TimeoutHandle = timeoutHandle
	return nil
}

func (s *fakeStore) AddPlayerScore(ctx context.Context, id uuid.UUID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Score += delta
	return nil
}

func (s *fakeStore) SaveArtist(ctx context.Context, a *models.Artist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artists[a.PlayerID] = append(s.artists[a.PlayerID], *a)
	return nil
}

func (s *fakeStore) ArtistsByPlayer(ctx context.Context, playerID uuid.UUID) ([]models.Artist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Artist(nil), s.artists[playerID]...), nil
}

func (s *fakeStore) InsertTracks(ctx context.Context, tracks []models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range tracks {
		cp := tracks[i]
		s.tracks[cp.ID] = &cp
	}
	return nil
}

func (s *fakeStore) Track(ctx context.Context, id uuid.UUID) (*models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.tracks[id]
	if !ok {
		return nil, ErrTrackNotFound
	}
	cp := *tr
	return &cp, nil
}

func (s *fakeStore) TrackByOrder(ctx context.Context, lobbyID uuid.UUID, order int) (*models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tr := range s.tracks {
		if tr.LobbyID == lobbyID && tr.Order == order {
			cp := *tr
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) TracksByLobby(ctx context.Context, lobbyID uuid.UUID) ([]models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Track
	for order := 0; ; order++ {
		found := false
		for _, tr := range s.tracks {
			if tr.LobbyID == lobbyID && tr.Order == order {
				out = append(out, *tr)
				found = true
				break
			}
		}
		if !found {
			return out, nil
		}
	}
}

func (s *fakeStore) AnswerFor(ctx context.Context, playerID, trackID uuid.UUID) (*models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.answers {
		if a.PlayerID == playerID && a.TrackID == trackID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateAnswer(ctx context.Context, a *models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.answers[a.ID] = &cp
	return nil
}

func (s *fakeStore) RecordGuessProgress(ctx context.Context, answerID uuid.UUID, partial string, trackAt, artistsAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[answerID]
	if !ok {
		return fmt.Errorf("answer %s not found", answerID)
	}
	a.PartialAnswer = partial
	if a.GuessedTrackAt == nil {
		a.GuessedTrackAt = trackAt
	}
	if a.GuessedArtistsAt == nil {
		a.GuessedArtistsAt = artistsAt
	}
	return nil
}

func (s *fakeStore) RecordPlayerGuess(ctx context.Context, answerID, guessedPlayerID uuid.UUID, correctAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[answerID]
	if !ok {
		return fmt.Errorf("answer %s not found", answerID)
	}
	if a.GuessedPlayerID == nil {
		a.GuessedPlayerID = &guessedPlayerID
		a.GuessedPlayerAt = correctAt
	}
	return nil
}

func (s *fakeStore) AnswersByTrack(ctx context.Context, trackID uuid.UUID) ([]models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Answer
	for _, a := range s.answers {
		if a.TrackID == trackID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) AnswersByLobby(ctx context.Context, lobbyID uuid.UUID) ([]models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Answer
	for _, a := range s.answers {
		if tr, ok := s.tracks[a.TrackID]; ok && tr.LobbyID == lobbyID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) CountCompleteAnswers(ctx context.Context, trackID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.answers {
		if a.TrackID == trackID && a.Complete() {
			n++
		}
	}
	return n, nil
}

// scheduledTask records one Schedule call.
type scheduledTask struct {
	Handle     string
	Delay      time.Duration
	Transition Transition
	Payload    TaskPayload
}

// fakeScheduler records armed and canceled tasks without any timing.
type fakeScheduler struct {
	mu       sync.Mutex
	seq      int
	tasks    []scheduledTask
	canceled []string
}

func (f *fakeScheduler) Schedule(ctx context.Context, delay time.Duration, transition Transition, payload TaskPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	handle := fmt.Sprintf("task-%d", f.seq)
	f.tasks = append(f.tasks, scheduledTask{Handle: handle, Delay: delay, Transition: transition, Payload: payload})
	return handle, nil
}

func (f *fakeScheduler) Cancel(ctx context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, handle)
	return nil
}

func (f *fakeScheduler) lastTask(transition Transition) *scheduledTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.tasks) - 1; i >= 0; i-- {
		if f.tasks[i].Transition == transition {
			task := f.tasks[i]
			return &task
		}
	}
	return nil
}

func (f *fakeScheduler) handles(transition Transition) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, task := range f.tasks {
		if task.Transition == transition {
			out = append(out, task.Handle)
		}
	}
	return out
}

func (f *fakeScheduler) countTasks(transition Transition) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, task := range f.tasks {
		if task.Transition == transition {
			n++
		}
	}
	return n
}

// fakeCatalog returns canned tracks, stamping IDs and order like the real
// generator does.
type fakeCatalog struct {
	mu     sync.Mutex
	tracks []models.Track
	calls  int
}

func (f *fakeCatalog) GenerateTracks(ctx context.Context, lobbyID uuid.UUID, selections [][]models.Artist) ([]models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]models.Track, len(f.tracks))
	for i, tr := range f.tracks {
		id, _ := uuid.NewV7()
		tr.ID = id
		tr.LobbyID = lobbyID
		tr.Order = i
		out[i] = tr
	}
	return out, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEngine(t *testing.T) (*Engine, *fakeStore, *fakeScheduler, *fakeCatalog) {
	t.Helper()
	st := newFakeStore()
	sched := &fakeScheduler{}
	cat := &fakeCatalog{tracks: []models.Track{
		{PlayerID: uuid.Nil, Name: "Mr. Brightside", Artists: []string{"The Killers"}, PreviewURL: "https://cdn.example/preview-1.mp3"},
		{PlayerID: uuid.Nil, Name: "Get Lucky", Artists: []string{"Daft Punk", "Pharrell Williams"}, PreviewURL: "https://cdn.example/preview-2.mp3"},
	}}
	e := NewEngine(st, sched, cat, DefaultConfig(), quietLogger())
	return e, st, sched, cat
}

// seedRound puts a lobby directly into the playing state with a known track.
func seedRound(t *testing.T, st *fakeStore, contributor uuid.UUID, name string, artists []string) (*models.Lobby, *models.Track) {
	t.Helper()
	ctx := context.Background()
	lobby, err := st.CreateLobby(ctx)
	require.NoError(t, err)

	id, _ := uuid.NewV7()
	track := &models.Track{ID: id, LobbyID: lobby.ID, PlayerID: contributor, Name: name, Artists: artists, PreviewURL: "https://cdn.example/p.mp3", Order: 0}
	require.NoError(t, st.InsertTracks(ctx, []models.Track{*track}))

	now := time.Now()
	require.NoError(t, st.SetLobbyState(ctx, lobby.ID, models.StatusPlaying, &track.ID, &now))
	return lobby, track
}

func joinPlayer(t *testing.T, e *Engine, lobbyID uuid.UUID, name string) *models.Player {
	t.Helper()
	p, err := e.Join(context.Background(), lobbyID, name)
	require.NoError(t, err)
	return p
}

func lobbyStatus(t *testing.T, st *fakeStore, lobbyID uuid.UUID) models.LobbyStatus {
	t.Helper()
	lobby, err := st.Lobby(context.Background(), lobbyID)
	require.NoError(t, err)
	return lobby.Status
}

func TestJoinAssignsDefaultName(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)

	p, err := e.Join(ctx, lobby.ID, "")
	require.NoError(t, err)
	assert.Contains(t, p.Name, "player-")
	assert.True(t, p.Online)
	assert.False(t, p.Ready)
}

func TestJoinRejectsFullLobby(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	e.cfg.MaxPlayers = 2
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	joinPlayer(t, e, lobby.ID, "a")
	joinPlayer(t, e, lobby.ID, "b")

	_, err = e.Join(ctx, lobby.ID, "c")
	assert.ErrorIs(t, err, ErrLobbyFull)
}

func TestJoinRejectsFinishedLobby(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	require.NoError(t, st.SetLobbyState(ctx, lobby.ID, models.StatusFinished, nil, nil))

	_, err = e.Join(ctx, lobby.ID, "late")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestJoinUnknownLobby(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	_, err := e.Join(context.Background(), uuid.Must(uuid.NewV7()), "x")
	assert.True(t, IsNotFound(err))
}

func TestReadyGateStartsLoadingWhenAllOnlineReady(t *testing.T) {
	e, st, sched, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p1 := joinPlayer(t, e, lobby.ID, "a")
	p2 := joinPlayer(t, e, lobby.ID, "b")

	require.NoError(t, e.ToggleReady(ctx, p1.ID))
	assert.Equal(t, models.StatusWaiting, lobbyStatus(t, st, lobby.ID))

	require.NoError(t, e.ToggleReady(ctx, p2.ID))

	// Track generation is asynchronous; the lobby passes through loading and
	// lands paused on the first track.
	require.Eventually(t, func() bool {
		return lobbyStatus(t, st, lobby.ID) == models.StatusPaused
	}, time.Second, 5*time.Millisecond)

	final, err := st.Lobby(ctx, lobby.ID)
	require.NoError(t, err)
	require.NotNil(t, final.CurrentTrackID)

	first, err := st.TrackByOrder(ctx, lobby.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, first.ID, *final.CurrentTrackID)

	start := sched.lastTask(TransitionStartRound)
	require.NotNil(t, start)
	assert.Equal(t, e.cfg.TimeBetweenRounds, start.Delay)
	assert.Equal(t, first.ID, start.Payload.TrackID)
}

func TestReadyGateHoldsBelowMinimumPlayers(t *testing.T) {
	e, st, _, cat := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p1 := joinPlayer(t, e, lobby.ID, "solo")

	require.NoError(t, e.ToggleReady(ctx, p1.ID))

	assert.Equal(t, models.StatusWaiting, lobbyStatus(t, st, lobby.ID))
	assert.Equal(t, 0, cat.calls)
}

func TestReadyToggleOff(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p1 := joinPlayer(t, e, lobby.ID, "a")
	joinPlayer(t, e, lobby.ID, "b")

	require.NoError(t, e.ToggleReady(ctx, p1.ID))
	require.NoError(t, e.ToggleReady(ctx, p1.ID))

	got, err := st.Player(ctx, p1.ID)
	require.NoError(t, err)
	assert.False(t, got.Ready)
	assert.Equal(t, models.StatusWaiting, lobbyStatus(t, st, lobby.ID))
}

func TestConcurrentReadyTogglesNetToNotReady(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p1 := joinPlayer(t, e, lobby.ID, "a")
	joinPlayer(t, e, lobby.ID, "b")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.ToggleReady(ctx, p1.ID))
		}()
	}
	wg.Wait()

	// Two toggles always net out, whatever their interleaving.
	got, err := st.Player(ctx, p1.ID)
	require.NoError(t, err)
	assert.False(t, got.Ready)
}

func TestOfflinePlayersAreDeletedWhenRoundsPrepare(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p1 := joinPlayer(t, e, lobby.ID, "a")
	p2 := joinPlayer(t, e, lobby.ID, "b")
	ghost := joinPlayer(t, e, lobby.ID, "ghost")
	require.NoError(t, st.SetPlayerPresence(ctx, ghost.ID, false, ""))

	require.NoError(t, e.ToggleReady(ctx, p1.ID))
	require.NoError(t, e.ToggleReady(ctx, p2.ID))

	require.Eventually(t, func() bool {
		return lobbyStatus(t, st, lobby.ID) == models.StatusPaused
	}, time.Second, 5*time.Millisecond)

	_, err = st.Player(ctx, ghost.ID)
	assert.True(t, IsNotFound(err))
}

func TestOfflineDepartureUnblocksReadyGate(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p1 := joinPlayer(t, e, lobby.ID, "a")
	p2 := joinPlayer(t, e, lobby.ID, "b")
	blocker := joinPlayer(t, e, lobby.ID, "afk")

	require.NoError(t, e.ToggleReady(ctx, p1.ID))
	require.NoError(t, e.ToggleReady(ctx, p2.ID))
	assert.Equal(t, models.StatusWaiting, lobbyStatus(t, st, lobby.ID))

	// The non-ready player's presence timeout fires.
	require.NoError(t, e.handlePresenceTimeout(ctx, blocker.ID))

	require.Eventually(t, func() bool {
		return lobbyStatus(t, st, lobby.ID) == models.StatusPaused
	}, time.Second, 5*time.Millisecond)
}

func TestEmptyTrackBatchRevertsToWaiting(t *testing.T) {
	e, st, _, cat := newTestEngine(t)
	cat.tracks = nil
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p1 := joinPlayer(t, e, lobby.ID, "a")
	p2 := joinPlayer(t, e, lobby.ID, "b")

	require.NoError(t, e.ToggleReady(ctx, p1.ID))
	require.NoError(t, e.ToggleReady(ctx, p2.ID))

	require.Eventually(t, func() bool {
		return lobbyStatus(t, st, lobby.ID) == models.StatusWaiting
	}, time.Second, 5*time.Millisecond)

	// Ready flags are cleared so the lobby does not immediately re-trigger.
	for _, id := range []uuid.UUID{p1.ID, p2.ID} {
		p, err := st.Player(ctx, id)
		require.NoError(t, err)
		assert.False(t, p.Ready)
	}
}

func TestStartRoundIsIdempotent(t *testing.T) {
	e, st, sched, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := st.CreateLobby(ctx)
	require.NoError(t, err)
	id, _ := uuid.NewV7()
	track := models.Track{ID: id, LobbyID: lobby.ID, Name: "x", Artists: []string{"y"}, Order: 0}
	require.NoError(t, st.InsertTracks(ctx, []models.Track{track}))
	require.NoError(t, st.SetLobbyState(ctx, lobby.ID, models.StatusPaused, &track.ID, nil))

	require.NoError(t, e.StartRound(ctx, lobby.ID, track.ID))
	assert.Equal(t, models.StatusPlaying, lobbyStatus(t, st, lobby.ID))
	assert.Equal(t, 1, sched.countTasks(TransitionEndRound))

	// A duplicate fire is a silent no-op: no second end-round timer.
	require.NoError(t, e.StartRound(ctx, lobby.ID, track.ID))
	assert.Equal(t, 1, sched.countTasks(TransitionEndRound))
}

func TestEndRoundAdvancesToNextTrack(t *testing.T) {
	e, st, sched, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := st.CreateLobby(ctx)
	require.NoError(t, err)
	id1, _ := uuid.NewV7()
	id2, _ := uuid.NewV7()
	tracks := []models.Track{
		{ID: id1, LobbyID: lobby.ID, Name: "first", Artists: []string{"a"}, Order: 0},
		{ID: id2, LobbyID: lobby.ID, Name: "second", Artists: []string{"b"}, Order: 1},
	}
	require.NoError(t, st.InsertTracks(ctx, tracks))
	now := time.Now()
	require.NoError(t, st.SetLobbyState(ctx, lobby.ID, models.StatusPlaying, &id1, &now))

	require.NoError(t, e.EndRound(ctx, lobby.ID, id1))

	final, err := st.Lobby(ctx, lobby.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, final.Status)
	require.NotNil(t, final.CurrentTrackID)
	assert.Equal(t, id2, *final.CurrentTrackID)

	start := sched.lastTask(TransitionStartRound)
	require.NotNil(t, start)
	assert.Equal(t, id2, start.Payload.TrackID)
}

func TestEndRoundAfterLastTrackArmsGameEnd(t *testing.T) {
	e, st, sched, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, track := seedRound(t, st, uuid.Nil, "only", []string{"a"})

	require.NoError(t, e.EndRound(ctx, lobby.ID, track.ID))

	final, err := st.Lobby(ctx, lobby.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, final.Status)
	assert.Nil(t, final.CurrentTrackID)

	end := sched.lastTask(TransitionEndGame)
	require.NotNil(t, end)
	assert.Equal(t, lobby.ID, end.Payload.LobbyID)

	require.NoError(t, e.EndGame(ctx, lobby.ID))
	assert.Equal(t, models.StatusFinished, lobbyStatus(t, st, lobby.ID))
}

func TestEndRoundIgnoresStaleTrack(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, _ := seedRound(t, st, uuid.Nil, "current", []string{"a"})

	require.NoError(t, e.EndRound(ctx, lobby.ID, uuid.Must(uuid.NewV7())))
	assert.Equal(t, models.StatusPlaying, lobbyStatus(t, st, lobby.ID))
}

func TestGuessTrackFullMatchScoresWithSpeedBonus(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, _ := seedRound(t, st, uuid.Nil, "Mr. Brightside", []string{"The Killers"})
	p := joinPlayer(t, e, lobby.ID, "guesser")

	outcome, err := e.GuessTrack(ctx, p.ID, "mr brightside the killers")
	require.NoError(t, err)
	assert.True(t, outcome.TrackFound)
	assert.True(t, outcome.ArtistsFound)
	assert.Equal(t, 13, outcome.Points)

	got, err := st.Player(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 13, got.Score)
}

func TestGuessTrackSplitAcrossGuessesStillGetsSpeedBonus(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, _ := seedRound(t, st, uuid.Nil, "Mr. Brightside", []string{"The Killers"})
	p := joinPlayer(t, e, lobby.ID, "guesser")

	first, err := e.GuessTrack(ctx, p.ID, "mr brightside")
	require.NoError(t, err)
	assert.True(t, first.TrackFound)
	assert.False(t, first.ArtistsFound)
	assert.Equal(t, 5, first.Points)

	second, err := e.GuessTrack(ctx, p.ID, "the killers")
	require.NoError(t, err)
	assert.True(t, second.ArtistsFound)
	// 5 for the artists plus the full speed bonus for completing first.
	assert.Equal(t, 8, second.Points)

	got, err := st.Player(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 13, got.Score)

	_, err = e.GuessTrack(ctx, p.ID, "anything")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGuessTrackSpeedBonusDecreasesByRank(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, _ := seedRound(t, st, uuid.Nil, "Get Lucky", []string{"Daft Punk"})
	p1 := joinPlayer(t, e, lobby.ID, "fast")
	p2 := joinPlayer(t, e, lobby.ID, "slow")

	first, err := e.GuessTrack(ctx, p1.ID, "get lucky daft punk")
	require.NoError(t, err)
	assert.Equal(t, 13, first.Points)

	second, err := e.GuessTrack(ctx, p2.ID, "get lucky daft punk")
	require.NoError(t, err)
	assert.Equal(t, 12, second.Points)
}

func TestGuessTrackOwnTrackMalus(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := st.CreateLobby(ctx)
	require.NoError(t, err)
	p := joinPlayer(t, e, lobby.ID, "self")

	id, _ := uuid.NewV7()
	track := models.Track{ID: id, LobbyID: lobby.ID, PlayerID: p.ID, Name: "Get Lucky", Artists: []string{"Daft Punk"}, Order: 0}
	require.NoError(t, st.InsertTracks(ctx, []models.Track{track}))
	now := time.Now()
	require.NoError(t, st.SetLobbyState(ctx, lobby.ID, models.StatusPlaying, &track.ID, &now))

	outcome, err := e.GuessTrack(ctx, p.ID, "get lucky daft punk")
	require.NoError(t, err)
	assert.Equal(t, 11, outcome.Points)
}

func TestGuessTrackRejectedOutsideRound(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p := joinPlayer(t, e, lobby.ID, "eager")

	_, err = e.GuessTrack(ctx, p.ID, "anything")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGuessPlayerSingleAttempt(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	contributor, _ := uuid.NewV7()
	lobby, _ := seedRound(t, st, contributor, "Get Lucky", []string{"Daft Punk"})
	p := joinPlayer(t, e, lobby.ID, "guesser")

	outcome, err := e.GuessPlayer(ctx, p.ID, contributor)
	require.NoError(t, err)
	assert.True(t, outcome.Correct)
	assert.Equal(t, 5, outcome.Points)

	_, err = e.GuessPlayer(ctx, p.ID, contributor)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGuessPlayerWrongGuessBurnsTheAttempt(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	contributor, _ := uuid.NewV7()
	lobby, _ := seedRound(t, st, contributor, "Get Lucky", []string{"Daft Punk"})
	p := joinPlayer(t, e, lobby.ID, "guesser")

	wrong, _ := uuid.NewV7()
	outcome, err := e.GuessPlayer(ctx, p.ID, wrong)
	require.NoError(t, err)
	assert.False(t, outcome.Correct)
	assert.Equal(t, 0, outcome.Points)

	_, err = e.GuessPlayer(ctx, p.ID, contributor)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestHeartbeatRearmsPresenceTimeout(t *testing.T) {
	e, st, sched, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p := joinPlayer(t, e, lobby.ID, "alive")

	joined, err := st.Player(ctx, p.ID)
	require.NoError(t, err)
	firstHandle := joined.TimeoutHandle
	require.NotEmpty(t, firstHandle)

	require.NoError(t, e.Heartbeat(ctx, p.ID))

	after, err := st.Player(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, after.Online)
	assert.NotEqual(t, firstHandle, after.TimeoutHandle)
	assert.Contains(t, sched.canceled, firstHandle)
}

func TestConcurrentHeartbeatsLeaveSingleArmedTimeout(t *testing.T) {
	e, st, sched, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p := joinPlayer(t, e, lobby.ID, "alive")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.Heartbeat(ctx, p.ID))
		}()
	}
	wg.Wait()

	got, err := st.Player(ctx, p.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got.TimeoutHandle)

	// Every armed timeout except the player's current one was canceled, so no
	// superseded timer is left to fire and mark the player offline.
	for _, handle := range sched.handles(TransitionPresenceTimeout) {
		if handle == got.TimeoutHandle {
			assert.NotContains(t, sched.canceled, handle)
			continue
		}
		assert.Contains(t, sched.canceled, handle)
	}
}

func TestPresenceTimeoutMarksOffline(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p := joinPlayer(t, e, lobby.ID, "gone")

	require.NoError(t, e.handlePresenceTimeout(ctx, p.ID))

	got, err := st.Player(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Online)
	assert.Empty(t, got.TimeoutHandle)
}

func TestPresenceTimeoutForDeletedPlayerIsNoop(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	assert.NoError(t, e.handlePresenceTimeout(context.Background(), uuid.Must(uuid.NewV7())))
}

func TestDisconnectMarksOfflineImmediately(t *testing.T) {
	e, st, sched, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p := joinPlayer(t, e, lobby.ID, "leaver")

	joined, err := st.Player(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, e.Disconnect(ctx, p.ID))

	got, err := st.Player(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Online)
	assert.Contains(t, sched.canceled, joined.TimeoutHandle)
}

func TestSaveArtistsCapsSelection(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p := joinPlayer(t, e, lobby.ID, "picker")

	var picks []models.Artist
	for i := 0; i < 7; i++ {
		picks = append(picks, models.Artist{ExternalID: fmt.Sprintf("ext-%d", i), Name: fmt.Sprintf("Artist %d", i)})
	}
	picks = append(picks, models.Artist{Name: ""})

	require.NoError(t, e.SaveArtists(ctx, p.ID, picks))

	saved, err := st.ArtistsByPlayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, saved, e.cfg.MaxArtistPicks)
	for _, a := range saved {
		assert.NotEmpty(t, a.Name)
		assert.Equal(t, p.ID, a.PlayerID)
	}
}

func TestUpdateNameRejectsEmpty(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p := joinPlayer(t, e, lobby.ID, "old")

	assert.ErrorIs(t, e.UpdateName(ctx, p.ID, ""), ErrInvalidState)
	assert.NoError(t, e.UpdateName(ctx, p.ID, "new"))
}

func TestSnapshotHidesCurrentRoundAnswers(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	contributor, _ := uuid.NewV7()
	lobby, track := seedRound(t, st, contributor, "Get Lucky", []string{"Daft Punk"})
	p := joinPlayer(t, e, lobby.ID, "guesser")

	_, err := e.GuessTrack(ctx, p.ID, "get lucky")
	require.NoError(t, err)

	snap, err := e.GameSnapshot(ctx, lobby.ID)
	require.NoError(t, err)

	require.NotNil(t, snap.CurrentRound)
	assert.Equal(t, track.ID, snap.CurrentRound.TrackID)
	assert.NotEmpty(t, snap.CurrentRound.PreviewURL)
	require.Len(t, snap.CurrentRound.PlayerAnswers, 1)
	assert.True(t, snap.CurrentRound.PlayerAnswers[0].GuessedTrack)
	assert.False(t, snap.CurrentRound.PlayerAnswers[0].GuessedArtists)
	assert.Empty(t, snap.PreviousRounds)
}

func TestSnapshotRevealsRoundsWhenFinished(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, track := seedRound(t, st, uuid.Nil, "Get Lucky", []string{"Daft Punk"})
	p := joinPlayer(t, e, lobby.ID, "guesser")
	_, err := e.GuessTrack(ctx, p.ID, "get lucky daft punk")
	require.NoError(t, err)

	require.NoError(t, st.SetLobbyState(ctx, lobby.ID, models.StatusFinished, nil, nil))

	snap, err := e.GameSnapshot(ctx, lobby.ID)
	require.NoError(t, err)

	assert.Nil(t, snap.CurrentRound)
	require.Len(t, snap.PreviousRounds, 1)
	assert.Equal(t, track.Name, snap.PreviousRounds[0].Track.Name)
	require.Len(t, snap.PreviousRounds[0].Answers, 1)
}

func TestSnapshotKeepsRoundsRevealedDuringFinalPause(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := st.CreateLobby(ctx)
	require.NoError(t, err)
	id1, _ := uuid.NewV7()
	id2, _ := uuid.NewV7()
	tracks := []models.Track{
		{ID: id1, LobbyID: lobby.ID, Name: "first", Artists: []string{"a"}, Order: 0},
		{ID: id2, LobbyID: lobby.ID, Name: "second", Artists: []string{"b"}, Order: 1},
	}
	require.NoError(t, st.InsertTracks(ctx, tracks))
	now := time.Now()
	require.NoError(t, st.SetLobbyState(ctx, lobby.ID, models.StatusPlaying, &id1, &now))

	// The pause between rounds reveals only the rounds already played.
	require.NoError(t, e.EndRound(ctx, lobby.ID, id1))
	snap, err := e.GameSnapshot(ctx, lobby.ID)
	require.NoError(t, err)
	require.Len(t, snap.PreviousRounds, 1)
	assert.Equal(t, "first", snap.PreviousRounds[0].Track.Name)

	// The pause after the last round has no upcoming track; everything played
	// stays revealed while the game-end timer runs.
	require.NoError(t, st.SetLobbyState(ctx, lobby.ID, models.StatusPlaying, &id2, &now))
	require.NoError(t, e.EndRound(ctx, lobby.ID, id2))

	final, err := st.Lobby(ctx, lobby.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPaused, final.Status)
	require.Nil(t, final.CurrentTrackID)

	snap, err = e.GameSnapshot(ctx, lobby.ID)
	require.NoError(t, err)
	assert.Nil(t, snap.CurrentRound)
	require.Len(t, snap.PreviousRounds, 2)
	assert.Equal(t, "first", snap.PreviousRounds[0].Track.Name)
	assert.Equal(t, "second", snap.PreviousRounds[1].Track.Name)
}

func TestSnapshotRanksPlayersByScore(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, err := e.CreateLobby(ctx)
	require.NoError(t, err)
	p1 := joinPlayer(t, e, lobby.ID, "low")
	p2 := joinPlayer(t, e, lobby.ID, "high")
	require.NoError(t, st.AddPlayerScore(ctx, p1.ID, 3))
	require.NoError(t, st.AddPlayerScore(ctx, p2.ID, 10))

	snap, err := e.GameSnapshot(ctx, lobby.ID)
	require.NoError(t, err)

	require.Len(t, snap.Players, 2)
	assert.Equal(t, p2.ID, snap.Players[0].ID)
	assert.Equal(t, p1.ID, snap.Players[1].ID)
}

func TestHandleTransitionDispatch(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	lobby, track := seedRound(t, st, uuid.Nil, "x", []string{"y"})

	e.HandleTransition(ctx, TransitionEndRound, TaskPayload{LobbyID: lobby.ID, TrackID: track.ID})
	assert.Equal(t, models.StatusPaused, lobbyStatus(t, st, lobby.ID))

	e.HandleTransition(ctx, TransitionEndGame, TaskPayload{LobbyID: lobby.ID})
	assert.Equal(t, models.StatusFinished, lobbyStatus(t, st, lobby.ID))
}
