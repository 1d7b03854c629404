// internal/game/engine.go
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sixelasacul/friend-blind-test/internal/models"
)

// Config holds the fixed timing and capacity constants of the game. These are
// configuration, not computed values.
type Config struct {
	// TimeBetweenRounds is the pause between a round ending and the next one
	// starting (and before the first round, and before the game-end reveal).
	TimeBetweenRounds time.Duration
	// PreviewDuration is how long a track preview plays for one round.
	PreviewDuration time.Duration
	// PresenceTimeout is how long a player may go without a heartbeat before
	// they are considered offline.
	PresenceTimeout time.Duration

	MaxPlayers     int
	MinPlayers     int
	TracksPerGame  int
	MaxArtistPicks int
}

// DefaultConfig mirrors the production constants.
func DefaultConfig() Config {
	return Config{
		TimeBetweenRounds: 5 * time.Second,
		PreviewDuration:   30 * time.Second,
		PresenceTimeout:   20 * time.Second,
		MaxPlayers:        12,
		MinPlayers:        2,
		TracksPerGame:     20,
		MaxArtistPicks:    5,
	}
}

// Engine is the lobby state machine. It owns lobby status transitions,
// validates player actions against the current state, and arms delayed
// transitions through the durable scheduler. All I/O goes through the
// injected Store, Scheduler and Catalog.
//
// Every lobby is an independent unit of concurrency: operations on one lobby
// serialize on its mutex, operations on different lobbies never contend.
// Timer-fired transitions re-enter through HandleTransition and take the same
// lock; they are not a privileged path.
type Engine struct {
	store   Store
	sched   Scheduler
	catalog Catalog
	cfg     Config
	log     *logrus.Logger

	// now is swappable for tests.
	now func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewEngine wires the state machine with its collaborators.
func NewEngine(store Store, sched Scheduler, catalog Catalog, cfg Config, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		store:   store,
		sched:   sched,
		catalog: catalog,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

// lobbyLock returns the mutex serializing all state-affecting operations for
// one lobby. Locks are never removed; a finished lobby's mutex is a few bytes.
func (e *Engine) lobbyLock(lobbyID uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[lobbyID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[lobbyID] = l
	}
	return l
}

// CreateLobby creates a fresh lobby in the waiting state.
func (e *Engine) CreateLobby(ctx context.Context) (*models.Lobby, error) {
	lobby, err := e.store.CreateLobby(ctx)
	if err != nil {
		return nil, fmt.Errorf("create lobby: %w", err)
	}
	e.log.WithField("lobby", lobby.ID).Info("lobby created")
	return lobby, nil
}

// Join adds a player to a lobby and arms their presence timeout. Mid-round
// joins are allowed; their answer record is created lazily on first guess.
func (e *Engine) Join(ctx context.Context, lobbyID uuid.UUID, name string) (*models.Player, error) {
	lock := e.lobbyLock(lobbyID)
	lock.Lock()
	defer lock.Unlock()

	lobby, err := e.store.Lobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if lobby.Status == models.StatusFinished {
		return nil, fmt.Errorf("%w: game is finished", ErrInvalidState)
	}

	players, err := e.store.PlayersByLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if len(players) >= e.cfg.MaxPlayers {
		return nil, ErrLobbyFull
	}

	id, _ := uuid.NewV7()
	if name == "" {
		name = "player-" + id.String()[:8]
	}
	player := &models.Player{
		ID:      id,
		LobbyID: lobbyID,
		Name:    name,
		Ready:   false,
		Online:  true,
		Score:   0,
	}
	if err := e.store.CreatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}

	if err := e.armPresenceTimeout(ctx, player); err != nil {
		e.log.WithError(err).WithField("player", player.ID).Warn("failed to arm presence timeout on join")
	}

	e.log.WithFields(logrus.Fields{"lobby": lobbyID, "player": player.ID, "name": name}).Info("player joined")
	return player, nil
}

// ToggleReady flips the player's ready flag. When the flip makes every online
// player ready (with at least MinPlayers of them), round preparation starts:
// offline players are deleted so they cannot block the lobby, the status moves
// to loading, and track generation is kicked off.
func (e *Engine) ToggleReady(ctx context.Context, playerID uuid.UUID) error {
	player, err := e.store.Player(ctx, playerID)
	if err != nil {
		return err
	}

	lock := e.lobbyLock(player.LobbyID)
	lock.Lock()
	defer lock.Unlock()

	lobby, err := e.store.Lobby(ctx, player.LobbyID)
	if err != nil {
		return err
	}
	if lobby.Status != models.StatusWaiting {
		return fmt.Errorf("%w: lobby is %s", ErrInvalidState, lobby.Status)
	}

	// Re-read under the lock so concurrent toggles each see the other's flip.
	player, err = e.store.Player(ctx, playerID)
	if err != nil {
		return err
	}
	ready := !player.Ready
	if err := e.store.SetPlayerReady(ctx, playerID, ready); err != nil {
		return err
	}
	if !ready {
		return nil
	}
	return e.maybePrepareRounds(ctx, lobby)
}

// maybePrepareRounds checks the readiness gate and, if open, moves the lobby
// into loading and fires track generation. Caller must hold the lobby lock.
func (e *Engine) maybePrepareRounds(ctx context.Context, lobby *models.Lobby) error {
	if lobby.Status != models.StatusWaiting {
		return nil
	}
	players, err := e.store.PlayersByLobby(ctx, lobby.ID)
	if err != nil {
		return err
	}

	var online, offline []models.Player
	for _, p := range players {
		if p.Online {
			online = append(online, p)
		} else {
			offline = append(offline, p)
		}
	}
	if len(online) < e.cfg.MinPlayers {
		return nil
	}
	for _, p := range online {
		if !p.Ready {
			return nil
		}
	}

	// Offline players cannot block the lobby; drop them before the playlist
	// is generated so no track is attributed to a ghost.
	for _, p := range offline {
		if p.TimeoutHandle != "" {
			if err := e.sched.Cancel(ctx, p.TimeoutHandle); err != nil {
				e.log.WithError(err).WithField("player", p.ID).Warn("failed to cancel presence timeout")
			}
		}
		if err := e.store.DeletePlayer(ctx, p.ID); err != nil {
			return fmt.Errorf("delete offline player %s: %w", p.ID, err)
		}
	}

	if err := e.store.SetLobbyState(ctx, lobby.ID, models.StatusLoading, nil, nil); err != nil {
		return err
	}
	e.log.WithField("lobby", lobby.ID).Info("all players ready, generating tracks")

	selections := make([][]models.Artist, 0, len(online))
	for _, p := range online {
		artists, err := e.store.ArtistsByPlayer(ctx, p.ID)
		if err != nil {
			return err
		}
		selections = append(selections, artists)
	}

	// Fire and forget: the catalog call can take seconds and must not run
	// under the lobby lock. Its result re-enters through OnTracksReady.
	go e.generateTracks(lobby.ID, selections)
	return nil
}

// generateTracks runs the external catalog and delivers the batch back into
// the state machine as a distinct event.
func (e *Engine) generateTracks(lobbyID uuid.UUID, selections [][]models.Artist) {
	ctx := context.Background()
	tracks, err := e.catalog.GenerateTracks(ctx, lobbyID, selections)
	if err != nil {
		e.log.WithError(err).WithField("lobby", lobbyID).Error("track generation failed")
		tracks = nil
	}
	if err := e.OnTracksReady(ctx, lobbyID, tracks); err != nil {
		e.log.WithError(err).WithField("lobby", lobbyID).Error("failed to apply generated tracks")
	}
}

// OnTracksReady persists the generated batch and arms the first round-start
// timer. An empty batch is a recoverable failure: the lobby returns to
// waiting with all ready flags cleared, rather than sitting in loading
// forever.
func (e *Engine) OnTracksReady(ctx context.Context, lobbyID uuid.UUID, tracks []models.Track) error {
	lock := e.lobbyLock(lobbyID)
	lock.Lock()
	defer lock.Unlock()

	lobby, err := e.store.Lobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if lobby.Status != models.StatusLoading {
		e.log.WithFields(logrus.Fields{"lobby": lobbyID, "status": lobby.Status}).Debug("stale track batch, ignoring")
		return nil
	}

	if len(tracks) == 0 {
		e.log.WithField("lobby", lobbyID).Warn("no playable tracks generated, returning lobby to waiting")
		if err := e.store.ResetReady(ctx, lobbyID); err != nil {
			return err
		}
		return e.store.SetLobbyState(ctx, lobbyID, models.StatusWaiting, nil, nil)
	}

	if err := e.store.InsertTracks(ctx, tracks); err != nil {
		return fmt.Errorf("insert tracks: %w", err)
	}

	first := tracks[0]
	if err := e.store.SetLobbyState(ctx, lobbyID, models.StatusPaused, &first.ID, nil); err != nil {
		return err
	}
	_, err = e.sched.Schedule(ctx, e.cfg.TimeBetweenRounds, TransitionStartRound, TaskPayload{LobbyID: lobbyID, TrackID: first.ID})
	if err != nil {
		return fmt.Errorf("arm first round start: %w", err)
	}
	e.log.WithFields(logrus.Fields{"lobby": lobbyID, "tracks": len(tracks)}).Info("playlist ready, first round armed")
	return nil
}

// StartRound moves the lobby from paused to playing for the given track and
// arms the round-end timer. Fired by the scheduler. Firing it twice, or after
// the lobby moved on, is a safe no-op.
func (e *Engine) StartRound(ctx context.Context, lobbyID, trackID uuid.UUID) error {
	lock := e.lobbyLock(lobbyID)
	lock.Lock()
	defer lock.Unlock()

	lobby, err := e.store.Lobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if lobby.Status != models.StatusPaused || lobby.CurrentTrackID == nil || *lobby.CurrentTrackID != trackID {
		e.log.WithFields(logrus.Fields{"lobby": lobbyID, "track": trackID, "status": lobby.Status}).Debug("stale round start, ignoring")
		return nil
	}

	if _, err := e.store.Track(ctx, trackID); err != nil {
		return fmt.Errorf("start round: %w", err)
	}

	startedAt := e.now()
	if err := e.store.SetLobbyState(ctx, lobbyID, models.StatusPlaying, &trackID, &startedAt); err != nil {
		return err
	}
	// Ready flags are only meaningful pre-round; clear them as the round
	// starts so the next waiting phase begins clean.
	if err := e.store.ResetReady(ctx, lobbyID); err != nil {
		return err
	}

	_, err = e.sched.Schedule(ctx, e.cfg.PreviewDuration, TransitionEndRound, TaskPayload{LobbyID: lobbyID, TrackID: trackID})
	if err != nil {
		return fmt.Errorf("arm round end: %w", err)
	}
	e.log.WithFields(logrus.Fields{"lobby": lobbyID, "track": trackID}).Info("round started")
	return nil
}

// EndRound pauses the lobby after a preview finishes, then arms either the
// next round's start or the game end, depending on whether a successor track
// exists. Fired by the scheduler.
func (e *Engine) EndRound(ctx context.Context, lobbyID, trackID uuid.UUID) error {
	lock := e.lobbyLock(lobbyID)
	lock.Lock()
	defer lock.Unlock()

	lobby, err := e.store.Lobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if lobby.Status != models.StatusPlaying || lobby.CurrentTrackID == nil || *lobby.CurrentTrackID != trackID {
		e.log.WithFields(logrus.Fields{"lobby": lobbyID, "track": trackID, "status": lobby.Status}).Debug("stale round end, ignoring")
		return nil
	}

	current, err := e.store.Track(ctx, trackID)
	if err != nil {
		return fmt.Errorf("end round: %w", err)
	}

	next, err := e.store.TrackByOrder(ctx, lobbyID, current.Order+1)
	if err != nil {
		return err
	}

	// Pause first even when the game is about to end, so clients stop audio
	// immediately.
	if next == nil {
		if err := e.store.SetLobbyState(ctx, lobbyID, models.StatusPaused, nil, nil); err != nil {
			return err
		}
		_, err = e.sched.Schedule(ctx, e.cfg.TimeBetweenRounds, TransitionEndGame, TaskPayload{LobbyID: lobbyID})
		if err != nil {
			return fmt.Errorf("arm game end: %w", err)
		}
		e.log.WithField("lobby", lobbyID).Info("last round ended, game end armed")
		return nil
	}

	if err := e.store.SetLobbyState(ctx, lobbyID, models.StatusPaused, &next.ID, nil); err != nil {
		return err
	}
	_, err = e.sched.Schedule(ctx, e.cfg.TimeBetweenRounds, TransitionStartRound, TaskPayload{LobbyID: lobbyID, TrackID: next.ID})
	if err != nil {
		return fmt.Errorf("arm next round: %w", err)
	}
	e.log.WithFields(logrus.Fields{"lobby": lobbyID, "next": next.ID}).Info("round ended, next round armed")
	return nil
}

// EndGame marks the lobby finished. Terminal: no further transitions are
// armed. Fired by the scheduler.
func (e *Engine) EndGame(ctx context.Context, lobbyID uuid.UUID) error {
	lock := e.lobbyLock(lobbyID)
	lock.Lock()
	defer lock.Unlock()

	lobby, err := e.store.Lobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if lobby.Status == models.StatusFinished {
		return nil
	}
	if err := e.store.SetLobbyState(ctx, lobbyID, models.StatusFinished, nil, nil); err != nil {
		return err
	}
	e.log.WithField("lobby", lobbyID).Info("game finished")
	return nil
}

// HandleTransition is the scheduler's re-entry point. A failed transition
// fails into the log; the staleness checks in the individual handlers are the
// safety net for duplicates and late fires.
func (e *Engine) HandleTransition(ctx context.Context, transition Transition, payload TaskPayload) {
	var err error
	switch transition {
	case TransitionStartRound:
		err = e.StartRound(ctx, payload.LobbyID, payload.TrackID)
	case TransitionEndRound:
		err = e.EndRound(ctx, payload.LobbyID, payload.TrackID)
	case TransitionEndGame:
		err = e.EndGame(ctx, payload.LobbyID)
	case TransitionPresenceTimeout:
		err = e.handlePresenceTimeout(ctx, payload.PlayerID)
	default:
		e.log.WithField("transition", transition).Warn("unknown scheduled transition")
		return
	}
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"transition": transition,
			"lobby":      payload.LobbyID,
		}).Error("scheduled transition failed")
	}
}
