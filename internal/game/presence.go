// internal/game/presence.go
package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sixelasacul/friend-blind-test/internal/models"
)

// Presence is heartbeat-driven. A heartbeat marks the player online and
// re-arms their offline timeout; the timeout firing is the authoritative
// offline signal. A client disconnect marks offline immediately when it is
// delivered, but delivery is not guaranteed, which is why the timeout exists.

// Heartbeat marks the player online, cancels any outstanding offline timeout
// and arms a fresh one.
func (e *Engine) Heartbeat(ctx context.Context, playerID uuid.UUID) error {
	player, err := e.store.Player(ctx, playerID)
	if err != nil {
		return err
	}

	lock := e.lobbyLock(player.LobbyID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent heartbeat may have swapped the
	// timeout handle between the lookup and the lock.
	player, err = e.store.Player(ctx, playerID)
	if err != nil {
		return err
	}
	if player.TimeoutHandle != "" {
		if err := e.sched.Cancel(ctx, player.TimeoutHandle); err != nil {
			e.log.WithError(err).WithField("player", playerID).Warn("failed to cancel presence timeout")
		}
	}
	return e.armPresenceTimeout(ctx, player)
}

// armPresenceTimeout schedules the offline fallback and records its handle on
// the player. Caller must hold the lobby lock.
func (e *Engine) armPresenceTimeout(ctx context.Context, player *models.Player) error {
	handle, err := e.sched.Schedule(ctx, e.cfg.PresenceTimeout, TransitionPresenceTimeout, TaskPayload{PlayerID: player.ID})
	if err != nil {
		return err
	}
	return e.store.SetPlayerPresence(ctx, player.ID, true, handle)
}

// Disconnect marks the player offline right away, without waiting for the
// timeout to fire. Safe to call for players that no longer exist.
func (e *Engine) Disconnect(ctx context.Context, playerID uuid.UUID) error {
	player, err := e.store.Player(ctx, playerID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	lock := e.lobbyLock(player.LobbyID)
	lock.Lock()
	defer lock.Unlock()

	player, err = e.store.Player(ctx, playerID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	if player.TimeoutHandle != "" {
		if err := e.sched.Cancel(ctx, player.TimeoutHandle); err != nil {
			e.log.WithError(err).WithField("player", playerID).Warn("failed to cancel presence timeout")
		}
	}
	return e.markOffline(ctx, player)
}

// handlePresenceTimeout is the scheduler-fired offline fallback. The player
// may already be gone (deleted as offline during round preparation); that is
// not an error.
func (e *Engine) handlePresenceTimeout(ctx context.Context, playerID uuid.UUID) error {
	player, err := e.store.Player(ctx, playerID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	lock := e.lobbyLock(player.LobbyID)
	lock.Lock()
	defer lock.Unlock()

	return e.markOffline(ctx, player)
}

// markOffline flips the player offline and re-checks the readiness gate: an
// offline departure can unblock a lobby that was waiting on the only
// non-ready player. Caller must hold the lobby lock.
func (e *Engine) markOffline(ctx context.Context, player *models.Player) error {
	if err := e.store.SetPlayerPresence(ctx, player.ID, false, ""); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{"player": player.ID, "lobby": player.LobbyID}).Info("player offline")

	lobby, err := e.store.Lobby(ctx, player.LobbyID)
	if err != nil {
		return err
	}
	return e.maybePrepareRounds(ctx, lobby)
}
