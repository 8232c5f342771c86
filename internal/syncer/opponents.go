package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/model"
	"github.com/yourorg/mfl-sync/internal/store"
)

const (
	opponentMatchLimit  = 7
	opponentsPerClub    = 7
	opponentHorizon     = 24 * time.Hour
	opponentReuseWindow = 12 * time.Hour
)

// upcomingOpponents collects the squads the wallet's clubs face within the
// next day, at most opponentsPerClub per club, in first-seen order.
func upcomingOpponents(clubs []model.ClubData, upcoming map[int64][]model.Match, now time.Time) []int64 {
	seen := make(map[int64]bool)
	var squads []int64
	for _, c := range clubs {
		count := 0
		for _, m := range upcoming[c.Club.ID] {
			if count >= opponentsPerClub {
				break
			}
			if m.StartDate.Before(now) || m.StartDate.After(now.Add(opponentHorizon)) {
				continue
			}
			squad := m.OpponentOf(c.Club.Name)
			if squad == 0 || seen[squad] {
				continue
			}
			seen[squad] = true
			squads = append(squads, squad)
			count++
		}
	}
	return squads
}

// syncOpponents refreshes the recent matches and formations of every upcoming
// opponent, reporting progress under cat. Records younger than twelve hours are
// reused and only freshly fetched opponents are written.
func (o *Orchestrator) syncOpponents(cat model.Category) func(ctx context.Context, s *session) (string, error) {
	return func(ctx context.Context, s *session) (string, error) {
		return o.refreshOpponents(ctx, s, cat)
	}
}

func (o *Orchestrator) refreshOpponents(ctx context.Context, s *session, cat model.Category) (string, error) {
	clubs, err := o.deps.API.FetchClubs(ctx, s.wallet)
	if err != nil {
		return "", fmt.Errorf("fetch clubs: %w", err)
	}
	if len(clubs) == 0 {
		return "No clubs found for user", nil
	}

	upcoming := make(map[int64][]model.Match, len(clubs))
	for _, c := range clubs {
		matches, err := o.deps.API.FetchUpcomingMatches(ctx, c.Club.ID)
		if err != nil {
			return "", fmt.Errorf("fetch upcoming matches of club %d: %w", c.Club.ID, err)
		}
		upcoming[c.Club.ID] = matches
	}

	now := o.deps.Clock()
	squads := upcomingOpponents(clubs, upcoming, now)
	if len(squads) == 0 {
		return "No upcoming opponents with matches in next 24 hours", nil
	}

	var fresh []model.OpponentMatchesRecord
	reused, failed := 0, 0
	for i, squad := range squads {
		if err := ctx.Err(); err != nil {
			return "", apperr.Cancelled("Opponent sync", err)
		}

		existing, err := o.deps.Store.GetOpponentMatches(ctx, squad, opponentMatchLimit)
		if err == nil && now.Sub(existing.LastSynced) < opponentReuseWindow {
			reused++
			continue
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.WithError(err).WithField("squad_id", squad).Warn("Could not read stored opponent matches")
		}

		rec, ok, err := o.fetchOpponent(ctx, s, squad)
		if err != nil {
			return "", err
		}
		pause := o.cfg.opponentPause
		if ok {
			fresh = append(fresh, rec)
		} else {
			failed++
			pause = o.cfg.opponentErrorPause
		}

		o.report(ctx, s, cat, (i+1)*90/len(squads), fmt.Sprintf("Fetched opponent %d of %d", i+1, len(squads)))
		if i < len(squads)-1 {
			if err := sleep(ctx, pause); err != nil {
				return "", apperr.Cancelled("Opponent sync", err)
			}
		}
	}

	if err := o.deps.Store.UpsertOpponentMatches(ctx, fresh); err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Synced %d opponents, %d reused", len(fresh), reused)
	if failed > 0 {
		msg += fmt.Sprintf(", %d unavailable", failed)
	}
	return msg, nil
}

// fetchOpponent loads the recent matches of squad and the formation it used in
// each. A slow or failing upstream marks the opponent unavailable instead of
// failing the category; only session cancellation is returned as an error.
func (o *Orchestrator) fetchOpponent(ctx context.Context, s *session, squad int64) (model.OpponentMatchesRecord, bool, error) {
	log := s.log.WithField("squad_id", squad)

	mctx, cancel := context.WithTimeout(ctx, o.cfg.opponentTimeout)
	matches, err := o.deps.API.FetchOpponentPastMatches(mctx, squad, opponentMatchLimit)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return model.OpponentMatchesRecord{}, false, apperr.Cancelled("Opponent sync", ctx.Err())
		}
		log.WithError(err).Warn("Opponent matches unavailable")
		return model.OpponentMatchesRecord{}, false, nil
	}

	formations := make([]string, 0, len(matches))
	for _, m := range matches {
		fctx, cancel := context.WithTimeout(ctx, o.cfg.formationTimeout)
		f, err := o.deps.API.FetchMatchFormation(fctx, m.ID)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return model.OpponentMatchesRecord{}, false, apperr.Cancelled("Opponent sync", ctx.Err())
			}
			log.WithError(err).WithField("match_id", m.ID).Debug("Formation unavailable")
			formations = append(formations, "")
			continue
		}
		if f == nil {
			formations = append(formations, "")
			continue
		}
		formations = append(formations, f.For(squad))
	}

	return model.OpponentMatchesRecord{
		OpponentSquadID: squad,
		MatchLimit:      opponentMatchLimit,
		Matches:         matches,
		Formations:      formations,
		LastSynced:      o.deps.Clock(),
	}, true, nil
}
