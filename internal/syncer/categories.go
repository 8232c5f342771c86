package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yourorg/mfl-sync/internal/model"
	"github.com/yourorg/mfl-sync/internal/store"
	"github.com/yourorg/mfl-sync/internal/validation"
)

func (o *Orchestrator) userLastSynced(ctx context.Context, s *session) (*time.Time, error) {
	user, err := o.deps.Store.GetUser(ctx, s.wallet)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user.LastSynced, nil
}

func (o *Orchestrator) statusLastSynced(cat model.Category) func(ctx context.Context, s *session) (*time.Time, error) {
	return func(ctx context.Context, s *session) (*time.Time, error) {
		rec, err := o.deps.Store.GetSyncStatus(ctx, cat, s.wallet)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return rec.LastSyncedAt, nil
	}
}

func (o *Orchestrator) agencyLastSynced(ctx context.Context, s *session) (*time.Time, error) {
	return o.deps.Store.LatestAgencySync(ctx, s.wallet)
}

func (o *Orchestrator) opponentLastSynced(ctx context.Context, _ *session) (*time.Time, error) {
	return o.deps.Store.LatestOpponentSync(ctx)
}

// syncUserInfo derives the wallet profile from its clubs.
func (o *Orchestrator) syncUserInfo(ctx context.Context, s *session) (string, error) {
	clubs, err := o.deps.API.FetchClubs(ctx, s.wallet)
	if err != nil {
		return "", fmt.Errorf("fetch clubs: %w", err)
	}

	names := make([]string, 0, len(clubs))
	for _, c := range clubs {
		names = append(names, c.Club.Name)
	}
	username := commonPrefix(names)
	user := model.User{WalletAddress: s.wallet, Username: username, DisplayName: username}

	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("encode user: %w", err)
	}
	if err := o.deps.Store.UpsertUser(ctx, model.UserRecord{
		WalletAddress: s.wallet,
		Data:          data,
		LastSynced:    o.deps.Clock(),
	}); err != nil {
		return "", err
	}
	return "User info synced", nil
}

// commonPrefix returns the longest prefix shared by all names, trimmed.
func commonPrefix(names []string) string {
	if len(names) == 0 {
		return ""
	}
	prefix := names[0]
	for _, name := range names[1:] {
		for !strings.HasPrefix(name, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
		if prefix == "" {
			break
		}
	}
	return strings.TrimSpace(prefix)
}

func (o *Orchestrator) syncClubs(ctx context.Context, s *session) (string, error) {
	clubs, err := o.deps.API.FetchClubs(ctx, s.wallet)
	if err != nil {
		return "", fmt.Errorf("fetch clubs: %w", err)
	}
	if len(clubs) == 0 {
		return "No clubs found for user", nil
	}

	now := o.deps.Clock()
	recs := make([]model.ClubRecord, len(clubs))
	for i, c := range clubs {
		recs[i] = model.ClubRecord{ClubID: c.Club.ID, Data: c, LastSynced: now}
	}
	if err := o.deps.Store.UpsertClubs(ctx, recs); err != nil {
		return "", err
	}
	return fmt.Sprintf("Synced %d clubs", len(recs)), nil
}

func (o *Orchestrator) syncAgencyPlayers(ctx context.Context, s *session) (string, error) {
	players, err := o.deps.API.FetchOwnerPlayers(ctx, s.wallet, validation.MaxPlayerCap)
	if err != nil {
		return "", fmt.Errorf("fetch owner players: %w", err)
	}
	if len(players) == 0 {
		return "No agency players found", nil
	}

	now := o.deps.Clock()
	playerRecs := make([]model.PlayerRecord, len(players))
	agencyRecs := make([]model.AgencyPlayerRecord, len(players))
	for i, p := range players {
		playerRecs[i] = model.PlayerRecord{PlayerID: p.ID, Player: p, LastSynced: now}
		agencyRecs[i] = model.AgencyPlayerRecord{WalletAddress: s.wallet, PlayerID: p.ID, LastSynced: now}
	}
	if err := o.deps.Store.UpsertPlayers(ctx, playerRecs); err != nil {
		return "", err
	}
	if err := o.deps.Store.UpsertAgencyPlayers(ctx, agencyRecs); err != nil {
		return "", err
	}
	return fmt.Sprintf("Synced %d agency players", len(players)), nil
}

func (o *Orchestrator) syncMatches(ctx context.Context, s *session) (string, error) {
	clubs, err := o.deps.API.FetchClubs(ctx, s.wallet)
	if err != nil {
		return "", fmt.Errorf("fetch clubs: %w", err)
	}
	if len(clubs) == 0 {
		return "No clubs found for user", nil
	}

	now := o.deps.Clock()
	var recs []model.MatchRecord
	for i, c := range clubs {
		upcoming, err := o.deps.API.FetchUpcomingMatches(ctx, c.Club.ID)
		if err != nil {
			return "", fmt.Errorf("fetch upcoming matches of club %d: %w", c.Club.ID, err)
		}
		past, err := o.deps.API.FetchPastMatches(ctx, c.Club.ID)
		if err != nil {
			return "", fmt.Errorf("fetch past matches of club %d: %w", c.Club.ID, err)
		}
		for _, m := range upcoming {
			recs = append(recs, model.MatchRecord{
				MatchID: m.ID, MatchType: model.MatchUpcoming, WalletAddress: s.wallet,
				ClubID: c.Club.ID, Data: m, LastSynced: now,
			})
		}
		for _, m := range past {
			recs = append(recs, model.MatchRecord{
				MatchID: m.ID, MatchType: model.MatchPrevious, WalletAddress: s.wallet,
				ClubID: c.Club.ID, Data: m, LastSynced: now,
			})
		}
		o.report(ctx, s, model.CategoryMatches, (i+1)*90/len(clubs), fmt.Sprintf("Fetched matches for %d of %d clubs", i+1, len(clubs)))
	}

	if err := o.deps.Store.UpsertMatches(ctx, recs); err != nil {
		return "", err
	}
	return fmt.Sprintf("Synced %d matches for %d clubs", len(recs), len(clubs)), nil
}

// SyncPlayer returns a single player, refetching it when the stored copy is
// older than the player_data cache duration or force is set.
func (o *Orchestrator) SyncPlayer(ctx context.Context, playerID int64, force bool) (*model.Player, error) {
	rec, err := o.deps.Store.GetPlayer(ctx, playerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	var last *time.Time
	if rec != nil {
		last = &rec.LastSynced
	}
	if !o.deps.Gate.NeedsSync(model.CategoryPlayerData, last, force) {
		return &rec.Player, nil
	}

	player, err := o.deps.API.FetchPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("fetch player %d: %w", playerID, err)
	}
	if err := o.deps.Store.UpsertPlayers(ctx, []model.PlayerRecord{
		{PlayerID: player.ID, Player: *player, LastSynced: o.deps.Clock()},
	}); err != nil {
		return nil, err
	}
	return player, nil
}
