package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/yourorg/mfl-sync/internal/model"
)

// FetchPlayer retrieves a single player.
func (c *Client) FetchPlayer(ctx context.Context, playerID int64) (*model.Player, error) {
	var resp struct {
		Player model.Player `json:"player"`
	}
	if err := c.getJSON(ctx, "players", fmt.Sprintf("/players/%d", playerID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Player, nil
}

// FetchOwnerPlayers retrieves up to limit players owned by wallet.
func (c *Client) FetchOwnerPlayers(ctx context.Context, wallet string, limit int) ([]model.Player, error) {
	query := url.Values{}
	query.Set("ownerWalletAddress", wallet)
	query.Set("limit", strconv.Itoa(limit))

	var players []model.Player
	if err := c.getJSON(ctx, "players", "/players", query, &players); err != nil {
		return nil, err
	}
	return players, nil
}

// FetchSaleHistory retrieves the most recent sales of a player.
func (c *Client) FetchSaleHistory(ctx context.Context, playerID int64, limit int) ([]model.SaleEntry, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("playerId", strconv.FormatInt(playerID, 10))

	var feed []wireSale
	if err := c.getJSON(ctx, "listings/feed", "/listings/feed", query, &feed); err != nil {
		return nil, err
	}
	sales := make([]model.SaleEntry, 0, len(feed))
	for _, s := range feed {
		sales = append(sales, model.SaleEntry{Price: s.Price, PurchaseDate: millis(s.PurchaseDateTime)})
	}
	return sales, nil
}

// FetchExperienceHistory retrieves the player's overall progression over time.
func (c *Client) FetchExperienceHistory(ctx context.Context, playerID int64) ([]model.ProgressionPoint, error) {
	var history []wireExperience
	path := fmt.Sprintf("/players/%d/experiences/history", playerID)
	if err := c.getJSON(ctx, "experiences", path, nil, &history); err != nil {
		return nil, err
	}
	return toProgression(history), nil
}

// FetchPlayerMatches returns how many recent matches the player appeared in.
// Both a bare array and a {"data": [...]} envelope are accepted.
func (c *Client) FetchPlayerMatches(ctx context.Context, playerID int64, limit int) (int, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var raw json.RawMessage
	path := fmt.Sprintf("/players/%d/matches/stats", playerID)
	if err := c.getJSON(ctx, "player matches", path, query, &raw); err != nil {
		return 0, err
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return len(list), nil
	}
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return 0, c.fail("player matches", 200, fmt.Errorf("error decoding response: %w", err))
	}
	return len(envelope.Data), nil
}
