package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/yourorg/mfl-sync/internal/model"
)

// Match query limits.
const (
	upcomingLimit = 30
	pastLimit     = 15
)

// FetchUpcomingMatches retrieves live and upcoming matches of a club.
func (c *Client) FetchUpcomingMatches(ctx context.Context, clubID int64) ([]model.Match, error) {
	squadID, err := c.squadFor(ctx, clubID)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("squadId", strconv.FormatInt(squadID, 10))
	query.Set("upcoming", "true")
	query.Set("live", "true")
	query.Set("limit", strconv.Itoa(upcomingLimit))
	return c.matches(ctx, query)
}

// FetchPastMatches retrieves recent competition matches of a club.
func (c *Client) FetchPastMatches(ctx context.Context, clubID int64) ([]model.Match, error) {
	squadID, err := c.squadFor(ctx, clubID)
	if err != nil {
		return nil, err
	}
	return c.FetchOpponentPastMatches(ctx, squadID, pastLimit)
}

// FetchOpponentPastMatches retrieves recent competition matches of a squad.
func (c *Client) FetchOpponentPastMatches(ctx context.Context, squadID int64, limit int) ([]model.Match, error) {
	query := url.Values{}
	query.Set("squadId", strconv.FormatInt(squadID, 10))
	query.Set("past", "true")
	query.Set("onlyCompetitions", "true")
	query.Set("limit", strconv.Itoa(limit))
	return c.matches(ctx, query)
}

// FetchMatchFormation retrieves the formations both squads used in a match.
func (c *Client) FetchMatchFormation(ctx context.Context, matchID int64) (*model.MatchFormations, error) {
	query := url.Values{}
	query.Set("withFormations", "true")

	var details wireMatchDetails
	if err := c.getJSON(ctx, "match", fmt.Sprintf("/matches/%d", matchID), query, &details); err != nil {
		return nil, err
	}
	if details.ID == 0 {
		details.ID = matchID
	}
	return details.toModel(), nil
}

func (c *Client) matches(ctx context.Context, query url.Values) ([]model.Match, error) {
	var wire []wireMatch
	if err := c.getJSON(ctx, "matches", "/matches", query, &wire); err != nil {
		return nil, err
	}
	return toMatches(wire), nil
}
