package fetch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/yourorg/mfl-sync/internal/model"
)

// FetchClubs retrieves the clubs owned by wallet.
func (c *Client) FetchClubs(ctx context.Context, wallet string) ([]model.ClubData, error) {
	query := url.Values{}
	query.Set("walletAddress", wallet)

	var clubs []model.ClubData
	if err := c.getJSON(ctx, "clubs", "/clubs", query, &clubs); err != nil {
		return nil, err
	}
	return clubs, nil
}

// squadFor resolves and memoizes the squad ID of a club.
func (c *Client) squadFor(ctx context.Context, clubID int64) (int64, error) {
	c.squadMu.Lock()
	squadID, ok := c.squadIDs[clubID]
	c.squadMu.Unlock()
	if ok {
		return squadID, nil
	}

	var details wireClubDetails
	if err := c.getJSON(ctx, "clubs", fmt.Sprintf("/clubs/%d", clubID), nil, &details); err != nil {
		return 0, err
	}
	squadID = details.squadID(clubID)

	c.squadMu.Lock()
	c.squadIDs[clubID] = squadID
	c.squadMu.Unlock()
	return squadID, nil
}
