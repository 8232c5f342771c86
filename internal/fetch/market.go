package fetch

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/yourorg/mfl-sync/internal/model"
)

// FetchMarketComparables retrieves available player listings matching search,
// cheapest first.
func (c *Client) FetchMarketComparables(ctx context.Context, search model.ComparableSearch) ([]model.MarketListing, error) {
	positions := make([]string, len(search.Positions))
	for i, p := range search.Positions {
		positions[i] = string(p)
	}
	limit := search.Limit
	if limit <= 0 {
		limit = 50
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("type", "PLAYER")
	query.Set("status", "AVAILABLE")
	query.Set("view", "full")
	query.Set("sorts", "listing.price")
	query.Set("sortsOrders", "ASC")
	query.Set("ageMin", strconv.Itoa(search.AgeMin))
	query.Set("ageMax", strconv.Itoa(search.AgeMax))
	query.Set("overallMin", strconv.Itoa(search.OverallMin))
	query.Set("overallMax", strconv.Itoa(search.OverallMax))
	query.Set("positions", strings.Join(positions, ","))
	query.Set("onlyPrimaryPosition", "false")

	var listings []model.MarketListing
	if err := c.getJSON(ctx, "listings", "/listings", query, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}
