package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/circuitbreaker"
	"github.com/yourorg/mfl-sync/internal/model"
	"github.com/yourorg/mfl-sync/internal/rating"
	"github.com/yourorg/mfl-sync/internal/store"
	"github.com/yourorg/mfl-sync/internal/validation"
	"github.com/yourorg/mfl-sync/internal/valuation"
)

const (
	marketValueWindow = 7 * 24 * time.Hour
	historyLimit      = 25
)

// rankPlayers orders players by overall, best first. Equal ratings keep their
// input order.
func rankPlayers(players []model.AgencyPlayer, limit int) []model.AgencyPlayer {
	ranked := make([]model.AgencyPlayer, len(players))
	copy(ranked, players)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Player.Metadata.Overall > ranked[j].Player.Metadata.Overall
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// syncMarketValues prices the wallet's roster. A player whose stored value is
// younger than seven days and belongs to this wallet is skipped, whatever the
// session's force flag says.
func (o *Orchestrator) syncMarketValues(ctx context.Context, s *session) (string, error) {
	roster, err := o.deps.Store.ListAgencyPlayers(ctx, s.wallet)
	if err != nil {
		return "", fmt.Errorf("list agency players: %w", err)
	}
	roster = validation.FilterRosterConcurrently(roster, validation.DefaultRosterOptions())
	if len(roster) == 0 {
		return "No agency players found", nil
	}
	players := rankPlayers(roster, s.opts.PlayerCap)

	ratings := make(map[int64]map[model.Position]model.PositionRating, len(players))
	for i, p := range players {
		results, err := o.deps.Calculator.CalculateAllPositionOVRs(p.Player.Metadata)
		if err != nil {
			s.log.WithError(err).WithField("player_id", p.PlayerID).Warn("Skipping player with invalid attributes")
			continue
		}
		ratings[p.PlayerID] = rating.Ratings(results)
		o.report(ctx, s, model.CategoryMarketValues, 20+(i+1)*30/len(players),
			fmt.Sprintf("Calculated position ratings for %d of %d players", i+1, len(players)))
	}

	// The cutoff counts every failed comparables fetch of the session.
	breaker := circuitbreaker.New("market_data", o.cfg.marketDataFailures).
		WithCumulativeFailures().
		WithTripCallback(func(name string, failures int) {
			o.deps.Metrics.BreakerTripped()
			s.log.WithField("failures", failures).Warn("Market data unavailable, using fallback valuation for remaining players")
		})

	processed := 0
	for i, p := range players {
		if err := ctx.Err(); err != nil {
			return "", apperr.Cancelled("Market value sync", err)
		}
		positionRatings, ok := ratings[p.PlayerID]
		if !ok {
			continue
		}
		log := s.log.WithField("player_id", p.PlayerID)

		if o.valueIsFresh(ctx, s.wallet, p.PlayerID, log) {
			processed++
			continue
		}

		est, cached := o.deps.Cache.Get(p.PlayerID)
		if !cached {
			est, err = o.estimate(ctx, s, breaker, *p.Player, positionRatings, log)
			if err != nil {
				return "", err
			}
			o.deps.Cache.Set(p.PlayerID, est)
		}

		meta := p.Player.Metadata
		err := o.deps.Store.UpsertMarketValue(ctx, model.MarketValueRecord{
			PlayerID:        p.PlayerID,
			WalletAddress:   s.wallet,
			MarketValue:     est.Value,
			OverallRating:   meta.Overall,
			Positions:       meta.Positions,
			PositionRatings: positionRatings,
			Method:          est.Method,
			Confidence:      est.Confidence,
			LastCalculated:  o.deps.Clock(),
		})
		if err != nil {
			if apperr.IsCancellation(err) {
				return "", apperr.Cancelled("Market value sync", err)
			}
			log.WithError(err).Warn("Failed to store market value")
			continue
		}
		o.deps.Metrics.MarketValue(est.Method)
		processed++

		o.report(ctx, s, model.CategoryMarketValues, 50+(i+1)*45/len(players),
			fmt.Sprintf("Calculated market values for %d of %d players", i+1, len(players)))
	}

	return fmt.Sprintf("Market values calculated and stored for %d players", processed), nil
}

// valueIsFresh reports whether the stored market value of playerID can be kept.
func (o *Orchestrator) valueIsFresh(ctx context.Context, wallet string, playerID int64, log *logrus.Entry) bool {
	existing, err := o.deps.Store.GetMarketValue(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	if err != nil {
		log.WithError(err).Warn("Could not read stored market value, recalculating")
		return false
	}
	if existing.WalletAddress != wallet {
		return false
	}
	window := marketValueWindow
	if d, ok := o.deps.Gate.Duration(model.CategoryMarketValues); ok && d > 0 {
		window = d
	}
	return o.deps.Clock().Sub(existing.LastCalculated) < window
}

// estimate prices one player. Market-data problems degrade to the fallback
// formula; only cancellation is returned as an error.
func (o *Orchestrator) estimate(ctx context.Context, s *session, breaker *circuitbreaker.CircuitBreaker, player model.Player, positionRatings map[model.Position]model.PositionRating, log *logrus.Entry) (valuation.Estimate, error) {
	in := valuation.Input{
		PlayerID:        player.ID,
		Metadata:        player.Metadata,
		PositionRatings: positionRatings,
		RetirementYears: player.Metadata.RetirementYears,
	}

	comparables, err := o.fetchComparables(ctx, breaker, player.Metadata, log)
	if err != nil {
		return valuation.Estimate{}, err
	}
	in.Comparables = comparables

	if len(comparables) > 0 {
		if sales, err := o.deps.API.FetchSaleHistory(ctx, player.ID, historyLimit); err == nil {
			in.Sales = sales
		} else if ctx.Err() != nil {
			return valuation.Estimate{}, apperr.Cancelled("Market value sync", ctx.Err())
		} else {
			log.WithError(err).Debug("Sale history unavailable")
		}

		if progression, err := o.deps.API.FetchExperienceHistory(ctx, player.ID); err == nil {
			in.Progression = progression
		} else if ctx.Err() != nil {
			return valuation.Estimate{}, apperr.Cancelled("Market value sync", ctx.Err())
		} else {
			log.WithError(err).Debug("Progression unavailable")
		}

		if count, err := o.deps.API.FetchPlayerMatches(ctx, player.ID, historyLimit); err == nil {
			in.MatchCount = &count
		} else if ctx.Err() != nil {
			return valuation.Estimate{}, apperr.Cancelled("Market value sync", ctx.Err())
		} else {
			log.WithError(err).Debug("Match history unavailable")
		}
	}

	est := o.deps.Estimator.Estimate(in)
	log.WithFields(logrus.Fields{
		"value":      est.Value,
		"method":     est.Method,
		"confidence": est.Confidence,
	}).Debug("Market value estimated")
	return est, nil
}

// fetchComparables asks the market for comparable listings within the
// market-data budget. It returns no listings when the breaker is open, the
// window stays full for longer than the configured wait, or the call fails.
func (o *Orchestrator) fetchComparables(ctx context.Context, breaker *circuitbreaker.CircuitBreaker, meta model.PlayerMetadata, log *logrus.Entry) ([]model.MarketListing, error) {
	if err := breaker.Check(); err != nil {
		log.WithError(err).Debug("Skipping market data")
		return nil, nil
	}

	if !o.deps.Limiter.TryAcquire() {
		o.deps.Metrics.RateLimited()
		wait := o.deps.Limiter.TimeUntilReset()
		if wait > o.cfg.marketDataMaxWait {
			log.WithField("wait", wait).Info("Market data rate limited, using fallback valuation")
			return nil, nil
		}
		log.WithField("wait", wait).Debug("Waiting for market data window")
		if err := sleep(ctx, wait); err != nil {
			return nil, apperr.Cancelled("Market value sync", err)
		}
		if !o.deps.Limiter.TryAcquire() {
			return nil, nil
		}
	}

	listings, err := o.deps.API.FetchMarketComparables(ctx, model.NewComparableSearch(meta))
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Cancelled("Market value sync", ctx.Err())
		}
		breaker.RecordFailure()
		log.WithError(err).Warn("Market data fetch failed, using fallback valuation")
		return nil, nil
	}
	breaker.RecordSuccess()
	return listings, nil
}
