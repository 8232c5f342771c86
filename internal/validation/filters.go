// Package validation provides input validation for wallets, sync options and
// player rosters.
package validation

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/model"
)

// Accepted wallet address lengths in bytes.
const (
	flowAddressLength = 8
	evmAddressLength  = common.AddressLength
)

// MaxPlayerCap bounds the number of players considered for market valuation.
const MaxPlayerCap = 1200

// NormalizeWallet validates a wallet address and returns it lower-cased. Both
// 8-byte Flow addresses and 20-byte EVM addresses are accepted.
func NormalizeWallet(wallet string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(wallet))
	if trimmed == "" {
		return "", &apperr.ValidationError{Field: "wallet", Reason: "must not be empty"}
	}
	if common.IsHexAddress(trimmed) && strings.HasPrefix(trimmed, "0x") {
		return trimmed, nil
	}

	raw, err := hexutil.Decode(trimmed)
	if err != nil {
		return "", &apperr.ValidationError{Field: "wallet", Value: wallet, Reason: err.Error()}
	}
	if len(raw) != flowAddressLength && len(raw) != evmAddressLength {
		return "", &apperr.ValidationError{Field: "wallet", Value: wallet, Reason: "must be an 8 or 20 byte hex address"}
	}
	return trimmed, nil
}

// ValidateSyncOptions checks the wallet and the optional player cap of a sync
// request. A nil cap means no limit.
func ValidateSyncOptions(wallet string, playerCap *int) (string, error) {
	normalized, err := NormalizeWallet(wallet)
	if err != nil {
		return "", err
	}
	if playerCap != nil && (*playerCap < 1 || *playerCap > MaxPlayerCap) {
		return "", &apperr.ValidationError{Field: "playerCap", Value: *playerCap, Reason: "must be between 1 and 1200"}
	}
	return normalized, nil
}

// ValidateAttributes checks every attribute lies within [0,99].
func ValidateAttributes(a model.Attributes) error {
	fields := []struct {
		name  string
		value int
	}{
		{"pace", a.Pace},
		{"shooting", a.Shooting},
		{"passing", a.Passing},
		{"dribbling", a.Dribbling},
		{"defense", a.Defense},
		{"physical", a.Physical},
		{"goalkeeping", a.Goalkeeping},
	}
	for _, f := range fields {
		if f.value < 0 || f.value > 99 {
			return &apperr.ValidationError{Field: f.name, Value: f.value, Reason: "must be between 0 and 99"}
		}
	}
	return nil
}

// ValidatePositions checks positions is non-empty and contains only known positions.
func ValidatePositions(positions []model.Position) error {
	if len(positions) == 0 {
		return &apperr.ValidationError{Field: "positions", Reason: "must not be empty"}
	}
	for _, p := range positions {
		if !p.Valid() {
			return &apperr.ValidationError{Field: "position", Value: string(p), Reason: "unknown position"}
		}
	}
	return nil
}

// RosterOptions holds configuration for roster filtering
type RosterOptions struct {
	// MinOverall drops players rated below this value
	MinOverall int

	// RequirePositions drops players without positions
	RequirePositions bool

	// RequireValidAttributes drops players with attributes outside [0,99]
	RequireValidAttributes bool
}

// DefaultRosterOptions returns the filter applied before market valuation
func DefaultRosterOptions() RosterOptions {
	return RosterOptions{
		MinOverall:             1,
		RequirePositions:       true,
		RequireValidAttributes: true,
	}
}

// FilterRoster removes players that cannot be rated or priced.
func FilterRoster(players []model.AgencyPlayer, opts RosterOptions) []model.AgencyPlayer {
	valid := make([]model.AgencyPlayer, 0, len(players))
	for _, p := range players {
		if isValidPlayer(p, opts) {
			valid = append(valid, p)
		} else {
			logrus.WithField("player_id", p.PlayerID).Debug("Filtered invalid player")
		}
	}
	return valid
}

// FilterRosterConcurrently filters large rosters in parallel chunks, preserving order.
func FilterRosterConcurrently(players []model.AgencyPlayer, opts RosterOptions) []model.AgencyPlayer {
	if len(players) < 100 {
		return FilterRoster(players, opts)
	}

	workerCount := 4
	chunkSize := (len(players) + workerCount - 1) / workerCount
	results := make([][]model.AgencyPlayer, workerCount)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		start := i * chunkSize
		if start >= len(players) {
			break
		}
		end := min(len(players), start+chunkSize)

		wg.Add(1)
		go func(i int, chunk []model.AgencyPlayer) {
			defer wg.Done()
			results[i] = FilterRoster(chunk, opts)
		}(i, players[start:end])
	}
	wg.Wait()

	var valid []model.AgencyPlayer
	for _, chunk := range results {
		valid = append(valid, chunk...)
	}
	return valid
}

// isValidPlayer checks if a single player meets all roster criteria
func isValidPlayer(p model.AgencyPlayer, opts RosterOptions) bool {
	if p.Player == nil {
		return false
	}
	meta := p.Player.Metadata
	if meta.Overall < opts.MinOverall {
		return false
	}
	if opts.RequirePositions && ValidatePositions(meta.Positions) != nil {
		return false
	}
	if opts.RequireValidAttributes && ValidateAttributes(meta.Attributes) != nil {
		return false
	}
	return true
}
