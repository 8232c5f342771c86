package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/model"
)

func TestNormalizeWallet(t *testing.T) {
	tests := []struct {
		name    string
		wallet  string
		want    string
		wantErr bool
	}{
		{"flow address", "0x1a2B3c4D5e6F7a8B", "0x1a2b3c4d5e6f7a8b", false},
		{"evm address", "0x52908400098527886E0F7030069857D2E4169EE7", "0x52908400098527886e0f7030069857d2e4169ee7", false},
		{"surrounding space", "  0x1a2b3c4d5e6f7a8b ", "0x1a2b3c4d5e6f7a8b", false},
		{"empty", "", "", true},
		{"missing prefix", "1a2b3c4d5e6f7a8b", "", true},
		{"odd length", "0x1a2b3", "", true},
		{"wrong length", "0x1a2b", "", true},
		{"not hex", "0xzzzzzzzzzzzzzzzz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeWallet(tt.wallet)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateSyncOptions(t *testing.T) {
	wallet := "0x1a2b3c4d5e6f7a8b"
	ok, tooMany, zero := 50, MaxPlayerCap+1, 0

	_, err := ValidateSyncOptions(wallet, nil)
	assert.NoError(t, err)
	_, err = ValidateSyncOptions(wallet, &ok)
	assert.NoError(t, err)
	_, err = ValidateSyncOptions(wallet, &tooMany)
	assert.Error(t, err)
	_, err = ValidateSyncOptions(wallet, &zero)
	assert.Error(t, err)
}

func TestValidateAttributes(t *testing.T) {
	assert.NoError(t, ValidateAttributes(model.Attributes{Pace: 99, Goalkeeping: 0}))

	err := ValidateAttributes(model.Attributes{Pace: 120})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pace")

	assert.Error(t, ValidateAttributes(model.Attributes{Defense: -1}))
}

func TestValidatePositions(t *testing.T) {
	assert.NoError(t, ValidatePositions([]model.Position{model.ST, model.CF}))
	assert.Error(t, ValidatePositions(nil))
	assert.Error(t, ValidatePositions([]model.Position{"SW"}))
}

func rosterPlayer(id int64, overall int, positions ...model.Position) model.AgencyPlayer {
	return model.AgencyPlayer{
		AgencyPlayerRecord: model.AgencyPlayerRecord{PlayerID: id},
		Player: &model.Player{ID: id, Metadata: model.PlayerMetadata{
			Overall:    overall,
			Positions:  positions,
			Attributes: model.Attributes{Pace: 70, Shooting: 70, Passing: 70, Dribbling: 70, Defense: 70, Physical: 70},
		}},
	}
}

func TestFilterRoster(t *testing.T) {
	broken := rosterPlayer(4, 80, model.CB)
	broken.Player.Metadata.Physical = 150

	players := []model.AgencyPlayer{
		rosterPlayer(1, 80, model.ST),
		rosterPlayer(2, 0, model.ST),
		rosterPlayer(3, 75),
		broken,
		{AgencyPlayerRecord: model.AgencyPlayerRecord{PlayerID: 5}},
		rosterPlayer(6, 65, model.GK),
	}

	got := FilterRoster(players, DefaultRosterOptions())
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].PlayerID)
	assert.Equal(t, int64(6), got[1].PlayerID)
}

func TestFilterRosterConcurrently_PreservesOrder(t *testing.T) {
	players := make([]model.AgencyPlayer, 0, 250)
	for i := 0; i < 250; i++ {
		overall := 70
		if i%10 == 0 {
			overall = 0
		}
		players = append(players, rosterPlayer(int64(i), overall, model.CM))
	}

	got := FilterRosterConcurrently(players, DefaultRosterOptions())
	assert.Len(t, got, 225)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].PlayerID, got[i].PlayerID)
	}
}
