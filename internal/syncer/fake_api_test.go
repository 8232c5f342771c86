package syncer

import (
	"context"
	"errors"
	"sync"

	"github.com/yourorg/mfl-sync/internal/apperr"
	"github.com/yourorg/mfl-sync/internal/model"
)

// fakeAPI is an in-memory fetch.API. Errors listed in errs are returned by the
// next calls of that method, one per call, before data is served.
type fakeAPI struct {
	mu sync.Mutex

	clubs       []model.ClubData
	players     []model.Player
	upcoming    map[int64][]model.Match
	past        map[int64][]model.Match
	opponents   map[int64][]model.Match
	formations  map[int64]*model.MatchFormations
	comparables []model.MarketListing

	opponentErr map[int64]error

	errs      map[string][]error
	stickyErr map[string]error

	// blockOn makes that method wait for ctx to be done.
	blockOn string
	hook    func(method string)

	calls map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		upcoming:    make(map[int64][]model.Match),
		past:        make(map[int64][]model.Match),
		opponents:   make(map[int64][]model.Match),
		formations:  make(map[int64]*model.MatchFormations),
		opponentErr: make(map[int64]error),
		errs:        make(map[string][]error),
		stickyErr:   make(map[string]error),
		calls:       make(map[string]int),
	}
}

func (f *fakeAPI) enter(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls[method]++
	var err error
	if queued := f.errs[method]; len(queued) > 0 {
		err = queued[0]
		f.errs[method] = queued[1:]
	} else if sticky := f.stickyErr[method]; sticky != nil {
		err = sticky
	}
	block := f.blockOn == method
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(method)
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return err
}

func (f *fakeAPI) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeAPI) FetchPlayer(ctx context.Context, playerID int64) (*model.Player, error) {
	if err := f.enter(ctx, "FetchPlayer"); err != nil {
		return nil, err
	}
	for _, p := range f.players {
		if p.ID == playerID {
			p := p
			return &p, nil
		}
	}
	return nil, &apperr.UpstreamError{Endpoint: "/players", StatusCode: 404, Err: errors.New("not found")}
}

func (f *fakeAPI) FetchOwnerPlayers(ctx context.Context, _ string, limit int) ([]model.Player, error) {
	if err := f.enter(ctx, "FetchOwnerPlayers"); err != nil {
		return nil, err
	}
	if len(f.players) > limit {
		return f.players[:limit], nil
	}
	return f.players, nil
}

func (f *fakeAPI) FetchClubs(ctx context.Context, _ string) ([]model.ClubData, error) {
	if err := f.enter(ctx, "FetchClubs"); err != nil {
		return nil, err
	}
	return f.clubs, nil
}

func (f *fakeAPI) FetchUpcomingMatches(ctx context.Context, clubID int64) ([]model.Match, error) {
	if err := f.enter(ctx, "FetchUpcomingMatches"); err != nil {
		return nil, err
	}
	return f.upcoming[clubID], nil
}

func (f *fakeAPI) FetchPastMatches(ctx context.Context, clubID int64) ([]model.Match, error) {
	if err := f.enter(ctx, "FetchPastMatches"); err != nil {
		return nil, err
	}
	return f.past[clubID], nil
}

func (f *fakeAPI) FetchOpponentPastMatches(ctx context.Context, squadID int64, limit int) ([]model.Match, error) {
	if err := f.enter(ctx, "FetchOpponentPastMatches"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	err := f.opponentErr[squadID]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	matches := f.opponents[squadID]
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (f *fakeAPI) FetchMatchFormation(ctx context.Context, matchID int64) (*model.MatchFormations, error) {
	if err := f.enter(ctx, "FetchMatchFormation"); err != nil {
		return nil, err
	}
	return f.formations[matchID], nil
}

func (f *fakeAPI) FetchMarketComparables(ctx context.Context, _ model.ComparableSearch) ([]model.MarketListing, error) {
	if err := f.enter(ctx, "FetchMarketComparables"); err != nil {
		return nil, err
	}
	return f.comparables, nil
}

func (f *fakeAPI) FetchSaleHistory(ctx context.Context, _ int64, _ int) ([]model.SaleEntry, error) {
	if err := f.enter(ctx, "FetchSaleHistory"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeAPI) FetchExperienceHistory(ctx context.Context, _ int64) ([]model.ProgressionPoint, error) {
	if err := f.enter(ctx, "FetchExperienceHistory"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeAPI) FetchPlayerMatches(ctx context.Context, _ int64, _ int) (int, error) {
	if err := f.enter(ctx, "FetchPlayerMatches"); err != nil {
		return 0, err
	}
	return 12, nil
}
