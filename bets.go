package betclient

import (
	"context"
	"net/http"
)

// PlaceBet submits a bet. Invalidates the cached balance and bet history.
func (c *Client) PlaceBet(ctx context.Context, bet BetPayload) (*BetReceipt, error) {
	return c.placeBet(ctx, "PlaceBet", OpPlaceBet, bet)
}

// PlaceJackpotBet submits a jackpot bet built with NewJackpotBet. It uses
// the same endpoint and invalidation as PlaceBet.
func (c *Client) PlaceJackpotBet(ctx context.Context, bet BetPayload) (*BetReceipt, error) {
	return c.placeBet(ctx, "PlaceJackpotBet", OpPlaceJackpotBet, bet)
}

func (c *Client) placeBet(ctx context.Context, name string, op Operation, bet BetPayload) (*BetReceipt, error) {
	if bet.Selections == nil {
		bet.Selections = []BetSelection{}
	}
	r, err := mutate[BetReceipt](ctx, c, mutation{
		name:   name,
		op:     op,
		up:     c.api,
		method: http.MethodPost,
		path:   "/bets",
		body:   bet,
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetBetHistory lists the user's bets, newest first as returned by the
// backend. Cached for 1m.
func (c *Client) GetBetHistory(ctx context.Context) ([]BetRecord, error) {
	return cachedGet[[]BetRecord](ctx, c, "GetBetHistory", KeyBetHistory, c.api, "/bets/history")
}
