package betclient

import (
	"context"
	"net/http"
	"net/url"
)

type balanceRequest struct {
	UserID ID      `json:"user_id"`
	Amount float64 `json:"amount"`
}

type withdrawRequest struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
}

type mpesaRequest struct {
	Phone  string  `json:"phone"`
	Amount float64 `json:"amount"`
}

// GetBalance returns the signed-in user's balance. Cached for 30s.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	b, err := cachedGet[Balance](ctx, c, "GetBalance", KeyBalance, c.api, "/balance")
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Deposit credits userID. Invalidates the cached balance.
func (c *Client) Deposit(ctx context.Context, userID ID, amount float64) (*Receipt, error) {
	return receipt(mutate[Receipt](ctx, c, mutation{
		name:   "Deposit",
		op:     OpDeposit,
		up:     c.api,
		method: http.MethodPost,
		path:   "/admin/balance",
		body:   balanceRequest{UserID: userID, Amount: amount},
	}))
}

// Withdraw requests a payout. An empty method means MTN. Invalidates the
// cached balance and withdrawal lists.
func (c *Client) Withdraw(ctx context.Context, amount float64, method string) (*Receipt, error) {
	if method == "" {
		method = WithdrawMTN
	}
	return receipt(mutate[Receipt](ctx, c, mutation{
		name:   "Withdraw",
		op:     OpWithdraw,
		up:     c.api,
		method: http.MethodPost,
		path:   "/withdraw",
		body:   withdrawRequest{Amount: amount, Method: method},
	}))
}

// GetWithdrawalHistory lists the user's withdrawals. Cached for 2m.
func (c *Client) GetWithdrawalHistory(ctx context.Context) ([]Withdrawal, error) {
	return cachedGet[[]Withdrawal](ctx, c, "GetWithdrawalHistory", KeyWithdrawalHistory, c.api, "/withdrawals/history")
}

// GetReferralStats returns the user's referral totals. Cached for 2m.
func (c *Client) GetReferralStats(ctx context.Context) (*ReferralStats, error) {
	s, err := cachedGet[ReferralStats](ctx, c, "GetReferralStats", KeyReferralStats, c.api, "/referrals/stats")
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// MpesaPayment starts an M-Pesa STK push. Invalidates the cached
// transaction list.
func (c *Client) MpesaPayment(ctx context.Context, phone string, amount float64) (*MpesaPaymentResult, error) {
	r, err := mutate[MpesaPaymentResult](ctx, c, mutation{
		name:   "MpesaPayment",
		op:     OpMpesaPayment,
		up:     c.api,
		method: http.MethodPost,
		path:   "/payments/mpesa",
		body:   mpesaRequest{Phone: phone, Amount: amount},
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CheckMpesaStatus polls one STK push. The result depends on checkoutID,
// so it is neither cached nor de-duplicated.
func (c *Client) CheckMpesaStatus(ctx context.Context, checkoutID string) (*MpesaStatus, error) {
	const op = "CheckMpesaStatus"
	raw, err := c.api.Do(ctx, http.MethodGet, "/payments/mpesa/status/"+url.PathEscape(checkoutID), nil)
	if err != nil {
		return nil, classify(op, err)
	}
	var s MpesaStatus
	if err := decode(raw, &s); err != nil {
		return nil, decodeError(op, err)
	}
	return &s, nil
}

// UpdatePendingMpesa asks the backend to settle pending STK pushes.
// Invalidates the cached transaction list.
func (c *Client) UpdatePendingMpesa(ctx context.Context) (*Receipt, error) {
	return receipt(mutate[Receipt](ctx, c, mutation{
		name:   "UpdatePendingMpesa",
		op:     OpUpdatePendingMpesa,
		up:     c.api,
		method: http.MethodPost,
		path:   "/payments/mpesa/update_pending",
	}))
}

func receipt(r Receipt, err error) (*Receipt, error) {
	if err != nil {
		return nil, err
	}
	return &r, nil
}
