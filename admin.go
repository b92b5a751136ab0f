package betclient

import (
	"context"
	"net/http"
	"net/url"
)

// GetAdminUsers lists every account. Cached for 1m.
func (c *Client) GetAdminUsers(ctx context.Context) ([]AdminUser, error) {
	return cachedGet[[]AdminUser](ctx, c, "GetAdminUsers", KeyAdminUsers, c.api, "/admin/users")
}

// AdminAddBalance credits userID from the back office. Invalidates the
// cached balance.
func (c *Client) AdminAddBalance(ctx context.Context, userID ID, amount float64) (*Receipt, error) {
	return receipt(mutate[Receipt](ctx, c, mutation{
		name:   "AdminAddBalance",
		op:     OpAdminAddBalance,
		up:     c.api,
		method: http.MethodPost,
		path:   "/admin/balance",
		body:   balanceRequest{UserID: userID, Amount: amount},
	}))
}

// GetMpesaTransactions lists M-Pesa transactions. Cached for 1m.
func (c *Client) GetMpesaTransactions(ctx context.Context) ([]MpesaTransaction, error) {
	return cachedGet[[]MpesaTransaction](ctx, c, "GetMpesaTransactions", KeyMpesaTransactions, c.api, "/admin/mpesa-transactions")
}

// ReconcileMpesa settles pending M-Pesa transactions from the back office.
// Invalidates the cached transaction list.
func (c *Client) ReconcileMpesa(ctx context.Context) (*Receipt, error) {
	return receipt(mutate[Receipt](ctx, c, mutation{
		name:   "ReconcileMpesa",
		op:     OpReconcileMpesa,
		up:     c.api,
		method: http.MethodPost,
		path:   "/payments/mpesa/update_pending",
	}))
}

// GetAdminWithdrawals lists every withdrawal request. Served by the root
// upstream and cached for 30s.
func (c *Client) GetAdminWithdrawals(ctx context.Context) ([]Withdrawal, error) {
	return cachedGet[[]Withdrawal](ctx, c, "GetAdminWithdrawals", KeyAdminWithdrawals, c.root, "/admin/withdrawals")
}

type withdrawalStatusRequest struct {
	Status string `json:"status"`
}

// UpdateWithdrawalStatus moves withdrawal id to status. Invalidates both
// withdrawal lists.
func (c *Client) UpdateWithdrawalStatus(ctx context.Context, id ID, status string) (*Receipt, error) {
	return receipt(mutate[Receipt](ctx, c, mutation{
		name:   "UpdateWithdrawalStatus",
		op:     OpUpdateWithdrawalStatus,
		up:     c.root,
		method: http.MethodPut,
		path:   "/admin/withdrawals/" + url.PathEscape(id.String()),
		body:   withdrawalStatusRequest{Status: status},
	}))
}
