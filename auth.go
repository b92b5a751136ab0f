package betclient

import (
	"context"
	"net/http"
)

type registerRequest struct {
	Phone        string `json:"phone"`
	Pin          string `json:"pin"`
	ReferralCode string `json:"referralCode"`
}

type loginRequest struct {
	Phone string `json:"phone"`
	Pin   string `json:"pin"`
}

// RegisterUser creates an account. On success the whole cache is cleared
// and the returned token becomes the active credential.
func (c *Client) RegisterUser(ctx context.Context, phone, pin, referralCode string) (*AuthResponse, error) {
	return c.authenticate(ctx, mutation{
		name:   "RegisterUser",
		op:     OpRegister,
		up:     c.api,
		method: http.MethodPost,
		path:   "/auth/register",
		body:   registerRequest{Phone: phone, Pin: pin, ReferralCode: referralCode},
	})
}

// LoginUser signs in. On success the whole cache is cleared, so nothing
// cached for a previous session can leak, and the returned token becomes
// the active credential.
func (c *Client) LoginUser(ctx context.Context, phone, pin string) (*AuthResponse, error) {
	return c.authenticate(ctx, mutation{
		name:   "LoginUser",
		op:     OpLogin,
		up:     c.api,
		method: http.MethodPost,
		path:   "/auth/login",
		body:   loginRequest{Phone: phone, Pin: pin},
	})
}

func (c *Client) authenticate(ctx context.Context, m mutation) (*AuthResponse, error) {
	resp, err := mutate[AuthResponse](ctx, c, m)
	if err != nil {
		return nil, err
	}
	// A failed clear leaves the cache bypassed; the login itself stands.
	_ = c.clearCache(ctx)
	if resp.Token != "" {
		if err := c.creds.Set(ctx, resp.Token); err != nil {
			return &resp, err
		}
	}
	return &resp, nil
}
