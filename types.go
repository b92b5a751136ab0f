package betclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is a backend identifier. The backends emit ids as JSON numbers or
// strings depending on the table; both decode to the same ID.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// User is the account returned by login and registration.
type User struct {
	ID           ID      `json:"id"`
	Phone        string  `json:"phone"`
	Balance      float64 `json:"balance"`
	BonusBalance float64 `json:"bonus_balance,omitempty"`
	ReferralCode string  `json:"referral_code,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// AuthResponse is the result of LoginUser and RegisterUser.
type AuthResponse struct {
	Token   string `json:"token"`
	User    User   `json:"user"`
	Message string `json:"message,omitempty"`
}

// Balance is the result of GetBalance.
type Balance struct {
	Balance      float64 `json:"balance"`
	BonusBalance float64 `json:"bonus_balance,omitempty"`
}

// Receipt is the acknowledgement of a balance or status mutation.
type Receipt struct {
	Message    string   `json:"message,omitempty"`
	ID         ID       `json:"id,omitempty"`
	NewBalance *float64 `json:"new_balance,omitempty"`
	Status     string   `json:"status,omitempty"`
}

// Withdrawal methods.
const (
	WithdrawMTN    = "MTN"
	WithdrawAirtel = "Airtel"
)

// Withdrawal is one withdrawal request, from the user or admin view.
type Withdrawal struct {
	ID        ID      `json:"id"`
	UserID    ID      `json:"user_id,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method,omitempty"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// Withdrawal statuses accepted by UpdateWithdrawalStatus.
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
	WithdrawalPaid     = "paid"
)

// ReferralStats is the result of GetReferralStats.
type ReferralStats struct {
	ReferralCode   string  `json:"referral_code,omitempty"`
	TotalReferrals int     `json:"total_referrals"`
	TotalEarned    float64 `json:"total_earned"`
}

// MpesaPaymentResult is the STK push acknowledgement.
type MpesaPaymentResult struct {
	Message           string `json:"message,omitempty"`
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	MerchantRequestID string `json:"merchant_request_id,omitempty"`
}

// MpesaStatus is the state of one STK push.
type MpesaStatus struct {
	CheckoutRequestID string  `json:"checkout_request_id,omitempty"`
	Status            string  `json:"status"`
	ResultDesc        string  `json:"result_desc,omitempty"`
	Amount            float64 `json:"amount,omitempty"`
}

// MpesaTransaction is one row of the admin transaction list.
type MpesaTransaction struct {
	ID                ID      `json:"id"`
	UserID            ID      `json:"user_id,omitempty"`
	Phone             string  `json:"phone"`
	Amount            float64 `json:"amount"`
	Status            string  `json:"status"`
	CheckoutRequestID string  `json:"checkout_request_id,omitempty"`
	ReceiptNumber     string  `json:"mpesa_receipt_number,omitempty"`
	CreatedAt         string  `json:"created_at,omitempty"`
}

// AdminUser is one row of the admin user list.
type AdminUser struct {
	ID        ID      `json:"id"`
	Phone     string  `json:"phone"`
	Balance   float64 `json:"balance"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// Candidate is a runner in an election market.
type Candidate struct {
	ID           ID      `json:"id,omitempty"`
	ElectionID   ID      `json:"election_id,omitempty"`
	Name         string  `json:"name"`
	Party        string  `json:"party,omitempty"`
	PartyColor   string  `json:"party_color,omitempty"`
	Image        string  `json:"image,omitempty"`
	Odds         float64 `json:"odds"`
	IsLeading    bool    `json:"is_leading,omitempty"`
	Constituency string  `json:"constituency,omitempty"`
}

// Election is a market with its candidates.
type Election struct {
	ID           ID          `json:"id,omitempty"`
	Title        string      `json:"title"`
	Type         string      `json:"type"`
	Constituency string      `json:"constituency,omitempty"`
	IsFeatured   bool        `json:"is_featured,omitempty"`
	Candidates   []Candidate `json:"candidates,omitempty"`
}

// BetSelection is one leg of a bet as sent to the backend.
type BetSelection struct {
	Candidate string  `json:"candidate"`
	Odds      float64 `json:"odds"`
}

// BetPayload is the body of POST /bets.
type BetPayload struct {
	Stake      float64        `json:"stake"`
	Selections []BetSelection `json:"selections"`
}

// TotalOdds is the product of the selection odds.
func (p BetPayload) TotalOdds() float64 {
	if len(p.Selections) == 0 {
		return 0
	}
	total := 1.0
	for _, s := range p.Selections {
		total *= s.Odds
	}
	return total
}

// PossibleWin is Stake times TotalOdds.
func (p BetPayload) PossibleWin() float64 { return p.Stake * p.TotalOdds() }

// JackpotPrefix marks jackpot selections in bet history.
const JackpotPrefix = "[JP]"

// JackpotSelection is a pick in one jackpot race.
type JackpotSelection struct {
	Race      string
	Candidate string
}

// NewJackpotBet builds a jackpot BetPayload. Each leg is labelled
// "[JP] <race>: <candidate>" and carries odds 1.0; the payout is set by the
// backend.
func NewJackpotBet(stake float64, picks []JackpotSelection) BetPayload {
	p := BetPayload{Stake: stake, Selections: make([]BetSelection, 0, len(picks))}
	for _, pick := range picks {
		p.Selections = append(p.Selections, BetSelection{
			Candidate: fmt.Sprintf("%s %s: %s", JackpotPrefix, pick.Race, pick.Candidate),
			Odds:      1.0,
		})
	}
	return p
}

// BetReceipt is the result of PlaceBet and PlaceJackpotBet.
type BetReceipt struct {
	BetID      ID       `json:"bet_id"`
	NewBalance *float64 `json:"new_balance,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// BetRecordSelection is one leg of a bet in history.
type BetRecordSelection struct {
	CandidateName string  `json:"candidate_name"`
	Odds          float64 `json:"odds"`
}

// BetRecord is one entry of GetBetHistory.
type BetRecord struct {
	ID          ID                   `json:"id"`
	Stake       float64              `json:"stake"`
	TotalOdds   float64              `json:"total_odds"`
	PossibleWin float64              `json:"possible_win"`
	Status      string               `json:"status"`
	CreatedAt   string               `json:"created_at"`
	Selections  []BetRecordSelection `json:"selections"`
}

// IsJackpot reports whether every selection carries the jackpot label.
func (b BetRecord) IsJackpot() bool {
	if len(b.Selections) == 0 {
		return false
	}
	for _, s := range b.Selections {
		if !strings.HasPrefix(s.CandidateName, JackpotPrefix) {
			return false
		}
	}
	return true
}
