package fakeapi

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Error texts are shown to end users as-is, hence the capitalisation.
//
//nolint:staticcheck
var (
	errNotFound            = errors.New("not found")
	errPhoneTaken          = errors.New("Phone number already registered")
	errInvalidCredentials  = errors.New("Invalid phone number or PIN")
	errInsufficientBalance = errors.New("Insufficient balance")
)

type user struct {
	ID           int       `json:"id"`
	Phone        string    `json:"phone"`
	Pin          string    `json:"-"`
	Balance      float64   `json:"balance"`
	BonusBalance float64   `json:"bonus_balance"`
	ReferralCode string    `json:"referral_code"`
	ReferredBy   int       `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type betSelection struct {
	CandidateName string  `json:"candidate_name"`
	Odds          float64 `json:"odds"`
}

type bet struct {
	ID          int            `json:"id"`
	UserID      int            `json:"-"`
	Stake       float64        `json:"stake"`
	TotalOdds   float64        `json:"total_odds"`
	PossibleWin float64        `json:"possible_win"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	Selections  []betSelection `json:"selections"`
}

type withdrawal struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Phone     string    `json:"phone"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type mpesaTx struct {
	ID                int       `json:"id"`
	UserID            int       `json:"user_id"`
	Phone             string    `json:"phone"`
	Amount            float64   `json:"amount"`
	Status            string    `json:"status"`
	CheckoutRequestID string    `json:"checkout_request_id"`
	ReceiptNumber     string    `json:"mpesa_receipt_number,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type candidate struct {
	ID           int     `json:"id"`
	ElectionID   int     `json:"election_id"`
	Name         string  `json:"name"`
	Party        string  `json:"party,omitempty"`
	PartyColor   string  `json:"party_color,omitempty"`
	Image        string  `json:"image,omitempty"`
	Odds         float64 `json:"odds"`
	IsLeading    bool    `json:"is_leading,omitempty"`
	Constituency string  `json:"constituency,omitempty"`
}

type election struct {
	ID           int         `json:"id"`
	Title        string      `json:"title"`
	Type         string      `json:"type"`
	Constituency string      `json:"constituency,omitempty"`
	IsFeatured   bool        `json:"is_featured,omitempty"`
	Candidates   []candidate `json:"candidates"`
}

// referralBonus is credited to the referrer on each registration.
const referralBonus = 1000

// state is the in-memory backend. All methods take the lock.
type state struct {
	mu sync.Mutex

	nextID      int
	users       map[int]*user
	sessions    map[string]int
	bets        []*bet
	withdrawals []*withdrawal
	mpesa       []*mpesaTx
	elections   []*election
	candidates  []*candidate
}

func newState() *state {
	return &state{
		users:    make(map[int]*user),
		sessions: make(map[string]int),
	}
}

func (s *state) id() int {
	s.nextID++
	return s.nextID
}

func (s *state) userByPhone(phone string) *user {
	for _, u := range s.users {
		if u.Phone == phone {
			return u
		}
	}
	return nil
}

func (s *state) register(phone, pin, referralCode string, balance float64) (*user, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userByPhone(phone) != nil {
		return nil, "", errPhoneTaken
	}
	u := &user{
		ID:        s.id(),
		Phone:     phone,
		Pin:       pin,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}
	u.ReferralCode = "REF" + strconv.Itoa(u.ID)
	if referralCode != "" {
		for _, ref := range s.users {
			if strings.EqualFold(ref.ReferralCode, referralCode) {
				u.ReferredBy = ref.ID
				ref.BonusBalance += referralBonus
				break
			}
		}
	}
	s.users[u.ID] = u
	token := uuid.NewString()
	s.sessions[token] = u.ID
	cp := *u
	return &cp, token, nil
}

func (s *state) login(phone, pin string) (*user, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userByPhone(phone)
	if u == nil || u.Pin != pin {
		return nil, "", errInvalidCredentials
	}
	token := uuid.NewString()
	s.sessions[token] = u.ID
	cp := *u
	return &cp, token, nil
}

func (s *state) session(token string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[token]
	return id, ok
}

func (s *state) revokeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]int)
}

func (s *state) user(id int) (user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user{}, false
	}
	return *u, true
}

func (s *state) credit(id int, amount float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, errNotFound
	}
	u.Balance += amount
	return u.Balance, nil
}

func (s *state) placeBet(userID int, stake float64, sels []betSelection) (*bet, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, 0, errNotFound
	}
	if stake > u.Balance {
		return nil, u.Balance, errInsufficientBalance
	}
	total := 1.0
	for _, sel := range sels {
		total *= sel.Odds
	}
	u.Balance -= stake
	b := &bet{
		ID:          s.id(),
		UserID:      userID,
		Stake:       stake,
		TotalOdds:   total,
		PossibleWin: stake * total,
		Status:      "pending",
		CreatedAt:   time.Now().UTC(),
		Selections:  sels,
	}
	s.bets = append(s.bets, b)
	return b, u.Balance, nil
}

func (s *state) betHistory(userID int) []bet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []bet{}
	for i := len(s.bets) - 1; i >= 0; i-- {
		if s.bets[i].UserID == userID {
			out = append(out, *s.bets[i])
		}
	}
	return out
}

func (s *state) withdraw(userID int, amount float64, method string) (*withdrawal, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, 0, errNotFound
	}
	if amount > u.Balance {
		return nil, u.Balance, errInsufficientBalance
	}
	u.Balance -= amount
	w := &withdrawal{
		ID:        s.id(),
		UserID:    userID,
		Phone:     u.Phone,
		Amount:    amount,
		Method:    method,
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
	s.withdrawals = append(s.withdrawals, w)
	return w, u.Balance, nil
}

// listWithdrawals returns withdrawals newest first; userID 0 means all.
func (s *state) listWithdrawals(userID int) []withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []withdrawal{}
	for i := len(s.withdrawals) - 1; i >= 0; i-- {
		if userID == 0 || s.withdrawals[i].UserID == userID {
			out = append(out, *s.withdrawals[i])
		}
	}
	return out
}

func (s *state) setWithdrawalStatus(id int, status string) (withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.withdrawals {
		if w.ID != id {
			continue
		}
		if status == "rejected" && w.Status != "rejected" {
			if u, ok := s.users[w.UserID]; ok {
				u.Balance += w.Amount
			}
		}
		w.Status = status
		return *w, nil
	}
	return withdrawal{}, errNotFound
}

func (s *state) referralStats(userID int) (string, int, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return "", 0, 0
	}
	n := 0
	for _, other := range s.users {
		if other.ReferredBy == userID {
			n++
		}
	}
	return u.ReferralCode, n, float64(n * referralBonus)
}

func (s *state) startMpesa(userID int, phone string, amount float64) mpesaTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &mpesaTx{
		ID:                s.id(),
		UserID:            userID,
		Phone:             phone,
		Amount:            amount,
		Status:            "pending",
		CheckoutRequestID: "ws_CO_" + uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
	}
	s.mpesa = append(s.mpesa, tx)
	return *tx
}

func (s *state) mpesaByCheckout(checkoutID string) (mpesaTx, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.mpesa {
		if tx.CheckoutRequestID == checkoutID {
			return *tx, true
		}
	}
	return mpesaTx{}, false
}

// settlePendingMpesa completes every pending transaction and credits the
// payer. It returns the number settled.
func (s *state) settlePendingMpesa() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tx := range s.mpesa {
		if tx.Status != "pending" {
			continue
		}
		tx.Status = "completed"
		tx.ReceiptNumber = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10]
		if u, ok := s.users[tx.UserID]; ok {
			u.Balance += tx.Amount
		}
		n++
	}
	return n
}

func (s *state) listMpesa() []mpesaTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mpesaTx, 0, len(s.mpesa))
	for i := len(s.mpesa) - 1; i >= 0; i-- {
		out = append(out, *s.mpesa[i])
	}
	return out
}

func (s *state) listUsers() []user {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]user, 0, len(s.users))
	for id := 1; id <= s.nextID; id++ {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out
}

func (s *state) listElections() []election {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]election, 0, len(s.elections))
	for _, e := range s.elections {
		cp := *e
		cp.Candidates = []candidate{}
		for _, c := range s.candidates {
			if c.ElectionID == e.ID {
				cp.Candidates = append(cp.Candidates, *c)
			}
		}
		out = append(out, cp)
	}
	return out
}

func (s *state) putElection(id int, e election) (election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 {
		e.ID = s.id()
		e.Candidates = nil
		s.elections = append(s.elections, &e)
		return e, nil
	}
	for _, existing := range s.elections {
		if existing.ID == id {
			e.ID = id
			e.Candidates = nil
			*existing = e
			return e, nil
		}
	}
	return election{}, errNotFound
}

func (s *state) deleteElection(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.elections {
		if e.ID != id {
			continue
		}
		s.elections = append(s.elections[:i], s.elections[i+1:]...)
		kept := s.candidates[:0]
		for _, c := range s.candidates {
			if c.ElectionID != id {
				kept = append(kept, c)
			}
		}
		s.candidates = kept
		return nil
	}
	return errNotFound
}

func (s *state) putCandidate(id int, c candidate) (candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, e := range s.elections {
		if e.ID == c.ElectionID {
			found = true
			break
		}
	}
	if !found {
		return candidate{}, errNotFound
	}
	if id == 0 {
		c.ID = s.id()
		s.candidates = append(s.candidates, &c)
		return c, nil
	}
	for _, existing := range s.candidates {
		if existing.ID == id {
			c.ID = id
			*existing = c
			return c, nil
		}
	}
	return candidate{}, errNotFound
}

func (s *state) deleteCandidate(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.candidates {
		if c.ID == id {
			s.candidates = append(s.candidates[:i], s.candidates[i+1:]...)
			return nil
		}
	}
	return errNotFound
}
