package fakeapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (s *Server) apiRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/auth/register", s.register)
	r.Post("/auth/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/balance", s.balance)
		r.Post("/withdraw", s.withdraw)
		r.Get("/withdrawals/history", s.withdrawalHistory)
		r.Get("/referrals/stats", s.referralStats)
		r.Post("/payments/mpesa", s.mpesaPayment)
		r.Get("/payments/mpesa/status/{checkoutID}", s.mpesaStatus)
		r.Post("/payments/mpesa/update_pending", s.mpesaUpdatePending)
		r.Post("/bets", s.placeBet)
		r.Get("/bets/history", s.betHistory)
		r.Get("/admin/users", s.adminUsers)
		r.Post("/admin/balance", s.adminBalance)
		r.Get("/admin/mpesa-transactions", s.adminMpesa)
	})
	return r
}

func (s *Server) rootRoutes(r chi.Router) {
	r.Get("/elections", s.listElections)
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/election", s.saveElection)
		r.Put("/election/{id}", s.saveElection)
		r.Delete("/election/{id}", s.deleteElection)
		r.Post("/candidate", s.saveCandidate)
		r.Put("/candidate/{id}", s.saveCandidate)
		r.Delete("/candidate/{id}", s.deleteCandidate)
		r.Get("/admin/withdrawals", s.adminWithdrawals)
		r.Put("/admin/withdrawals/{id}", s.updateWithdrawal)
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone        string `json:"phone"`
		Pin          string `json:"pin"`
		ReferralCode string `json:"referralCode"`
	}
	if !decodeBody(r, &body) || body.Phone == "" || body.Pin == "" {
		writeError(w, http.StatusBadRequest, "Phone and PIN are required")
		return
	}
	u, token, err := s.state.register(body.Phone, body.Pin, body.ReferralCode, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"token": token, "user": u})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
		Pin   string `json:"pin"`
	}
	if !decodeBody(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ok, retry := s.logins.Allow(body.Phone); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		writeError(w, http.StatusTooManyRequests, "Too many login attempts. Try again later.")
		return
	}
	u, token, err := s.state.login(body.Phone, body.Pin)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logins.Reset(body.Phone)
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": u})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	u, ok := s.state.user(userIDFromContext(r.Context()))
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":       u.Balance,
		"bonus_balance": u.BonusBalance,
	})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount float64 `json:"amount"`
		Method string  `json:"method"`
	}
	if !decodeBody(r, &body) || body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid withdrawal amount")
		return
	}
	if body.Method == "" {
		body.Method = "MTN"
	}
	wd, balance, err := s.state.withdraw(userIDFromContext(r.Context()), body.Amount, body.Method)
	if errors.Is(err, errInsufficientBalance) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error(), "balance": balance})
		return
	}
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Withdrawal request submitted",
		"id":          wd.ID,
		"status":      wd.Status,
		"new_balance": balance,
	})
}

func (s *Server) withdrawalHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.listWithdrawals(userIDFromContext(r.Context())))
}

func (s *Server) referralStats(w http.ResponseWriter, r *http.Request) {
	code, n, earned := s.state.referralStats(userIDFromContext(r.Context()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"referral_code":   code,
		"total_referrals": n,
		"total_earned":    earned,
	})
}

func (s *Server) mpesaPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone  string  `json:"phone"`
		Amount float64 `json:"amount"`
	}
	if !decodeBody(r, &body) || body.Phone == "" || body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Phone and a positive amount are required")
		return
	}
	tx := s.state.startMpesa(userIDFromContext(r.Context()), body.Phone, body.Amount)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":             "STK push sent. Enter your PIN to complete payment.",
		"checkout_request_id": tx.CheckoutRequestID,
	})
}

func (s *Server) mpesaStatus(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.state.mpesaByCheckout(chi.URLParam(r, "checkoutID"))
	if !ok {
		writeError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"checkout_request_id": tx.CheckoutRequestID,
		"status":              tx.Status,
		"amount":              tx.Amount,
	})
}

func (s *Server) mpesaUpdatePending(w http.ResponseWriter, _ *http.Request) {
	n := s.state.settlePendingMpesa()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": strconv.Itoa(n) + " pending transactions updated",
	})
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Stake      float64 `json:"stake"`
		Selections []struct {
			Candidate string  `json:"candidate"`
			Odds      float64 `json:"odds"`
		} `json:"selections"`
	}
	if !decodeBody(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Stake <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid stake amount")
		return
	}
	if len(body.Selections) == 0 {
		writeError(w, http.StatusBadRequest, "At least one selection is required")
		return
	}
	sels := make([]betSelection, 0, len(body.Selections))
	for _, sel := range body.Selections {
		if strings.TrimSpace(sel.Candidate) == "" || sel.Odds <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid selection")
			return
		}
		sels = append(sels, betSelection{CandidateName: sel.Candidate, Odds: sel.Odds})
	}
	b, balance, err := s.state.placeBet(userIDFromContext(r.Context()), body.Stake, sels)
	if errors.Is(err, errInsufficientBalance) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error(), "balance": balance})
		return
	}
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     "Bet placed successfully",
		"bet_id":      b.ID,
		"new_balance": balance,
	})
}

func (s *Server) betHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.betHistory(userIDFromContext(r.Context())))
}

func (s *Server) adminUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.listUsers())
}

func (s *Server) adminBalance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID flexInt `json:"user_id"`
		Amount float64  `json:"amount"`
	}
	if !decodeBody(r, &body) || body.Amount == 0 {
		writeError(w, http.StatusBadRequest, "user_id and amount are required")
		return
	}
	balance, err := s.state.credit(int(body.UserID), body.Amount)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Balance updated",
		"new_balance": balance,
	})
}

func (s *Server) adminMpesa(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.listMpesa())
}

func (s *Server) listElections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.listElections())
}

func (s *Server) saveElection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		election
		ID         flexInt         `json:"id"`
		Candidates json.RawMessage `json:"candidates"`
	}
	if !decodeBody(r, &body) || body.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	e, err := s.state.putElection(id, body.election)
	if err != nil {
		writeError(w, http.StatusNotFound, "Election not found")
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, e)
}

func (s *Server) deleteElection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.state.deleteElection(id); err != nil {
		writeError(w, http.StatusNotFound, "Election not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Election deleted"})
}

func (s *Server) saveCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		candidate
		ID         flexInt `json:"id"`
		ElectionID flexInt `json:"election_id"`
	}
	if !decodeBody(r, &body) || body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	body.candidate.ElectionID = int(body.ElectionID)
	c, err := s.state.putCandidate(id, body.candidate)
	if err != nil {
		writeError(w, http.StatusNotFound, "Election or candidate not found")
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, c)
}

func (s *Server) deleteCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.state.deleteCandidate(id); err != nil {
		writeError(w, http.StatusNotFound, "Candidate not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Candidate deleted"})
}

func (s *Server) adminWithdrawals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.listWithdrawals(0))
}

func (s *Server) updateWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if !decodeBody(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch body.Status {
	case "pending", "approved", "rejected", "paid":
	default:
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	wd, err := s.state.setWithdrawalStatus(id, body.Status)
	if err != nil {
		writeError(w, http.StatusNotFound, "Withdrawal not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Withdrawal updated",
		"id":      wd.ID,
		"status":  wd.Status,
	})
}

// pathID parses the {id} URL parameter. A missing parameter yields 0.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
