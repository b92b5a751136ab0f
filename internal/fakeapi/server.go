// Package fakeapi is an in-memory stand-in for both betting backends: the
// "/api"-prefixed one and the root-prefixed one. It backs the client tests
// and cmd/betapi-fake. Only the behaviour the client depends on is
// modelled: bearer sessions, balances, bets, withdrawals, M-Pesa
// transactions, elections and candidates.
//
// Every request is counted per "METHOD /path" so tests can assert how many
// upstream calls a client operation caused. Routes can be held open or made
// to fail to exercise de-duplication and error handling.
package fakeapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ugandavote/betclient/internal/logging"
	"github.com/ugandavote/betclient/internal/ratelimit"
)

// Login throttling: five attempts per phone, then one more per minute. A
// successful login clears the phone's history.
const (
	loginBurst = 5
	loginRate  = 1.0 / 60
)

// Server is the fake backend. The zero value is not usable; call New.
type Server struct {
	state  *state
	logins *ratelimit.Keyed

	mu       sync.Mutex
	hits     map[string]int
	holds    map[string]chan struct{}
	failures map[string][]failure
	delays   map[string]time.Duration
}

type failure struct {
	status int
	body   map[string]interface{}
}

// New returns an empty fake backend.
func New() *Server {
	return &Server{
		state:    newState(),
		logins:   ratelimit.NewKeyed(loginRate, loginBurst),
		hits:     make(map[string]int),
		holds:    make(map[string]chan struct{}),
		failures: make(map[string][]failure),
		delays:   make(map[string]time.Duration),
	}
}

// Handler serves both upstreams: the "/api" routes under /api and the
// root routes at the top level.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(s.instrument)
	r.Mount("/api", s.apiRoutes())
	s.rootRoutes(r)
	return r
}

// Hits returns how many requests reached route, written "GET /api/balance".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// TotalHits returns the number of requests served.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// ResetHits zeroes the request counters.
func (s *Server) ResetHits() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = make(map[string]int)
}

// Hold blocks every request to route until release is called. Requests
// are counted before they block.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[route] == ch {
				delete(s.holds, route)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Delay adds latency to every request to route.
func (s *Server) Delay(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[route] = d
}

// FailNext makes the next request to route answer status with
// {"error": message}. Calls queue up.
func (s *Server) FailNext(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{
		status: status,
		body:   map[string]interface{}{"error": message},
	})
}

// RevokeSessions invalidates every issued token, so the next authenticated
// request gets a 401.
func (s *Server) RevokeSessions() { s.state.revokeSessions() }

// SeedUser registers an account with an opening balance and returns its id
// and a session token.
func (s *Server) SeedUser(phone, pin string, balance float64) (id int, token string) {
	u, token, err := s.state.register(phone, pin, "", balance)
	if err != nil {
		panic("fakeapi: seed user: " + err.Error())
	}
	return u.ID, token
}

// Balance returns the current balance of user id.
func (s *Server) Balance(id int) float64 {
	u, _ := s.state.user(id)
	return u.Balance
}

// SeedElection adds an election with candidates (name and odds pairs) and
// returns its id.
func (s *Server) SeedElection(title, kind string, candidates map[string]float64) int {
	e, _ := s.state.putElection(0, election{Title: title, Type: kind})
	for name, odds := range candidates {
		if _, err := s.state.putCandidate(0, candidate{ElectionID: e.ID, Name: name, Odds: odds}); err != nil {
			panic("fakeapi: seed candidate: " + err.Error())
		}
	}
	return e.ID
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.hits[route]++
		hold := s.holds[route]
		delay := s.delays[route]
		var fail *failure
		if q := s.failures[route]; len(q) > 0 {
			fail = &q[0]
			s.failures[route] = q[1:]
		}
		s.mu.Unlock()

		logging.FromContext(r.Context()).Debug("fake backend request", "route", route)

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if fail != nil {
			writeJSON(w, fail.status, fail.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}
