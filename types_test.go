package betclient

import (
	"encoding/json"
	"testing"
)

func TestID_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{`42`, "42"},
		{`"42"`, "42"},
		{`"a1b2"`, "a1b2"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var id ID
		if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", tt.in, err)
		}
		if id != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, id, tt.want)
		}
	}

	var id ID
	if err := json.Unmarshal([]byte(`{"x":1}`), &id); err == nil {
		t.Error("expected error for object id")
	}
}

func TestNewJackpotBet(t *testing.T) {
	bet := NewJackpotBet(5000, []JackpotSelection{
		{Race: "Presidential", Candidate: "A"},
		{Race: "Kampala Central MP", Candidate: "B"},
	})
	if bet.Stake != 5000 || len(bet.Selections) != 2 {
		t.Fatalf("bet = %+v", bet)
	}
	if bet.Selections[1].Candidate != "[JP] Kampala Central MP: B" {
		t.Errorf("label = %q", bet.Selections[1].Candidate)
	}
	if bet.Selections[0].Odds != 1.0 || bet.TotalOdds() != 1.0 {
		t.Errorf("jackpot legs should carry odds 1.0, got %+v", bet.Selections)
	}
}

func TestBetPayload_Odds(t *testing.T) {
	p := BetPayload{Stake: 1000, Selections: []BetSelection{{Candidate: "X", Odds: 2.0}, {Candidate: "Y", Odds: 1.5}}}
	if p.TotalOdds() != 3.0 {
		t.Errorf("TotalOdds() = %v, want 3", p.TotalOdds())
	}
	if p.PossibleWin() != 3000 {
		t.Errorf("PossibleWin() = %v, want 3000", p.PossibleWin())
	}
	if (BetPayload{Stake: 10}).TotalOdds() != 0 {
		t.Error("empty bet should have zero odds")
	}
}

func TestBetRecord_IsJackpot(t *testing.T) {
	tests := []struct {
		name string
		sels []BetRecordSelection
		want bool
	}{
		{"all jackpot", []BetRecordSelection{{CandidateName: "[JP] A: x"}, {CandidateName: "[JP] B: y"}}, true},
		{"mixed", []BetRecordSelection{{CandidateName: "[JP] A: x"}, {CandidateName: "y"}}, false},
		{"regular", []BetRecordSelection{{CandidateName: "x"}}, false},
		{"no selections", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (BetRecord{Selections: tt.sels}).IsJackpot(); got != tt.want {
				t.Errorf("IsJackpot() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBetRecord_DecodesHistoryShape(t *testing.T) {
	raw := `[{"id":7,"stake":1000,"total_odds":2.5,"possible_win":2500,"status":"pending",
		"created_at":"2026-10-18T10:00:00Z","selections":[{"candidate_name":"X","odds":2.5}]}]`
	var history []BetRecord
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	b := history[0]
	if b.ID != "7" || b.PossibleWin != 2500 || b.Selections[0].CandidateName != "X" {
		t.Errorf("record = %+v", b)
	}
}

func TestPolicyTable(t *testing.T) {
	for key, p := range readPolicies {
		if p.ttl <= 0 {
			t.Errorf("%s: ttl must be positive", key)
		}
		if len(p.tags) == 0 {
			t.Errorf("%s: no tags", key)
		}
	}
	if ttl, _ := DefaultTTL(KeyBalance); ttl.Seconds() != 30 {
		t.Errorf("balance ttl = %s, want 30s", ttl)
	}
	if ttl, _ := DefaultTTL(KeyElections); ttl.Minutes() != 5 {
		t.Errorf("elections ttl = %s, want 5m", ttl)
	}
	if IsCacheKey("bet") {
		t.Error("partial key names must not match")
	}
}
