package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ugandavote/betclient/internal/fakeapi"
)

type cli struct {
	t      *testing.T
	fake   *fakeapi.Server
	config string
}

func newCLI(t *testing.T, journal bool) *cli {
	t.Helper()
	fake := fakeapi.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := map[string]interface{}{
		"api_base_url":  srv.URL + "/api",
		"root_base_url": srv.URL,
		"timeout":       "5s",
		"credential":    map[string]interface{}{"store": "file", "path": filepath.Join(dir, "credential")},
		"log":           map[string]interface{}{"level": "error", "format": "text"},
	}
	if journal {
		cfg["journal"] = map[string]interface{}{"driver": "sqlite", "dsn": filepath.Join(dir, "journal.db")}
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "betctl.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cli{t: t, fake: fake, config: path}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), append([]string{"--config", c.config}, args...), &out, &errOut)
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("betctl %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func assertContains(t *testing.T, got string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q:\n%s", w, got)
		}
	}
}

func TestLogin_SessionSurvivesInvocations(t *testing.T) {
	c := newCLI(t, false)
	c.fake.SeedUser("0700000001", "1234", 5000)

	out := c.mustRun("login", "0700000001", "--pin", "1234")
	assertContains(t, out, "Logged in as 0700000001", "UGX 5,000")

	out = c.mustRun("balance")
	assertContains(t, out, "Balance: UGX 5,000")

	c.mustRun("logout")
	if _, err := c.run("balance"); err == nil || err.Error() != "not logged in" {
		t.Errorf("balance after logout: err = %v, want not logged in", err)
	}
}

func TestLogin_WrongPIN(t *testing.T) {
	c := newCLI(t, false)
	c.fake.SeedUser("0700000002", "1234", 0)

	_, err := c.run("login", "0700000002", "--pin", "0000")
	if err == nil || !strings.Contains(err.Error(), "Invalid phone number or PIN") {
		t.Errorf("err = %v", err)
	}
}

func TestRegister(t *testing.T) {
	c := newCLI(t, false)
	out := c.mustRun("register", "0700000003", "--pin", "1234")
	assertContains(t, out, "Registered 0700000003", "Your referral code:")

	// credential is kept
	c.mustRun("balance")
}

func TestBets_PlaceAndHistory(t *testing.T) {
	c := newCLI(t, false)
	c.fake.SeedUser("0700000004", "1234", 5000)
	c.mustRun("login", "0700000004", "--pin", "1234")

	out := c.mustRun("bets", "place", "--stake", "1000", "--pick", "Candidate A=1.5", "--pick", "Candidate B=2")
	assertContains(t, out, "placed", "odds 3.00", "possible win UGX 3,000", "Balance: UGX 4,000")

	out = c.mustRun("bets", "jackpot", "--stake", "500", "--pick", "Kampala Central:Candidate A")
	assertContains(t, out, "Balance: UGX 3,500")

	out = c.mustRun("bets", "history")
	assertContains(t, out, "multi", "jackpot", "UGX 1,000", "UGX 500")
}

func TestBets_InvalidPick(t *testing.T) {
	c := newCLI(t, false)
	if _, err := c.run("bets", "place", "--stake", "100", "--pick", "no odds"); err == nil {
		t.Fatal("expected error for malformed pick")
	}
	if _, err := c.run("bets", "jackpot", "--stake", "100", "--pick", "no race"); err == nil {
		t.Fatal("expected error for malformed jackpot pick")
	}
}

func TestWithdraw_InsufficientBalanceShowsBalance(t *testing.T) {
	c := newCLI(t, false)
	c.fake.SeedUser("0700000005", "1234", 200)
	c.mustRun("login", "0700000005", "--pin", "1234")

	_, err := c.run("withdraw", "1000")
	if err == nil {
		t.Fatal("expected error")
	}
	assertContains(t, err.Error(), "Insufficient balance", "balance UGX 200")

	out := c.mustRun("withdraw", "150", "--method", "Airtel")
	assertContains(t, out, "Withdrawal of UGX 150 requested", "balance UGX 50")

	out = c.mustRun("withdrawals")
	assertContains(t, out, "Airtel", "pending")
}

func TestElections(t *testing.T) {
	c := newCLI(t, false)
	c.fake.SeedElection("Presidential 2026", "presidential", map[string]float64{"Candidate A": 1.45, "Candidate B": 2.8})

	out := c.mustRun("elections")
	assertContains(t, out, "Presidential 2026", "Candidate A", "1.45", "2.80")
	if strings.Index(out, "Candidate A") > strings.Index(out, "Candidate B") {
		t.Errorf("candidates not ordered by odds:\n%s", out)
	}
}

func TestAdmin_WithdrawalLifecycle(t *testing.T) {
	c := newCLI(t, false)
	id, _ := c.fake.SeedUser("0700000006", "1234", 1000)
	c.mustRun("login", "0700000006", "--pin", "1234")
	c.mustRun("withdraw", "300")

	out := c.mustRun("admin", "withdrawals")
	assertContains(t, out, "0700000006", "UGX 300")

	if _, err := c.run("admin", "set-withdrawal", "1", "lost"); err == nil {
		t.Error("expected invalid status error")
	}

	c.mustRun("admin", "add-balance", strconv.Itoa(id), "250")
	if got := c.fake.Balance(id); got != 950 {
		t.Errorf("balance = %v, want 950", got)
	}

	out = c.mustRun("admin", "users")
	assertContains(t, out, "0700000006", "UGX 950")
}

func TestMpesa(t *testing.T) {
	c := newCLI(t, false)
	c.fake.SeedUser("0700000007", "1234", 0)
	c.mustRun("login", "0700000007", "--pin", "1234")

	out := c.mustRun("mpesa", "pay", "254700000007", "500")
	assertContains(t, out, "Payment of UGX 500 started", "ws_CO_")

	out = c.mustRun("mpesa", "transactions")
	assertContains(t, out, "254700000007", "UGX 500")

	c.mustRun("mpesa", "reconcile")
}

func TestJournal(t *testing.T) {
	c := newCLI(t, true)
	c.fake.SeedUser("0700000008", "1234", 1000)
	c.mustRun("login", "0700000008", "--pin", "1234")
	c.mustRun("bets", "place", "--stake", "100", "--pick", "Candidate A=2")

	out := c.mustRun("journal")
	assertContains(t, out, "place-bet", "POST api/bets", "login")

	out = c.mustRun("journal", "--operation", "place-bet")
	if strings.Contains(out, "login") {
		t.Errorf("operation filter ignored:\n%s", out)
	}
}

func TestJournal_Disabled(t *testing.T) {
	c := newCLI(t, false)
	if _, err := c.run("journal"); !errors.Is(err, errNoJournal) {
		t.Errorf("err = %v, want errNoJournal", err)
	}
}

func TestConfigValidate(t *testing.T) {
	c := newCLI(t, false)
	out := c.mustRun("config", "validate")
	assertContains(t, out, "Config is valid", "Credential: file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("api_base_url: ftp://example.com\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := c.run("config", "validate", bad); err == nil {
		t.Error("expected schema error for ftp URL")
	}
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"version"}, &out, &bytes.Buffer{}); err != nil {
		t.Fatalf("version: %v", err)
	}
	assertContains(t, out.String(), "betctl ")
}

func TestParsePick(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantOdds float64
		wantErr  bool
	}{
		{"Candidate A=1.45", "Candidate A", 1.45, false},
		{" Candidate = B = 2 ", "Candidate = B", 2, false},
		{"Candidate A", "", 0, true},
		{"=2", "", 0, true},
		{"Candidate A=abc", "", 0, true},
		{"Candidate A=0.5", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sel, err := parsePick(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (sel.Candidate != tt.wantName || sel.Odds != tt.wantOdds) {
				t.Errorf("got %+v", sel)
			}
		})
	}
}

func TestMoney(t *testing.T) {
	tests := map[float64]string{
		0:       "UGX 0",
		1000:    "UGX 1,000",
		12500.5: "UGX 12,500.5",
		1234567: "UGX 1,234,567",
	}
	for in, want := range tests {
		if got := money(in); got != want {
			t.Errorf("money(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	if v, err := parseAmount("1,500"); err != nil || v != 1500 {
		t.Errorf("parseAmount(1,500) = %v, %v", v, err)
	}
	for _, in := range []string{"0", "-5", "ten"} {
		if _, err := parseAmount(in); err == nil {
			t.Errorf("parseAmount(%q): expected error", in)
		}
	}
}

