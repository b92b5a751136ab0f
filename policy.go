package betclient

import (
	"time"

	"github.com/ugandavote/betclient/internal/cache"
)

// Logical cache keys. A key names a resource type, not a parameter set, so
// there is at most one entry per key. Entries are not scoped per user: the
// cache is cleared on every login, logout and 401 instead.
const (
	KeyBalance           = "balance"
	KeyElections         = "elections"
	KeyBetHistory        = "betHistory"
	KeyWithdrawalHistory = "withdrawalHistory"
	KeyReferralStats     = "referralStats"
	KeyAdminUsers        = "adminUsers"
	KeyAdminWithdrawals  = "adminWithdrawals"
	KeyMpesaTransactions = "mpesaTransactions"
)

// Cache tags group keys that one mutation invalidates together.
const (
	tagBalance     cache.Tag = "balance"
	tagElections   cache.Tag = "elections"
	tagBets        cache.Tag = "bets"
	tagWithdrawals cache.Tag = "withdrawals"
	tagReferrals   cache.Tag = "referrals"
	tagAdminUsers  cache.Tag = "admin-users"
	tagMpesa       cache.Tag = "mpesa"
)

type readPolicy struct {
	ttl  time.Duration
	tags []cache.Tag
}

var readPolicies = map[string]readPolicy{
	KeyBalance:           {ttl: 30 * time.Second, tags: []cache.Tag{tagBalance}},
	KeyElections:         {ttl: 5 * time.Minute, tags: []cache.Tag{tagElections}},
	KeyBetHistory:        {ttl: time.Minute, tags: []cache.Tag{tagBets}},
	KeyWithdrawalHistory: {ttl: 2 * time.Minute, tags: []cache.Tag{tagWithdrawals}},
	KeyReferralStats:     {ttl: 2 * time.Minute, tags: []cache.Tag{tagReferrals}},
	KeyAdminUsers:        {ttl: time.Minute, tags: []cache.Tag{tagAdminUsers}},
	KeyAdminWithdrawals:  {ttl: 30 * time.Second, tags: []cache.Tag{tagWithdrawals}},
	KeyMpesaTransactions: {ttl: time.Minute, tags: []cache.Tag{tagMpesa}},
}

// IsCacheKey reports whether key is a known logical cache key.
func IsCacheKey(key string) bool {
	_, ok := readPolicies[key]
	return ok
}

// DefaultTTL returns the built-in lifetime of a logical key.
func DefaultTTL(key string) (time.Duration, bool) {
	p, ok := readPolicies[key]
	return p.ttl, ok
}

// Operation names a mutating call. It labels journal entries and selects
// the invalidation rule applied on success.
type Operation string

// Operation constants.
const (
	OpRegister               Operation = "register"
	OpLogin                  Operation = "login"
	OpDeposit                Operation = "deposit"
	OpWithdraw               Operation = "withdraw"
	OpMpesaPayment           Operation = "mpesa-payment"
	OpUpdatePendingMpesa     Operation = "update-pending-mpesa"
	OpReconcileMpesa         Operation = "reconcile-mpesa"
	OpPlaceBet               Operation = "place-bet"
	OpPlaceJackpotBet        Operation = "place-jackpot-bet"
	OpAdminAddBalance        Operation = "admin-add-balance"
	OpUpdateWithdrawalStatus Operation = "update-withdrawal-status"
	OpAddElection            Operation = "add-election"
	OpUpdateElection         Operation = "update-election"
	OpDeleteElection         Operation = "delete-election"
	OpAddCandidate           Operation = "add-candidate"
	OpUpdateCandidate        Operation = "update-candidate"
	OpDeleteCandidate        Operation = "delete-candidate"
)

// invalidationRules maps each mutating operation to the tags it clears on
// success. Login and registration clear everything instead.
var invalidationRules = map[Operation][]cache.Tag{
	OpDeposit:                {tagBalance},
	OpWithdraw:               {tagBalance, tagWithdrawals},
	OpMpesaPayment:           {tagMpesa},
	OpUpdatePendingMpesa:     {tagMpesa},
	OpReconcileMpesa:         {tagMpesa},
	OpPlaceBet:               {tagBalance, tagBets},
	OpPlaceJackpotBet:        {tagBalance, tagBets},
	OpAdminAddBalance:        {tagBalance},
	OpUpdateWithdrawalStatus: {tagWithdrawals},
	OpAddElection:            {tagElections},
	OpUpdateElection:         {tagElections},
	OpDeleteElection:         {tagElections},
	OpAddCandidate:           {tagElections},
	OpUpdateCandidate:        {tagElections},
	OpDeleteCandidate:        {tagElections},
}
