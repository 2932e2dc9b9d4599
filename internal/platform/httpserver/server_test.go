package httpserver_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pollledger "stakepoll/contexts/staked-voting/poll-ledger"
	"stakepoll/contexts/staked-voting/poll-ledger/adapters/memory"
	ledgerhttp "stakepoll/contexts/staked-voting/poll-ledger/transport/http"
	"stakepoll/internal/platform/httpserver"
	"stakepoll/internal/platform/metrics"
)

type steppedClock struct {
	now time.Time
}

func (c *steppedClock) Now() time.Time {
	return c.now
}

type testServer struct {
	server *httpserver.Server
	clock  *steppedClock
	wallet *memory.Wallet
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	store := memory.NewStore("owner")
	wallet := memory.NewWallet()
	clock := &steppedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	module := pollledger.NewModule(pollledger.Dependencies{
		Ledger:         store,
		Idempotency:    store,
		Outbox:         store,
		Transfer:       wallet,
		Clock:          clock,
		IDGen:          store,
		AmountDecimals: 18,
		IdempotencyTTL: time.Hour,
	})
	return testServer{
		server: httpserver.New(module, metrics.New("test"), nil, ""),
		clock:  clock,
		wallet: wallet,
	}
}

func (ts testServer) do(t *testing.T, method string, path string, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v body=%s", err, rr.Body.String())
	}
	return out
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, rr.Code, rr.Body.String())
	}
}

func expectErrorCode(t *testing.T, rr *httptest.ResponseRecorder, want int, code string) {
	t.Helper()
	expectStatus(t, rr, want)
	body := decode[ledgerhttp.ErrorResponse](t, rr)
	if body.Code != code {
		t.Fatalf("expected error code %s, got %s", code, body.Code)
	}
}

func createPollRequest() ledgerhttp.CreatePollRequest {
	return ledgerhttp.CreatePollRequest{
		Question:        "Which chain ships first?",
		Options:         []string{"alpha", "beta", "gamma"},
		Stake:           "0.1",
		DurationMinutes: 60,
	}
}

func TestMutatingRoutesRequireUserHeader(t *testing.T) {
	ts := newTestServer(t)
	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/v1/polls", createPollRequest()},
		{http.MethodPost, "/api/v1/polls/0/votes", ledgerhttp.VoteRequest{OptionID: 0, Value: "0.1"}},
		{http.MethodPost, "/api/v1/polls/0/resolve", nil},
		{http.MethodPost, "/api/v1/polls/0/claims", nil},
		{http.MethodPost, "/api/v1/treasury/withdraw", nil},
	}
	for _, tc := range cases {
		rr := ts.do(t, tc.method, tc.path, "", tc.body)
		expectErrorCode(t, rr, http.StatusUnauthorized, "missing_user")
	}
}

func TestPollLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/v1/polls", "creator", createPollRequest())
	expectStatus(t, rr, http.StatusCreated)
	poll := decode[ledgerhttp.PollResponse](t, rr)
	if poll.PollID != 0 {
		t.Fatalf("expected first poll id 0, got %d", poll.PollID)
	}
	if poll.Stake.BaseUnits != "100000000000000000" {
		t.Fatalf("expected stake in base units, got %s", poll.Stake.BaseUnits)
	}

	for voter, option := range map[string]int{"alice": 0, "bob": 0, "carol": 1} {
		rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/votes", voter, ledgerhttp.VoteRequest{OptionID: option, Value: "0.1"})
		expectStatus(t, rr, http.StatusCreated)
	}
	rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/votes", "alice", ledgerhttp.VoteRequest{OptionID: 1, Value: "0.1"})
	expectErrorCode(t, rr, http.StatusConflict, "already_voted")

	rr = ts.do(t, http.MethodGet, "/api/v1/polls/0/potential-winnings?option_id=0", "", nil)
	expectStatus(t, rr, http.StatusOK)
	potential := decode[ledgerhttp.PotentialWinningsResponse](t, rr)
	if potential.Payout.Display != "0.147" {
		t.Fatalf("expected potential payout 0.147, got %s", potential.Payout.Display)
	}

	rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/resolve", "creator", nil)
	expectErrorCode(t, rr, http.StatusConflict, "poll_not_ended")

	ts.clock.now = ts.clock.now.Add(61 * time.Minute)
	rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/resolve", "alice", nil)
	expectErrorCode(t, rr, http.StatusForbidden, "not_poll_creator")
	rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/resolve", "creator", nil)
	expectStatus(t, rr, http.StatusOK)
	resolved := decode[ledgerhttp.ResolveResponse](t, rr)
	if resolved.WinningOption != 0 || resolved.HouseFee.Display != "0.006" {
		t.Fatalf("unexpected resolution %+v", resolved)
	}

	rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/claims", "alice", nil)
	expectStatus(t, rr, http.StatusOK)
	claim := decode[ledgerhttp.ClaimResponse](t, rr)
	if claim.Amount.BaseUnits != "147000000000000000" {
		t.Fatalf("expected payout 147000000000000000, got %s", claim.Amount.BaseUnits)
	}
	rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/claims", "alice", nil)
	expectErrorCode(t, rr, http.StatusConflict, "already_claimed")
	rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/claims", "carol", nil)
	expectErrorCode(t, rr, http.StatusUnprocessableEntity, "no_winnings")

	rr = ts.do(t, http.MethodGet, "/api/v1/polls/0/votes/alice", "", nil)
	expectStatus(t, rr, http.StatusOK)
	vote := decode[ledgerhttp.UserVoteResponse](t, rr)
	if !vote.HasVoted || !vote.Claimed {
		t.Fatalf("expected alice voted and claimed, got %+v", vote)
	}

	rr = ts.do(t, http.MethodPost, "/api/v1/treasury/withdraw", "creator", nil)
	expectErrorCode(t, rr, http.StatusForbidden, "not_owner")
	rr = ts.do(t, http.MethodPost, "/api/v1/treasury/withdraw", "owner", nil)
	expectStatus(t, rr, http.StatusOK)
	withdrawn := decode[ledgerhttp.WithdrawResponse](t, rr)
	if withdrawn.Amount.BaseUnits != "6000000000000000" {
		t.Fatalf("expected house fee withdrawal, got %s", withdrawn.Amount.BaseUnits)
	}
}

func TestCreatePollReplayReturnsOK(t *testing.T) {
	ts := newTestServer(t)
	send := func() *httptest.ResponseRecorder {
		raw, _ := json.Marshal(createPollRequest())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/polls", bytes.NewReader(raw))
		req.Header.Set("X-User-Id", "creator")
		req.Header.Set("Idempotency-Key", "create-1")
		rr := httptest.NewRecorder()
		ts.server.Handler().ServeHTTP(rr, req)
		return rr
	}

	expectStatus(t, send(), http.StatusCreated)
	rr := send()
	expectStatus(t, rr, http.StatusOK)
	if !decode[ledgerhttp.PollResponse](t, rr).Replayed {
		t.Fatalf("expected replayed response, body=%s", rr.Body.String())
	}
}

func TestRequestValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	expectErrorCode(t, ts.do(t, http.MethodGet, "/api/v1/polls/abc", "", nil), http.StatusBadRequest, "invalid_poll_id")
	expectErrorCode(t, ts.do(t, http.MethodGet, "/api/v1/polls/99", "", nil), http.StatusNotFound, "poll_not_found")
	expectErrorCode(t, ts.do(t, http.MethodGet, "/api/v1/polls?limit=x", "", nil), http.StatusBadRequest, "invalid_limit")

	bad := createPollRequest()
	bad.Options = []string{"only"}
	expectErrorCode(t, ts.do(t, http.MethodPost, "/api/v1/polls", "creator", bad), http.StatusBadRequest, "invalid_options_count")
	bad = createPollRequest()
	bad.DurationMinutes = 200_000_000
	expectErrorCode(t, ts.do(t, http.MethodPost, "/api/v1/polls", "creator", bad), http.StatusBadRequest, "invalid_duration")
	bad = createPollRequest()
	bad.Stake = "-1"
	expectErrorCode(t, ts.do(t, http.MethodPost, "/api/v1/polls", "creator", bad), http.StatusBadRequest, "invalid_amount")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls", strings.NewReader(`{"question":"q","unknown":1}`))
	req.Header.Set("X-User-Id", "creator")
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)
	expectErrorCode(t, rr, http.StatusBadRequest, "invalid_json")

	expectStatus(t, ts.do(t, http.MethodPost, "/api/v1/polls", "creator", createPollRequest()), http.StatusCreated)
	expectErrorCode(t, ts.do(t, http.MethodGet, "/api/v1/polls/0/potential-winnings", "", nil), http.StatusBadRequest, "invalid_option")
	rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/votes", "alice", ledgerhttp.VoteRequest{OptionID: 0, Value: "0.2"})
	expectErrorCode(t, rr, http.StatusBadRequest, "incorrect_stake")
	rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/demo-votes", "", ledgerhttp.DemoVoteRequest{OptionID: 0, Token: "t-1"})
	expectErrorCode(t, rr, http.StatusConflict, "demo_mode_only")
}

func TestBatchClaimSkipsEntryWhoseTransferFails(t *testing.T) {
	ts := newTestServer(t)
	expectStatus(t, ts.do(t, http.MethodPost, "/api/v1/polls", "creator", createPollRequest()), http.StatusCreated)
	for voter, option := range map[string]int{"alice": 0, "bob": 0, "erin": 0, "carol": 1} {
		rr := ts.do(t, http.MethodPost, "/api/v1/polls/0/votes", voter, ledgerhttp.VoteRequest{OptionID: option, Value: "0.1"})
		expectStatus(t, rr, http.StatusCreated)
	}
	ts.clock.now = ts.clock.now.Add(61 * time.Minute)
	expectStatus(t, ts.do(t, http.MethodPost, "/api/v1/polls/0/resolve", "creator", nil), http.StatusOK)
	ts.wallet.Reject("bob", errors.New("recipient refused"))

	rr := ts.do(t, http.MethodPost, "/api/v1/polls/0/claims/batch", "creator", ledgerhttp.BatchClaimRequest{
		Identities: []string{"alice", "carol", "bob", "dave", "erin"},
	})
	expectStatus(t, rr, http.StatusOK)
	resp := decode[ledgerhttp.BatchClaimResponse](t, rr)
	if len(resp.Paid) != 2 || resp.Paid[0] != "alice" || resp.Paid[1] != "erin" {
		t.Fatalf("expected alice and erin paid, got %+v", resp.Paid)
	}
	reasons := map[string]string{}
	for _, skipped := range resp.Skipped {
		reasons[skipped.Voter] = skipped.Reason
	}
	want := map[string]string{"carol": "losing_option", "bob": "transfer_failed", "dave": "not_voted"}
	for voter, reason := range want {
		if reasons[voter] != reason {
			t.Fatalf("expected %s skipped as %s, got %+v", voter, reason, resp.Skipped)
		}
	}
	if len(resp.Skipped) != len(want) {
		t.Fatalf("unexpected skipped entries %+v", resp.Skipped)
	}
	if resp.Error != nil {
		t.Fatalf("expected no error in body, got %+v", resp.Error)
	}

	ts.wallet.Accept("bob")
	rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/claims/batch", "creator", ledgerhttp.BatchClaimRequest{Identities: []string{"bob"}})
	expectStatus(t, rr, http.StatusOK)
	if resp := decode[ledgerhttp.BatchClaimResponse](t, rr); len(resp.Paid) != 1 || resp.Paid[0] != "bob" {
		t.Fatalf("expected bob paid on retry, got %+v", resp.Paid)
	}

	rr = ts.do(t, http.MethodPost, "/api/v1/polls/0/claims/batch", "alice", ledgerhttp.BatchClaimRequest{Identities: []string{"bob"}})
	expectErrorCode(t, rr, http.StatusForbidden, "not_poll_creator")
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	expectStatus(t, ts.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK)
	expectStatus(t, ts.do(t, http.MethodGet, "/api/v1/treasury", "", nil), http.StatusOK)

	rr := ts.do(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, rr, http.StatusOK)
	body := rr.Body.String()
	if !strings.Contains(body, `test_http_requests_total{code="200",route="GET /api/v1/treasury"} 1`) {
		t.Fatalf("expected treasury request to be counted, body=%s", body)
	}
}
