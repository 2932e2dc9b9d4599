package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	"stakepoll/internal/platform/metrics"
)

func scrape(t *testing.T, registry *metrics.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics handler, got %d", rr.Code)
	}
	return rr.Body.String()
}

func TestLedgerCountersAreExported(t *testing.T) {
	registry := metrics.New("ledger")
	registry.PollCreated(true)
	registry.VoteCast(false)
	registry.VoteCast(false)
	registry.PollResolved(false, entities.NewAmount(6_000))
	registry.WinningsClaimed(true, entities.NewAmount(147_000))
	registry.ClaimSkipped("losing_option")

	body := scrape(t, registry)
	for _, want := range []string{
		`ledger_polls_created_total{demo="true"} 1`,
		`ledger_votes_cast_total{demo="false"} 2`,
		`ledger_polls_resolved_total{emergency="false"} 1`,
		`ledger_house_fees_base_units_total 6000`,
		`ledger_claims_paid_total{batch="true"} 1`,
		`ledger_payouts_base_units_total 147000`,
		`ledger_batch_claims_skipped_total{reason="losing_option"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output", want)
		}
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	registry := metrics.New("api")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /polls/{poll_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := registry.Middleware(mux)

	for _, path := range []string{"/polls/1", "/polls/2", "/unknown"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		_, _ = io.Copy(io.Discard, rr.Body)
	}

	body := scrape(t, registry)
	if !strings.Contains(body, `api_http_requests_total{code="404",route="GET /polls/{poll_id}"} 2`) {
		t.Fatalf("expected pattern label to collapse path values, body=%s", body)
	}
	if !strings.Contains(body, `api_http_requests_total{code="404",route="unmatched"} 1`) {
		t.Fatalf("expected unmatched route label, body=%s", body)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	first := metrics.New("iso")
	second := metrics.New("iso")
	first.PollCreated(false)

	if strings.Contains(scrape(t, second), `iso_polls_created_total{demo="false"}`) {
		t.Fatalf("expected second registry to be unaffected")
	}
}
