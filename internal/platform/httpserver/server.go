package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	pollledger "stakepoll/contexts/staked-voting/poll-ledger"
	domainerrors "stakepoll/contexts/staked-voting/poll-ledger/domain/errors"
	ledgerhttp "stakepoll/contexts/staked-voting/poll-ledger/transport/http"
	_ "stakepoll/internal/platform/httpserver/docs"
	"stakepoll/internal/platform/metrics"

	httpSwagger "github.com/swaggo/http-swagger"
)

const maxBodyBytes = 1 << 20

type Server struct {
	mux     *http.ServeMux
	handler http.Handler
	http    *http.Server
	logger  *slog.Logger
	addr    string
	ledger  pollledger.Module
}

// New registers the ledger routes. metricsRegistry may be nil, in which case
// /metrics is not served and requests are not instrumented.
func New(
	ledger pollledger.Module,
	metricsRegistry *metrics.Registry,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		ledger: ledger,
	}
	s.registerRoutes()
	s.handler = s.mux
	if metricsRegistry != nil {
		s.mux.Handle("GET /metrics", metricsRegistry.Handler())
		s.handler = metricsRegistry.Middleware(s.mux)
	}
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start blocks until the listener fails or Shutdown is called. A clean
// shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.mux.HandleFunc("POST /api/v1/polls", s.handleCreatePoll)
	s.mux.HandleFunc("GET /api/v1/polls", s.handleListPolls)
	s.mux.HandleFunc("GET /api/v1/polls/{poll_id}", s.handleGetPoll)
	s.mux.HandleFunc("POST /api/v1/polls/{poll_id}/votes", s.handleVote)
	s.mux.HandleFunc("POST /api/v1/polls/{poll_id}/demo-votes", s.handleDemoVote)
	s.mux.HandleFunc("POST /api/v1/polls/{poll_id}/resolve", s.handleResolve)
	s.mux.HandleFunc("POST /api/v1/polls/{poll_id}/emergency-resolve", s.handleEmergencyResolve)
	s.mux.HandleFunc("POST /api/v1/polls/{poll_id}/claims", s.handleClaim)
	s.mux.HandleFunc("POST /api/v1/polls/{poll_id}/claims/batch", s.handleBatchClaim)
	s.mux.HandleFunc("GET /api/v1/polls/{poll_id}/tallies", s.handleTallies)
	s.mux.HandleFunc("GET /api/v1/polls/{poll_id}/potential-winnings", s.handlePotentialWinnings)
	s.mux.HandleFunc("GET /api/v1/polls/{poll_id}/votes/{voter_id}", s.handleUserVote)
	s.mux.HandleFunc("GET /api/v1/polls/{poll_id}/status", s.handlePollStatus)

	s.mux.HandleFunc("GET /api/v1/treasury", s.handleTreasury)
	s.mux.HandleFunc("POST /api/v1/treasury/withdraw", s.handleWithdraw)
	s.mux.HandleFunc("POST /api/v1/treasury/owner", s.handleTransferOwnership)
}

// handleCreatePoll godoc
// @Summary Create a poll
// @Tags polls
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Creator identity"
// @Param Idempotency-Key header string false "Replay key"
// @Param request body ledgerhttp.CreatePollRequest true "Poll"
// @Success 201 {object} ledgerhttp.PollResponse
// @Router /api/v1/polls [post]
func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.CreatePollRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.ledger.Handler.CreatePollHandler(r.Context(), userID, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListPolls(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, ok := optionalInt(w, query.Get("limit"), "invalid_limit", "limit must be an integer")
	if !ok {
		return
	}
	offset, ok := optionalInt(w, query.Get("offset"), "invalid_offset", "offset must be an integer")
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.ListPollsHandler(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pathPollID(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.GetPollHandler(r.Context(), pollID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleVote godoc
// @Summary Cast a staked vote
// @Tags votes
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Voter identity"
// @Param poll_id path int true "Poll id"
// @Param request body ledgerhttp.VoteRequest true "Vote"
// @Success 201 {object} ledgerhttp.VoteResponse
// @Router /api/v1/polls/{poll_id}/votes [post]
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	pollID, ok := pathPollID(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.VoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.ledger.Handler.VoteHandler(r.Context(), userID, pollID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDemoVote(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pathPollID(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.DemoVoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.ledger.Handler.DemoVoteHandler(r.Context(), pollID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, false)
}

func (s *Server) handleEmergencyResolve(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, true)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, emergency bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	pollID, ok := pathPollID(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.ResolvePollHandler(r.Context(), userID, pollID, emergency)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	pollID, ok := pathPollID(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.ClaimWinningsHandler(r.Context(), userID, pollID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBatchClaim godoc
// @Summary Pay winners of a resolved poll in one call
// @Description Entries whose transfer fails are skipped as transfer_failed. A storage failure stops the batch and the response lists the entries paid so far with the error.
// @Tags claims
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Poll creator identity"
// @Param poll_id path int true "Poll id"
// @Param request body ledgerhttp.BatchClaimRequest true "Identities"
// @Success 200 {object} ledgerhttp.BatchClaimResponse
// @Failure 500 {object} ledgerhttp.BatchClaimResponse
// @Router /api/v1/polls/{poll_id}/claims/batch [post]
func (s *Server) handleBatchClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	pollID, ok := pathPollID(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.BatchClaimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.ledger.Handler.BatchClaimWinningsHandler(r.Context(), userID, pollID, req)
	if err != nil {
		if len(resp.Paid) == 0 && len(resp.Skipped) == 0 {
			writeDomainError(w, err)
			return
		}
		status, body := mapDomainError(err)
		resp.Error = &body
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTallies(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pathPollID(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.TalliesHandler(r.Context(), pollID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePotentialWinnings(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pathPollID(w, r)
	if !ok {
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("option_id"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "invalid_option", "option_id query parameter is required")
		return
	}
	optionID, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_option", "option_id must be an integer")
		return
	}
	resp, err := s.ledger.Handler.PotentialWinningsHandler(r.Context(), pollID, optionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserVote(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pathPollID(w, r)
	if !ok {
		return
	}
	voterID := strings.TrimSpace(r.PathValue("voter_id"))
	if voterID == "" {
		writeError(w, http.StatusBadRequest, "invalid_voter", "voter_id is required")
		return
	}
	resp, err := s.ledger.Handler.UserVoteHandler(r.Context(), pollID, voterID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePollStatus(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pathPollID(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.PollStatusHandler(r.Context(), pollID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.TreasuryHandler(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.WithdrawHouseFeesHandler(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.TransferOwnershipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.ledger.Handler.TransferOwnershipHandler(r.Context(), userID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}

func pathPollID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	pollID, err := strconv.ParseUint(r.PathValue("poll_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_poll_id", "poll_id must be a non-negative integer")
		return 0, false
	}
	return pollID, true
}

func optionalInt(w http.ResponseWriter, raw string, code string, message string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, code, message)
		return 0, false
	}
	return value, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, body := mapDomainError(err)
	writeJSON(w, status, body)
}

func mapDomainError(err error) (int, ledgerhttp.ErrorResponse) {
	status, code := http.StatusInternalServerError, "internal_error"
	message := "internal server error"
	switch {
	case errors.Is(err, ledgerhttp.ErrInvalidAmount):
		status, code = http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, domainerrors.ErrInvalidOptionsCount):
		status, code = http.StatusBadRequest, "invalid_options_count"
	case errors.Is(err, domainerrors.ErrInvalidDuration):
		status, code = http.StatusBadRequest, "invalid_duration"
	case errors.Is(err, domainerrors.ErrInvalidOption):
		status, code = http.StatusBadRequest, "invalid_option"
	case errors.Is(err, domainerrors.ErrIncorrectStake):
		status, code = http.StatusBadRequest, "incorrect_stake"
	case errors.Is(err, domainerrors.ErrInvalidPollInput):
		status, code = http.StatusBadRequest, "invalid_poll_input"
	case errors.Is(err, domainerrors.ErrInvalidDemoToken):
		status, code = http.StatusBadRequest, "invalid_demo_token"
	case errors.Is(err, domainerrors.ErrInvalidOwner):
		status, code = http.StatusBadRequest, "invalid_owner"
	case errors.Is(err, domainerrors.ErrUnauthenticated):
		status, code = http.StatusUnauthorized, "missing_user"
	case errors.Is(err, domainerrors.ErrNotOwner):
		status, code = http.StatusForbidden, "not_owner"
	case errors.Is(err, domainerrors.ErrNotPollCreator):
		status, code = http.StatusForbidden, "not_poll_creator"
	case errors.Is(err, domainerrors.ErrPollNotFound):
		status, code = http.StatusNotFound, "poll_not_found"
	case errors.Is(err, domainerrors.ErrPollEnded):
		status, code = http.StatusConflict, "poll_ended"
	case errors.Is(err, domainerrors.ErrPollNotEnded):
		status, code = http.StatusConflict, "poll_not_ended"
	case errors.Is(err, domainerrors.ErrAlreadyVoted):
		status, code = http.StatusConflict, "already_voted"
	case errors.Is(err, domainerrors.ErrPollNotResolved):
		status, code = http.StatusConflict, "poll_not_resolved"
	case errors.Is(err, domainerrors.ErrAlreadyResolved):
		status, code = http.StatusConflict, "already_resolved"
	case errors.Is(err, domainerrors.ErrAlreadyClaimed):
		status, code = http.StatusConflict, "already_claimed"
	case errors.Is(err, domainerrors.ErrDemoModeOnly):
		status, code = http.StatusConflict, "demo_mode_only"
	case errors.Is(err, domainerrors.ErrIdempotencyConflict):
		status, code = http.StatusConflict, "idempotency_conflict"
	case errors.Is(err, domainerrors.ErrNoWinnings):
		status, code = http.StatusUnprocessableEntity, "no_winnings"
	case errors.Is(err, domainerrors.ErrNothingToWithdraw):
		status, code = http.StatusUnprocessableEntity, "nothing_to_withdraw"
	case errors.Is(err, domainerrors.ErrTransferFailed):
		status, code = http.StatusBadGateway, "transfer_failed"
		message = domainerrors.ErrTransferFailed.Error()
	}
	if status != http.StatusInternalServerError && status != http.StatusBadGateway {
		message = err.Error()
	}
	return status, ledgerhttp.ErrorResponse{Code: code, Message: message}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ledgerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
