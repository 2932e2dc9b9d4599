package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreatePollRequest carries amounts in display units (for example "0.1");
// they are converted to base units with the configured decimals.
type CreatePollRequest struct {
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	Stake           string   `json:"stake"`
	DurationMinutes int64    `json:"duration_minutes"`
	DemoMode        bool     `json:"demo_mode"`
}

type PollResponse struct {
	PollID        uint64     `json:"poll_id"`
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	Stake         AmountView `json:"stake"`
	Creator       string     `json:"creator"`
	DemoMode      bool       `json:"demo_mode"`
	CreatedAt     string     `json:"created_at"`
	EndTime       string     `json:"end_time"`
	Resolved      bool       `json:"resolved"`
	WinningOption *int       `json:"winning_option,omitempty"`
	HouseFee      AmountView `json:"house_fee"`
	Emergency     bool       `json:"emergency,omitempty"`
	Replayed      bool       `json:"replayed,omitempty"`
}

type ListPollsResponse struct {
	Items []PollResponse `json:"items"`
}

// AmountView renders one quantity both as exact base units and as a decimal.
type AmountView struct {
	BaseUnits string `json:"base_units"`
	Display   string `json:"display"`
}

type VoteRequest struct {
	OptionID int    `json:"option_id"`
	Value    string `json:"value"`
}

type VoteResponse struct {
	PollID    uint64     `json:"poll_id"`
	Voter     string     `json:"voter"`
	OptionID  int        `json:"option_id"`
	Amount    AmountView `json:"amount"`
	CreatedAt string     `json:"created_at"`
}

type DemoVoteRequest struct {
	OptionID int    `json:"option_id"`
	Token    string `json:"token"`
}

type DemoVoteResponse struct {
	PollID   uint64 `json:"poll_id"`
	OptionID int    `json:"option_id"`
	Counted  bool   `json:"counted"`
}

type ResolveResponse struct {
	PollID        uint64     `json:"poll_id"`
	WinningOption int        `json:"winning_option"`
	TotalPool     AmountView `json:"total_pool"`
	HouseFee      AmountView `json:"house_fee"`
	Emergency     bool       `json:"emergency"`
}

type ClaimResponse struct {
	PollID uint64     `json:"poll_id"`
	Voter  string     `json:"voter"`
	Amount AmountView `json:"amount"`
}

type BatchClaimRequest struct {
	Identities []string `json:"identities"`
}

type BatchClaimSkipped struct {
	Voter  string `json:"voter"`
	Reason string `json:"reason"`
}

// BatchClaimResponse lists the identities paid before any failure. Error is
// set when a storage failure stopped the batch early.
type BatchClaimResponse struct {
	PollID  uint64              `json:"poll_id"`
	Payout  AmountView          `json:"payout"`
	Paid    []string            `json:"paid"`
	Skipped []BatchClaimSkipped `json:"skipped"`
	Error   *ErrorResponse      `json:"error,omitempty"`
}

type TalliesResponse struct {
	PollID     uint64       `json:"poll_id"`
	VoteCounts []uint64     `json:"vote_counts"`
	Pools      []AmountView `json:"pools"`
	TotalPool  AmountView   `json:"total_pool"`
}

type PotentialWinningsResponse struct {
	PollID   uint64     `json:"poll_id"`
	OptionID int        `json:"option_id"`
	Payout   AmountView `json:"payout"`
}

type UserVoteResponse struct {
	PollID   uint64     `json:"poll_id"`
	Voter    string     `json:"voter"`
	HasVoted bool       `json:"has_voted"`
	OptionID *int       `json:"option_id,omitempty"`
	Amount   AmountView `json:"amount"`
	Claimed  bool       `json:"claimed"`
}

type PollStatusResponse struct {
	PollID               uint64 `json:"poll_id"`
	Active               bool   `json:"active"`
	Ended                bool   `json:"ended"`
	Resolved             bool   `json:"resolved"`
	TimeRemainingSeconds int64  `json:"time_remaining_seconds"`
}

type TreasuryResponse struct {
	Owner        string     `json:"owner"`
	HouseBalance AmountView `json:"house_balance"`
}

type WithdrawResponse struct {
	Owner  string     `json:"owner"`
	Amount AmountView `json:"amount"`
}

type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}
