package pollledger

import (
	"log/slog"
	"time"

	httpadapter "stakepoll/contexts/staked-voting/poll-ledger/adapters/http"
	"stakepoll/contexts/staked-voting/poll-ledger/adapters/memory"
	"stakepoll/contexts/staked-voting/poll-ledger/application/commands"
	"stakepoll/contexts/staked-voting/poll-ledger/application/queries"
	"stakepoll/contexts/staked-voting/poll-ledger/application/workers"
	"stakepoll/contexts/staked-voting/poll-ledger/domain/entities"
	"stakepoll/contexts/staked-voting/poll-ledger/ports"
	httptransport "stakepoll/contexts/staked-voting/poll-ledger/transport/http"
)

const defaultAmountDecimals = 18

type Module struct {
	Handler httpadapter.Handler
	Relay   workers.OutboxRelay
	Store   *memory.Store
	Wallet  *memory.Wallet
}

type Dependencies struct {
	Ledger         ports.Ledger
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxRepository
	Publisher      ports.EventPublisher
	Transfer       ports.FundsTransfer
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Metrics        ports.LedgerMetrics
	AmountDecimals int32
	IdempotencyTTL time.Duration
	RelayBatchSize int
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	decimals := deps.AmountDecimals
	if decimals < 0 {
		decimals = defaultAmountDecimals
	}
	return Module{
		Handler: httpadapter.Handler{
			Registry: commands.RegistryUseCase{
				Ledger:         deps.Ledger,
				Idempotency:    deps.Idempotency,
				Clock:          deps.Clock,
				IDGen:          deps.IDGen,
				Metrics:        deps.Metrics,
				IdempotencyTTL: deps.IdempotencyTTL,
				Logger:         deps.Logger,
			},
			Voting: commands.VotingUseCase{
				Ledger:  deps.Ledger,
				Clock:   deps.Clock,
				IDGen:   deps.IDGen,
				Metrics: deps.Metrics,
				Logger:  deps.Logger,
			},
			Resolution: commands.ResolutionUseCase{
				Ledger:  deps.Ledger,
				Clock:   deps.Clock,
				IDGen:   deps.IDGen,
				Metrics: deps.Metrics,
				Logger:  deps.Logger,
			},
			Payouts: commands.PayoutUseCase{
				Ledger:   deps.Ledger,
				Transfer: deps.Transfer,
				Clock:    deps.Clock,
				IDGen:    deps.IDGen,
				Metrics:  deps.Metrics,
				Logger:   deps.Logger,
			},
			Treasury: commands.TreasuryUseCase{
				Ledger:   deps.Ledger,
				Transfer: deps.Transfer,
				Clock:    deps.Clock,
				IDGen:    deps.IDGen,
				Logger:   deps.Logger,
			},
			Polls: queries.PollQueryUseCase{
				Ledger: deps.Ledger,
				Clock:  deps.Clock,
			},
			Amounts: httptransport.AmountCodec{Decimals: decimals},
			Logger:  deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.RelayBatchSize,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires the ledger over the in-process store and wallet.
// Publisher may be nil when the relay is not run.
func NewInMemoryModule(owner entities.Principal, publisher ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore(owner)
	wallet := memory.NewWallet()
	module := NewModule(Dependencies{
		Ledger:         store,
		Idempotency:    store,
		Outbox:         store,
		Publisher:      publisher,
		Transfer:       wallet,
		Clock:          store,
		IDGen:          store,
		AmountDecimals: defaultAmountDecimals,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	module.Wallet = wallet
	return module
}
