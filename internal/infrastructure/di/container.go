package di

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"invoicewallet/internal/adapters/inbound/http/controllers"
	httpRouter "invoicewallet/internal/adapters/inbound/http/router"
	devtestchain "invoicewallet/internal/adapters/outbound/chain/devtest"
	evmchain "invoicewallet/internal/adapters/outbound/chain/evm"
	memorypersistence "invoicewallet/internal/adapters/outbound/persistence/memory"
	"invoicewallet/internal/adapters/outbound/persistence/postgresql"
	postgresqlinvoice "invoicewallet/internal/adapters/outbound/persistence/postgresql/invoice"
	postgresqlsettlement "invoicewallet/internal/adapters/outbound/persistence/postgresql/settlement"
	postgresqlshared "invoicewallet/internal/adapters/outbound/persistence/postgresql/shared"
	"invoicewallet/internal/application/dto"
	portsin "invoicewallet/internal/application/ports/in"
	portsout "invoicewallet/internal/application/ports/out"
	"invoicewallet/internal/application/use_cases"
	"invoicewallet/internal/domain/policies"
	"invoicewallet/internal/infrastructure/config"
	"invoicewallet/internal/infrastructure/httpserver"
	"invoicewallet/internal/infrastructure/scheduler"
)

type Container struct {
	Database                     *sql.DB
	Chain                        portsout.ChainGateway
	Server                       *httpserver.Server
	InitializePersistenceUseCase portsin.InitializePersistenceUseCase
	CreateInvoiceUseCase         portsin.CreateInvoiceUseCase
	InvoiceQueriesUseCase        portsin.InvoiceQueriesUseCase
	ReconcileInvoicesUseCase     portsin.ReconcileInvoicesUseCase
	SweepInvoicesUseCase         portsin.SweepInvoicesUseCase
	DirectPaymentUseCase         portsin.DirectPaymentUseCase
	SettlePayoutUseCase          portsin.SettlePayoutUseCase
	Scheduler                    *scheduler.Worker
	closers                      []func()
}

// Close releases the long-lived handles in reverse construction order.
func (c Container) Close() {
	closeAll(c.closers)
}

// Persistence groups the stores one persistence mode provides. Bootstrap and
// Database stay nil for modes without a schema.
type Persistence struct {
	Ledger       portsout.InvoiceLedger
	Transactions portsout.SettlementTransactionLog
	Bootstrap    portsout.PersistenceBootstrapGateway
	Database     *sql.DB
	Close        func()
}

type ChainGatewayBuilder func(ctx context.Context, cfg config.Config, logger *log.Logger) (portsout.ChainGateway, func(), error)

type PersistenceBuilder func(cfg config.Config, logger *log.Logger) (Persistence, error)

var chainGatewayBuilders = map[string]ChainGatewayBuilder{
	"devtest": func(_ context.Context, cfg config.Config, logger *log.Logger) (portsout.ChainGateway, func(), error) {
		native := make(map[string]dto.TokenMetadata, len(cfg.Networks))
		for _, network := range cfg.Networks {
			native[network.Network] = dto.TokenMetadata{Symbol: network.NativeSymbol, Decimals: network.NativeDecimals}
		}
		gateway := devtestchain.NewGateway(devtestchain.Config{
			Networks: cfg.NetworkNames(),
			Native:   native,
		}, logger)
		return gateway, func() {}, nil
	},
	"evm": func(ctx context.Context, cfg config.Config, logger *log.Logger) (portsout.ChainGateway, func(), error) {
		evmConfig := evmchain.Config{RPCTimeout: cfg.RPCTimeout}
		for _, network := range cfg.Networks {
			evmConfig.Networks = append(evmConfig.Networks, evmchain.NetworkConfig{
				Network:        network.Network,
				RPCURL:         network.RPCURL,
				WalletFactory:  network.WalletFactory,
				HoldingWallet:  network.HoldingWallet,
				NativeSymbol:   network.NativeSymbol,
				NativeDecimals: network.NativeDecimals,
			})
		}
		if cfg.SignerKeystorePath != "" {
			signer, err := evmchain.LoadKeystoreSigner(cfg.SignerKeystorePath, cfg.SignerKeystorePassword)
			if err != nil {
				return nil, nil, err
			}
			evmConfig.Signer = signer
		} else if logger != nil {
			logger.Printf("evm chain gateway running read-only reason=no_signer_keystore")
		}

		gateway, err := evmchain.Dial(ctx, evmConfig, logger)
		if err != nil {
			return nil, nil, err
		}
		return gateway, gateway.Close, nil
	},
}

var persistenceBuilders = map[string]PersistenceBuilder{
	"memory": func(_ config.Config, logger *log.Logger) (Persistence, error) {
		if logger != nil {
			logger.Printf("persistence running in memory; invoices are lost on exit")
		}
		return Persistence{
			Ledger:       memorypersistence.NewInvoiceLedger(),
			Transactions: memorypersistence.NewSettlementLog(),
			Close:        func() {},
		}, nil
	},
	"postgres": func(cfg config.Config, logger *log.Logger) (Persistence, error) {
		poolOptions := postgresqlshared.DefaultPoolOptions()
		if cfg.DBMaxOpenConns > 0 {
			poolOptions.MaxOpenConns = cfg.DBMaxOpenConns
			poolOptions.MaxIdleConns = cfg.DBMaxOpenConns
		}
		databasePool, err := postgresqlshared.NewDatabasePool(cfg.DatabaseURL, poolOptions, logger)
		if err != nil {
			return Persistence{}, err
		}
		return Persistence{
			Ledger:       postgresqlinvoice.NewRepository(databasePool, logger),
			Transactions: postgresqlsettlement.NewRepository(databasePool, logger),
			Bootstrap: postgresql.NewPersistenceBootstrapGateway(
				databasePool,
				cfg.DatabaseTarget,
				cfg.MigrationsPath,
				logger,
			),
			Database: databasePool,
			Close:    func() { _ = databasePool.Close() },
		}, nil
	},
}

var buildersMu sync.RWMutex

func RegisterChainGatewayBuilder(mode string, builder ChainGatewayBuilder) {
	normalizedMode := strings.ToLower(strings.TrimSpace(mode))
	if normalizedMode == "" || builder == nil {
		return
	}

	buildersMu.Lock()
	defer buildersMu.Unlock()
	chainGatewayBuilders[normalizedMode] = builder
}

func RegisterPersistenceBuilder(mode string, builder PersistenceBuilder) {
	normalizedMode := strings.ToLower(strings.TrimSpace(mode))
	if normalizedMode == "" || builder == nil {
		return
	}

	buildersMu.Lock()
	defer buildersMu.Unlock()
	persistenceBuilders[normalizedMode] = builder
}

func Build(ctx context.Context, cfg config.Config, logger *log.Logger) (Container, error) {
	persistence, buildErr := buildPersistence(cfg, logger)
	if buildErr != nil {
		return Container{}, buildErr
	}
	closers := []func(){persistence.Close}

	chainGateway, closeChain, buildErr := buildChainGateway(ctx, cfg, logger)
	if buildErr != nil {
		persistence.Close()
		return Container{}, buildErr
	}
	closers = append(closers, closeChain)

	clock := use_cases.NewSystemClock()
	random := use_cases.NewSystemRandomSource()
	deriver := use_cases.NewWalletDeriver(
		chainGateway,
		policies.NewTimeBucketPolicy(cfg.TimeBucketWidth, cfg.TimeBucketRepeatLen),
		random,
	)
	tracker := use_cases.NewTransactionTracker(
		chainGateway,
		persistence.Transactions,
		clock,
		cfg.TransactionPollInterval,
		cfg.TransactionTimeout,
	)

	createInvoiceUseCase := use_cases.NewCreateInvoiceUseCase(persistence.Ledger, chainGateway, deriver, random, clock)
	invoiceQueriesUseCase := use_cases.NewInvoiceQueriesUseCase(persistence.Ledger, clock)
	reconcileInvoicesUseCase := use_cases.NewReconcileInvoicesUseCase(
		persistence.Ledger,
		chainGateway,
		clock,
		use_cases.ReconcileInvoicesOptions{
			InvoiceTimeout:     cfg.InvoiceTimeout,
			BalanceChunkSize:   cfg.BalanceChunkSize,
			BalanceConcurrency: cfg.BalanceConcurrency,
		},
	)
	sweepInvoicesUseCase := use_cases.NewSweepInvoicesUseCase(
		persistence.Ledger,
		chainGateway,
		persistence.Transactions,
		tracker,
		clock,
		use_cases.SweepInvoicesOptions{
			NetworkTokens:      cfg.SweepTokens(),
			BalanceChunkSize:   cfg.BalanceChunkSize,
			BalanceConcurrency: cfg.BalanceConcurrency,
		},
	)
	directPaymentUseCase := use_cases.NewDirectPaymentUseCase(chainGateway)
	settlePayoutUseCase := use_cases.NewSettlePayoutUseCase(chainGateway, persistence.Transactions, tracker, clock)

	var initializePersistenceUseCase portsin.InitializePersistenceUseCase
	if persistence.Bootstrap != nil {
		initializePersistenceUseCase = use_cases.NewInitializePersistenceUseCase(persistence.Bootstrap)
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = uuid.NewString()
	}
	var locker scheduler.CycleLocker
	if cfg.RedisURL != "" {
		redisClient, err := scheduler.NewRedisClient(cfg.RedisURL)
		if err != nil {
			closeAll(closers)
			return Container{}, fmt.Errorf("redis client: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		locker = scheduler.NewRedisLocker(redisClient, workerID)
	}
	schedulerWorker := scheduler.NewWorker(
		scheduler.Options{
			Enabled:            cfg.SchedulerEnabled,
			Networks:           cfg.NetworkNames(),
			ReconcileInterval:  cfg.ReconcilePollInterval,
			SweepInterval:      cfg.SweepPollInterval,
			ReconcileLookback:  cfg.ReconcileLookback,
			SweepWindowStart:   cfg.SweepWindowStart,
			SweepWindowEnd:     cfg.SweepWindowEnd,
			NetworkConcurrency: cfg.NetworkConcurrency,
			LockTTL:            cfg.SchedulerLockTTL,
			WorkerID:           workerID,
		},
		reconcileInvoicesUseCase,
		sweepInvoicesUseCase,
		locker,
		scheduler.DefaultMetrics(),
		logger,
	)

	healthController := controllers.NewHealthController(use_cases.NewGetHealthUseCase(persistence.Bootstrap), logger)
	router := httpRouter.New(httpRouter.Dependencies{
		HealthController: healthController,
		MetricsHandler:   promhttp.Handler(),
	})
	server := httpserver.New(cfg.Address(), router, logger)

	return Container{
		Database:                     persistence.Database,
		Chain:                        chainGateway,
		Server:                       server,
		InitializePersistenceUseCase: initializePersistenceUseCase,
		CreateInvoiceUseCase:         createInvoiceUseCase,
		InvoiceQueriesUseCase:        invoiceQueriesUseCase,
		ReconcileInvoicesUseCase:     reconcileInvoicesUseCase,
		SweepInvoicesUseCase:         sweepInvoicesUseCase,
		DirectPaymentUseCase:         directPaymentUseCase,
		SettlePayoutUseCase:          settlePayoutUseCase,
		Scheduler:                    schedulerWorker,
		closers:                      closers,
	}, nil
}

func buildChainGateway(ctx context.Context, cfg config.Config, logger *log.Logger) (portsout.ChainGateway, func(), error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.ChainMode))

	buildersMu.RLock()
	builder, exists := chainGatewayBuilders[mode]
	buildersMu.RUnlock()
	if !exists {
		return nil, nil, fmt.Errorf("unsupported chain mode: %s", cfg.ChainMode)
	}

	gateway, closeGateway, err := builder(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build %s chain gateway: %w", mode, err)
	}
	if closeGateway == nil {
		closeGateway = func() {}
	}
	return gateway, closeGateway, nil
}

func buildPersistence(cfg config.Config, logger *log.Logger) (Persistence, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.PersistenceMode))

	buildersMu.RLock()
	builder, exists := persistenceBuilders[mode]
	buildersMu.RUnlock()
	if !exists {
		return Persistence{}, fmt.Errorf("unsupported persistence mode: %s", cfg.PersistenceMode)
	}

	persistence, err := builder(cfg, logger)
	if err != nil {
		return Persistence{}, fmt.Errorf("build %s persistence: %w", mode, err)
	}
	if persistence.Close == nil {
		persistence.Close = func() {}
	}
	return persistence, nil
}

func closeAll(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
