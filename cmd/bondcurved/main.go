package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/curvelabs/bondcurve/api/handlers"
	"github.com/curvelabs/bondcurve/api/metrics"
	"github.com/curvelabs/bondcurve/api/server"
	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/bonding"
	"github.com/curvelabs/bondcurve/pkg/clickhouse"
	"github.com/curvelabs/bondcurve/pkg/journal"
	"github.com/curvelabs/bondcurve/pkg/ledger"
	"github.com/curvelabs/bondcurve/pkg/rewards"
	"github.com/curvelabs/bondcurve/pkg/store"
	"github.com/curvelabs/bondcurve/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultListenAddr = "0.0.0.0:8080"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	enablePprofFlag := flag.Bool("enable-pprof", false, "Enable pprof server")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "Address for the API server (or set LISTEN_ADDR env var)")
	allowedOriginsFlag := flag.StringSlice("allowed-origins", nil, "CORS origins allowed to call the API (empty allows any)")
	eventBufferFlag := flag.Int("event-buffer", journal.DefaultMemoryCapacity, "Entries kept in the in-memory event ring")

	// Postgres configuration
	postgresDSNFlag := flag.String("postgres-dsn", "", "Postgres connection string for curve snapshots (or set POSTGRES_DSN env var)")
	migrateFlag := flag.Bool("migrate", false, "Run Postgres migrations and exit")
	snapshotIntervalFlag := flag.Duration("snapshot-interval", store.DefaultSnapshotInterval, "Interval between curve snapshot saves")

	// ClickHouse configuration
	clickhouseAddrFlag := flag.String("clickhouse-addr", "", "ClickHouse address (host:port) for the event journal (or set CLICKHOUSE_ADDR_TCP env var)")
	clickhouseDatabaseFlag := flag.String("clickhouse-database", clickhouse.DefaultDatabase, "ClickHouse database name (or set CLICKHOUSE_DATABASE env var)")
	clickhouseUsernameFlag := flag.String("clickhouse-username", "default", "ClickHouse username (or set CLICKHOUSE_USERNAME env var)")
	clickhousePasswordFlag := flag.String("clickhouse-password", "", "ClickHouse password (or set CLICKHOUSE_PASSWORD env var)")
	clickhouseSecureFlag := flag.Bool("clickhouse-secure", false, "Enable TLS for ClickHouse Cloud (or set CLICKHOUSE_SECURE=true env var)")

	flag.Parse()

	log := logger.New(*verboseFlag)

	// Override flags with environment variables if set
	if envListenAddr := os.Getenv("LISTEN_ADDR"); envListenAddr != "" {
		*listenAddrFlag = envListenAddr
	}
	if envPostgresDSN := os.Getenv("POSTGRES_DSN"); envPostgresDSN != "" {
		*postgresDSNFlag = envPostgresDSN
	}
	if envClickhouseAddr := os.Getenv("CLICKHOUSE_ADDR_TCP"); envClickhouseAddr != "" {
		*clickhouseAddrFlag = envClickhouseAddr
	}
	if envClickhouseDatabase := os.Getenv("CLICKHOUSE_DATABASE"); envClickhouseDatabase != "" {
		*clickhouseDatabaseFlag = envClickhouseDatabase
	}
	if envClickhouseUsername := os.Getenv("CLICKHOUSE_USERNAME"); envClickhouseUsername != "" {
		*clickhouseUsernameFlag = envClickhouseUsername
	}
	if envClickhousePassword := os.Getenv("CLICKHOUSE_PASSWORD"); envClickhousePassword != "" {
		*clickhousePasswordFlag = envClickhousePassword
	}
	if os.Getenv("CLICKHOUSE_SECURE") == "true" {
		*clickhouseSecureFlag = true
	}

	if *migrateFlag {
		if *postgresDSNFlag == "" {
			return fmt.Errorf("--postgres-dsn is required for --migrate")
		}
		return store.MigrateUp(log, *postgresDSNFlag)
	}

	if *enablePprofFlag {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
	handlers.Version, handlers.Commit, handlers.Date = version, commit, date

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Event journal: always the in-memory ring, plus ClickHouse when
	// configured.
	events := journal.NewMemory(*eventBufferFlag)
	sink := journal.Journal(events)
	if *clickhouseAddrFlag != "" {
		chClient, err := clickhouse.NewClient(ctx, clickhouse.Config{
			Logger:   log,
			Addr:     *clickhouseAddrFlag,
			Database: *clickhouseDatabaseFlag,
			Username: *clickhouseUsernameFlag,
			Password: *clickhousePasswordFlag,
			Secure:   *clickhouseSecureFlag,
		})
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer chClient.Close()

		chJournal, err := journal.NewClickHouse(journal.ClickHouseConfig{
			Logger: log,
			Client: chClient,
		})
		if err != nil {
			return fmt.Errorf("create clickhouse journal: %w", err)
		}
		if err := chJournal.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure clickhouse schema: %w", err)
		}
		sink = journal.Tee(events, chJournal)
		log.Info("event journal writing to clickhouse", "addr", *clickhouseAddrFlag)
	}

	// One collateral ledger is shared by every curve; each curve gets its
	// own bonded-token ledger.
	collateral := ledger.NewMemory()
	registry := bonding.NewRegistry()

	newEngine := func(ctx context.Context, p handlers.CreateCurveParams) (*bonding.Engine, error) {
		id := uuid.New()
		dist, err := rewards.NewDistributor(rewards.Config{
			Logger: log,
			Ledger: collateral,
			Pool:   poolAccount(id),
		})
		if err != nil {
			return nil, err
		}
		return bonding.New(ctx, bonding.Config{
			Logger:            log,
			ID:                id,
			Owner:             p.Owner,
			Beneficiary:       p.Beneficiary,
			Reserve:           reserveAccount(id),
			Pool:              poolAccount(id),
			Collateral:        collateral,
			Bonded:            ledger.NewMemory(),
			BuyCurve:          p.BuyCurve,
			SellCurve:         p.SellCurve,
			ReservePercentage: p.ReservePercentage,
			SplitOnPay:        p.SplitOnPay,
			PreMint:           p.PreMint,
			MilestoneCap:      p.MilestoneCap,
			Journal:           sink,
			Distributor:       dist,
		})
	}

	h, err := handlers.New(handlers.Config{
		Logger:    log,
		Registry:  registry,
		Events:    events,
		NewEngine: newEngine,
	})
	if err != nil {
		return fmt.Errorf("create handlers: %w", err)
	}

	srvCfg := server.Config{
		Logger:         log,
		ListenAddr:     *listenAddrFlag,
		Handlers:       h,
		AllowedOrigins: *allowedOriginsFlag,
	}

	g, gctx := errgroup.WithContext(ctx)

	if *postgresDSNFlag != "" {
		pool, err := store.NewPool(gctx, log, *postgresDSNFlag)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		st, err := store.New(store.Config{Logger: log, Pool: pool})
		if err != nil {
			return fmt.Errorf("create store: %w", err)
		}
		srvCfg.Ready = pool.Ping

		snapshotter, err := store.NewSnapshotter(store.SnapshotterConfig{
			Logger:   log,
			Registry: registry,
			Saver:    st,
			Interval: *snapshotIntervalFlag,
		})
		if err != nil {
			return fmt.Errorf("create snapshotter: %w", err)
		}
		g.Go(func() error { return snapshotter.Run(gctx) })
	} else {
		log.Warn("no postgres dsn configured, curve snapshots are not persisted")
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	g.Go(func() error { return srv.Run(gctx) })

	log.Info("bondcurved started", "version", version, "listen", *listenAddrFlag)
	return g.Wait()
}

// reserveAccount derives the per-curve custody account for reserve
// collateral.
func reserveAccount(id uuid.UUID) account.Account {
	return account.Derive("reserve:" + id.String())
}

// poolAccount derives the per-curve custody account for staked tokens and
// reward collateral.
func poolAccount(id uuid.UUID) account.Account {
	return account.Derive("pool:" + id.String())
}
