package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	carthttp "github.com/dmehra2102/Cartified/internal/cart/infrastructure/http"
	cart "github.com/dmehra2102/Cartified/internal/cart/domain"
	"github.com/dmehra2102/Cartified/internal/catalog/infrastructure/memory"
	"github.com/dmehra2102/Cartified/internal/order/application"
	"github.com/dmehra2102/Cartified/internal/order/infrastructure/chain"
	orderhttp "github.com/dmehra2102/Cartified/internal/order/infrastructure/http"
	"github.com/dmehra2102/Cartified/internal/order/infrastructure/ipfs"
	orderkafka "github.com/dmehra2102/Cartified/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/Cartified/internal/order/infrastructure/postgres"
	walletapp "github.com/dmehra2102/Cartified/internal/wallet/application"
	walletgrpc "github.com/dmehra2102/Cartified/internal/wallet/infrastructure/grpc"
	wallethttp "github.com/dmehra2102/Cartified/internal/wallet/infrastructure/http"
	"github.com/dmehra2102/Cartified/internal/wallet/infrastructure/ens"
	walletrpc "github.com/dmehra2102/Cartified/internal/wallet/infrastructure/rpc"
	"github.com/dmehra2102/Cartified/pkg/inflight"
	"github.com/dmehra2102/Cartified/pkg/outbox"
	"github.com/dmehra2102/Cartified/pkg/shutdown"
	"github.com/dmehra2102/Cartified/pkg/tracing"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	mineTimeout = chain.DefaultMineTimeout
	// inflightTTL outlasts the longest guarded transaction so the redis key
	// cannot expire while a confirmation is still waiting to be mined.
	inflightTTL = 2 * mineTimeout
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP API, outbox relay and health server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func serve(parent context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	log := opts.logger()

	ctx, cancel := shutdown.WithSignals(parent)
	defer cancel()

	tp, err := tracing.Init(ctx, "cartified", cfg.OTELEndpoint, log)
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()

	// Postgres ledger and outbox
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := orderpg.Migrate(ctx, pool); err != nil {
		return err
	}
	ledger := orderpg.NewLedger(log, pool)
	store := orderpg.NewOutboxStore(log, pool)

	writer := orderkafka.NewWriter(cfg.KafkaAddr)
	defer writer.Close()
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, store, dispatch, "cartified-relay")

	// Confirmation guard, shared across instances when redis is configured
	var guard inflight.Guard = inflight.NewMemory()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		guard = inflight.NewRedis(rdb, inflightTTL)
	}

	// Wallet session
	provider, err := walletrpc.Dial(ctx, log, cfg.Wallet.RPCURL, cfg.Wallet.PollInterval)
	if err != nil {
		return err
	}
	defer provider.Close()
	walletCfg := walletapp.Config{
		ExpectedChainID: cfg.Chain.ChainID,
		Networks:        cfg.WalletNetworks(),
	}
	if cfg.Wallet.NameRPCURL != "" {
		mainnet, err := ethclient.DialContext(ctx, cfg.Wallet.NameRPCURL)
		if err != nil {
			return err
		}
		defer mainnet.Close()
		walletCfg.Resolver = ens.NewResolver(log, mainnet)
	}
	wallet := walletapp.NewManager(log, provider, walletCfg)
	defer wallet.Disconnect()
	if ok, err := wallet.Resume(ctx); err != nil {
		log.Warn("wallet session not resumed", "err", err)
	} else if ok {
		log.Info("wallet session resumed", "account", wallet.Session().Account)
	}

	// Chain
	eth, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return err
	}
	defer eth.Close()
	orders := chain.NewService(log, eth, wallet, guard, chain.Config{
		Address:     cfg.Chain.ContractAddress,
		DeployBlock: cfg.Chain.DeployBlock,
		MineTimeout: mineTimeout,
	})

	pinata := ipfs.NewPinata(log, ipfs.Config{
		Endpoint: cfg.IPFS.Endpoint,
		Gateway:  cfg.IPFS.Gateway,
		JWT:      cfg.IPFS.JWT,
		Timeout:  cfg.IPFS.Timeout,
	})

	basket := cart.NewCart()
	checkout := application.NewCheckout(log, basket, wallet, pinata, orders, ledger, application.CheckoutConfig{
		Rate:        cfg.Checkout.EthUSDRate,
		ExplorerURL: cfg.Chain.ExplorerURL,
	})
	delivery := application.NewDelivery(log, wallet, orders, ledger, application.DeliveryConfig{
		Network: cfg.Chain.Network,
		Guard:   guard,
	})
	loyalty := application.NewLoyalty(log, wallet, orders, pinata)

	// gRPC health
	health := walletgrpc.NewHealth(log, wallet)
	defer health.Close()
	gs, err := walletgrpc.Run(log, cfg.GRPCAddr, health)
	if err != nil {
		return err
	}
	defer gs.GracefulStop()

	// HTTP server
	r := chi.NewRouter()
	r.Mount("/wallet", wallethttp.NewHandler(log, wallet).Routes())
	r.Mount("/store", carthttp.NewHandler(log, memory.NewRepository(memory.Seed()), basket).Routes())
	r.Mount("/", orderhttp.NewHandler(log, checkout, delivery, loyalty, ledger, wallet).Routes())
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     r,
		ReadTimeout: 5 * time.Second,
		// checkout waits for the order transaction to be mined
		WriteTimeout: 2 * time.Minute,
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "grpc_addr", cfg.GRPCAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("cartified shutdown complete")
	return nil
}
