package main

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pokt-network/bridge-core/attestation"
	"github.com/pokt-network/bridge-core/balances"
	"github.com/pokt-network/bridge-core/bridge"
	"github.com/pokt-network/bridge-core/config"
	"github.com/pokt-network/bridge-core/db"
	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/ethclient"
	"github.com/pokt-network/bridge-core/gateway"
	"github.com/pokt-network/bridge-core/logging"
	"github.com/pokt-network/bridge-core/presenter"
	"github.com/pokt-network/bridge-core/repository"
	"github.com/pokt-network/bridge-core/txstore"
)

func main() {
	logger := logging.New()

	cfg, err := config.ReadConfigFromFile("config.yml")
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel.Level())

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		err2 := http.ListenAndServe(":2112", nil)
		if err2 != nil {
			logger.WithError(err2).Fatal("can't start listener for prometheus metrics")
		}
	}()

	var repo *repository.Repo
	if cfg.DBConfig != nil {
		dbConn, err2 := db.ConnectToDBAndMigrate(cfg.DBConfig)
		if err2 != nil {
			logger.WithError(err2).Fatal("can't connect to database and apply migrations")
		}
		defer dbConn.Close()
		repo = repository.NewRepo(dbConn)
	}

	store, err := txstore.NewStore(cfg.Store.Path, cfg.Store.MaxEntries, logger)
	if err != nil {
		logger.WithError(err).Fatal("can't open transfer store")
	}

	clients := make(map[entity.Chain]ethclient.Client, len(cfg.Chains))
	for name, chainCfg := range cfg.Chains {
		if !name.IsEVM() {
			continue
		}
		client, err2 := ethclient.NewClient(chainCfg.RPC.Host, chainCfg.RPC.Timeout.Duration(), chainCfg.ChainID)
		if err2 != nil {
			logger.WithError(err2).WithField("chain", name).Fatal("can't dial rpc client")
		}
		clients[name] = client
	}

	if cfg.Signer == nil || cfg.Signer.PrivateKey == "" {
		logger.Fatal("signer private_key is required")
	}
	gw, err := gateway.NewEVMGateway(logger, clients, cfg.Signer.PrivateKey)
	if err != nil {
		logger.WithError(err).Fatal("can't initialize evm gateway")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	indexer := attestation.NewClient(cfg.Attestation.BaseURL)
	poller := attestation.NewPoller(
		indexer,
		cfg.Attestation.PollInterval.Duration(),
		cfg.Attestation.MaxAttempts,
		logger,
	)

	tracker := balances.NewTracker(cfg.Balances.RefreshInterval.Duration(), logger)
	for name := range clients {
		contracts := cfg.ChainContracts(name)
		if contracts == nil {
			continue
		}
		registerBalance(tracker, gw, name, "xpokt", contracts.XPOKT)
		registerBalance(tracker, gw, name, "wpokt", contracts.WPOKT)
	}
	go tracker.Start(ctx)

	pr := presenter.NewPresenter(logger.WithField("service", "presenter"), store, tracker, repo)
	pr.SetFlows(buildFlows(cfg, gw, store, poller, indexer, logger))
	hub := pr.Hub()
	store.OnChange(func(tx entity.StoredTransaction) {
		hub.Broadcast("transfer", tx)
		if repo != nil && tx.Status.Terminal() {
			archiveTransfer(ctx, logger, repo, &tx)
		}
	})
	if cfg.Presenter != nil {
		go func() {
			err2 := pr.Serve(cfg.Presenter.Host)
			if err2 != nil {
				logger.WithError(err2).Fatal("can't serve presenter")
			}
		}()
	}

	// Transfers interrupted mid-attestation resume their wait so the signed
	// payload is already on file when the user comes back to claim.
	for _, tx := range store.Resumable("") {
		if tx.Status != entity.TxStatusWaitingAttestation {
			continue
		}
		go resumeAttestationWait(ctx, logger, poller, store, tx)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	for range c {
		cancel()
		logger.Warn("caught CTRL-C, gracefully terminating")
		return
	}
}

func buildFlows(cfg *config.Config, gw *gateway.EVMGateway, store *txstore.Store, poller *attestation.Poller, indexer *attestation.Client, logger logging.Logger) *presenter.Flows {
	flows := &presenter.Flows{
		EVM: make(map[string]*bridge.EVMFlow),
		Relay: attestation.NewRelayPoller(
			indexer,
			cfg.Attestation.RelayPollInterval.Duration(),
			cfg.Attestation.RelayTimeout.Duration(),
			logger,
		),
	}

	for source := range cfg.Chains {
		if !source.IsEVM() {
			continue
		}
		contracts := cfg.ChainContracts(source)
		if contracts == nil || contracts.BridgeAdapter.IsZero() {
			continue
		}
		for dest, destCfg := range cfg.Chains {
			if dest == source || !dest.IsEVM() {
				continue
			}
			flows.EVM[presenter.FlowKey(source, dest)] = bridge.NewEVMFlow(bridge.EVMFlowConfig{
				SourceChain:       source,
				DestChain:         dest,
				WPOKT:             contracts.WPOKT.Addr(),
				XPOKT:             contracts.XPOKT.Addr(),
				Lockbox:           contracts.Lockbox.Addr(),
				BridgeAdapter:     contracts.BridgeAdapter.Addr(),
				DestBridgeChainID: destCfg.EmitterChainID,
			}, gw, logger)
		}
	}

	solanaCfg, ok := cfg.Chains[entity.ChainSolana]
	ethContracts := cfg.ChainContracts(entity.ChainEthereum)
	if ok && ethContracts != nil && !ethContracts.TokenBridge.IsZero() {
		rpcHost := ""
		if solanaCfg.RPC != nil {
			rpcHost = solanaCfg.RPC.Host
		}
		tokenMint := ""
		if solanaContracts := cfg.ChainContracts(entity.ChainSolana); solanaContracts != nil {
			tokenMint = solanaContracts.TokenMint
		}
		alt := gateway.NewSolanaGateway(rpcHost, tokenMint, logger)
		toAlt := bridge.NewCompoundAltFlow(bridge.ToAltFlowConfig{
			SourceChain: entity.ChainEthereum,
			WPOKT:       ethContracts.WPOKT.Addr(),
			XPOKT:       ethContracts.XPOKT.Addr(),
			Lockbox:     ethContracts.Lockbox.Addr(),
			TokenBridge: ethContracts.TokenBridge.Addr(),
			AltChainID:  solanaCfg.EmitterChainID,
		}, gw, alt, store, poller, logger)
		fromAlt := bridge.NewAltToEVMFlow(bridge.FromAltFlowConfig{
			DestChain:   entity.ChainEthereum,
			WPOKT:       ethContracts.WPOKT.Addr(),
			XPOKT:       ethContracts.XPOKT.Addr(),
			Lockbox:     ethContracts.Lockbox.Addr(),
			TokenBridge: ethContracts.TokenBridge.Addr(),
		}, gw, alt, store, poller, logger)
		flows.Unified = bridge.NewUnifiedFlow(toAlt, fromAlt, logger)
	}
	return flows
}

func registerBalance(tracker *balances.Tracker, gw *gateway.EVMGateway, chain entity.Chain, token string, addr config.Address) {
	if addr.IsZero() {
		return
	}
	tracker.Register(string(chain)+"/"+token, func(ctx context.Context) (*big.Int, error) {
		return gw.ReadBalance(ctx, chain, addr.Addr(), gw.SignerAddress())
	})
}

func resumeAttestationWait(ctx context.Context, logger logging.Logger, poller *attestation.Poller, store *txstore.Store, tx entity.StoredTransaction) {
	att, err := poller.WaitForAttestation(ctx, tx.SourceTxHash, tx.Attestation, func(coords entity.AttestationInfo) {
		store.Update(tx.ID, txstore.Patch{Attestation: &coords}) //nolint:errcheck
	})
	if err != nil {
		if ctx.Err() == nil {
			logger.WithError(err).WithField("id", tx.ID).Warn("resumed attestation wait did not finish")
		}
		return
	}
	status := entity.TxStatusAttestationReady
	if _, err = store.Update(tx.ID, txstore.Patch{Status: &status, Attestation: att}); err != nil {
		logger.WithError(err).WithField("id", tx.ID).Error("can't persist resumed attestation")
	}
}

func archiveTransfer(ctx context.Context, logger logging.Logger, repo *repository.Repo, tx *entity.StoredTransaction) {
	err := repo.ArchivedTransfers.Ensure(ctx, &entity.ArchivedTransfer{
		TransferID:       tx.ID,
		SourceChain:      tx.SourceChain,
		DestChain:        tx.DestChain,
		Amount:           tx.Amount,
		AmountRaw:        tx.AmountRaw,
		Status:           tx.Status,
		SourceTxHash:     tx.SourceTxHash,
		DestTxHash:       tx.DestTxHash,
		ConversionTxHash: tx.ConversionTxHash,
		InitiatorAddress: tx.InitiatorAddress,
	})
	if err != nil {
		logger.WithError(err).WithField("id", tx.ID).Error("can't archive finished transfer")
	}
}
