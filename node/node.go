package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/armon/go-metrics"
	"github.com/armon/go-metrics/prometheus"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/furyaxyz/elysium-bridge/bridge"
	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/orchestrator"
	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/bridge/watcher"
	"github.com/furyaxyz/elysium-bridge/crypto"
	"github.com/furyaxyz/elysium-bridge/jsonrpc"
	secretsHelper "github.com/furyaxyz/elysium-bridge/secrets/helper"
)

const (
	stateFileName       = "bridge.db"
	notificationsBuffer = 256
	shutdownTimeout     = 5 * time.Second
	metricsServiceName  = "elysium"
)

// Node runs the bridge core together with the watcher, the orchestrator and the RPC endpoints
type Node struct {
	config *config.Config
	logger hclog.Logger

	bridge       *bridge.Bridge
	watcher      *watcher.Watcher
	orchestrator *orchestrator.Orchestrator
	rpc          *jsonrpc.Server
	metrics      *http.Server
}

// NewNode opens the node state, initializes it from the genesis file on first start
// and creates the node services
func NewNode(cfg *config.Config, logger hclog.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	st, err := state.NewState(filepath.Join(cfg.DataDir, stateFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open state: %w", err)
	}

	b, err := bridge.New(st, cfg.Bridge, logger)
	if err != nil {
		_ = st.Close()

		return nil, err
	}

	n := &Node{
		config: cfg,
		logger: logger.Named("node"),
		bridge: b,
	}

	if err := n.initGenesis(st); err != nil {
		_ = b.Close()

		return nil, err
	}

	var sink watcher.EventSink = watcher.EventSinkFn(func(event *types.Event) error {
		n.logger.Debug("observed event", "nonce", event.Nonce, "kind", event.Kind)

		return nil
	})

	if cfg.Orchestrator.Enabled {
		key, err := loadOrchestratorKey(cfg.Orchestrator, logger)
		if err != nil {
			_ = b.Close()

			return nil, fmt.Errorf("failed to read orchestrator key: %w", err)
		}

		client := bridge.NewLocalClient(b)
		n.orchestrator = orchestrator.New(key, client, client, orchestrator.Config{
			TickInterval: cfg.Orchestrator.TickInterval.Duration,
		}, logger)
		sink = n.orchestrator

		n.logger.Info("orchestrator enabled", "address", key.Address())
	}

	n.watcher = watcher.New(cfg.Bridge.ExternalChainID, cfg.Bridge.BridgeContractAddr, b, sink, logger)
	n.rpc = jsonrpc.NewServer(
		jsonrpc.NewBridge(b, jsonrpc.NewThrottling(cfg.RequestsPerSecond, time.Second)), logger)

	return n, nil
}

func loadOrchestratorKey(cfg config.Orchestrator, logger hclog.Logger) (*crypto.Key, error) {
	if cfg.Secrets == nil {
		return crypto.ReadKeyFile(cfg.KeyFile)
	}

	manager, err := secretsHelper.NewSecretsManager(cfg.Secrets, logger)
	if err != nil {
		return nil, err
	}

	return secretsHelper.LoadOrchestratorKey(manager)
}

// Bridge returns the bridge core of the node
func (n *Node) Bridge() *bridge.Bridge {
	return n.bridge
}

// Run starts the node services and ends a bridge block every block time until ctx is cancelled
func (n *Node) Run(ctx context.Context) error {
	if err := n.setupTelemetry(); err != nil {
		return err
	}

	if err := n.watcher.Start(n.config.DataDir, n.config.Bridge); err != nil {
		return err
	}

	if err := n.rpc.Start(n.config.JSONRPCAddr); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return n.produceBlocks(ctx)
	})

	g.Go(func() error {
		n.logNotifications(ctx)

		return nil
	})

	if n.orchestrator != nil {
		g.Go(func() error {
			return n.orchestrator.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()

		return n.shutdownServers()
	})

	return g.Wait()
}

// Close stops the services and closes the state
func (n *Node) Close() error {
	n.watcher.Close()

	if n.orchestrator != nil {
		n.orchestrator.Close()
	}

	return n.bridge.Close()
}

func (n *Node) initGenesis(st *state.State) error {
	initialized, err := st.IsGenesisInitialized()
	if err != nil {
		return err
	}

	if initialized {
		return nil
	}

	genesis, err := bridge.LoadGenesis(n.config.GenesisPath)
	if err != nil {
		return err
	}

	if err := n.bridge.InitGenesis(genesis); err != nil {
		return fmt.Errorf("failed to initialize genesis: %w", err)
	}

	n.logger.Info("genesis initialized", "path", n.config.GenesisPath, "validators", len(genesis.Valset))

	return nil
}

func (n *Node) produceBlocks(ctx context.Context) error {
	ticker := time.NewTicker(n.config.BlockTime.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := n.endBlock(); err != nil {
				return err
			}
		}
	}
}

func (n *Node) endBlock() (*bridge.EndBlockResult, error) {
	height, err := n.bridge.CurrentHeight()
	if err != nil {
		return nil, err
	}

	res, err := n.bridge.EndBlock(height)
	if err != nil {
		return nil, fmt.Errorf("failed to end block %d: %w", height, err)
	}

	if len(res.Applied) > 0 || len(res.Cut) > 0 || len(res.TimedOut) > 0 {
		n.logger.Info("block finalized", "height", height, "applied", res.Applied,
			"cut", len(res.Cut), "timedOut", len(res.TimedOut))
	}

	return res, nil
}

func (n *Node) logNotifications(ctx context.Context) {
	ch, cancel := n.bridge.Subscribe(notificationsBuffer)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case notification, ok := <-ch:
			if !ok {
				return
			}

			n.logger.Debug("notification", "kind", notification.Kind, "height", notification.Height,
				"attributes", notification.Attributes)
		}
	}
}

func (n *Node) setupTelemetry() error {
	if n.config.MetricsAddr == "" {
		return nil
	}

	sink, err := prometheus.NewPrometheusSink()
	if err != nil {
		return fmt.Errorf("failed to create prometheus sink: %w", err)
	}

	metricsConf := metrics.DefaultConfig(metricsServiceName)
	metricsConf.EnableHostname = false

	if _, err := metrics.NewGlobal(metricsConf, sink); err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}

	lis, err := net.Listen("tcp", n.config.MetricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", n.config.MetricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	n.metrics = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if err := n.metrics.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("metrics server stopped", "err", err)
		}
	}()

	n.logger.Info("prometheus server started", "addr", lis.Addr().String())

	return nil
}

func (n *Node) shutdownServers() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var result error

	if err := n.rpc.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to stop json rpc server: %w", err))
	}

	if n.metrics != nil {
		if err := n.metrics.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
	}

	return result
}
