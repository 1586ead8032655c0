package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tracecap/tracecap"
	"github.com/tracecap/tracecap/config"
	"github.com/tracecap/tracecap/transport"
)

var (
	demoConfig   string
	demoSend     bool
	demoOut      string
	demoLoop     bool
	demoInterval time.Duration
)

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().StringVar(&demoConfig, "config", "", "Path to config YAML (default ~/.tracecap/config.yaml)")
	demoCmd.Flags().BoolVar(&demoSend, "send", false, "Dispatch to the configured collector instead of printing")
	demoCmd.Flags().StringVar(&demoOut, "out", "", "Append serialized events to a JSONL file")
	demoCmd.Flags().BoolVar(&demoLoop, "loop", false, "Run continuously with config hot-reload until interrupted")
	demoCmd.Flags().DurationVar(&demoInterval, "interval", 2*time.Second, "Delay between workloads in --loop mode")
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a synthetic traced workload",
	Long:  "Starts a transaction with nested spans and a captured error, then prints\nthe serialized intake records or ships them to the configured collector.",
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(demoConfig)
	if err != nil {
		return err
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	dispatcher, closeDispatcher, err := buildDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	if !demoLoop {
		return runWorkload(cfg, logger, dispatcher)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	currentCfg := func() config.Config {
		mu.Lock()
		defer mu.Unlock()
		return cfg
	}

	// Hot-reload only works against a real file.
	if demoConfig != "" {
		reloader, err := config.NewReloader(demoConfig, logger, func(next config.Config) {
			mu.Lock()
			cfg = next
			mu.Unlock()
		})
		if err != nil {
			logger.Warn("hot-reload disabled", zap.Error(err))
		} else {
			go reloader.Run(ctx)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(demoInterval)
	defer ticker.Stop()

	for {
		if err := runWorkload(currentCfg(), logger, dispatcher); err != nil {
			logger.Error("workload failed", zap.Error(err))
		}
		select {
		case <-sigCh:
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func buildDispatcher(cfg config.Config, logger *zap.Logger) (tracecap.Dispatcher, func(), error) {
	switch {
	case demoOut != "":
		fd, err := transport.NewFileDispatcher(demoOut)
		if err != nil {
			return nil, nil, err
		}
		return fd, func() { fd.Close() }, nil
	case demoSend:
		if cfg.ServerURL == "" {
			return nil, nil, errors.New("demo: --send requires server_url in config")
		}
		return transport.NewHTTPConnector(cfg, transport.WithLogger(logger)), func() {}, nil
	default:
		return transport.Discard{}, func() {}, nil
	}
}

// runWorkload records one synthetic request: two nested spans, a parallel
// sibling span, a dropped span, and one captured error.
func runWorkload(cfg config.Config, logger *zap.Logger, dispatcher tracecap.Dispatcher) error {
	agent := tracecap.New(cfg,
		tracecap.WithLogger(logger),
		tracecap.WithDispatcher(dispatcher),
		tracecap.WithSharedContext(tracecap.Context{
			"tags": map[string]any{"demo": true},
		}),
	)

	tx, err := agent.StartTransaction("GET /orders", tracecap.Context{
		"custom": map[string]any{"synthetic": true},
	})
	if err != nil {
		return err
	}

	dbSpan, err := agent.StartSpan("SELECT FROM orders", nil)
	if err != nil {
		return err
	}
	dbSpan.SetType("db.query")

	cacheSpan, err := agent.StartSpan("cache.lookup", nil)
	if err != nil {
		return err
	}
	cacheSpan.SetType("cache.get")
	time.Sleep(2 * time.Millisecond)
	cacheSpan.Stop()
	dbSpan.Stop()

	renderSpan, err := agent.StartSpan("render template", nil)
	if err != nil {
		return err
	}
	renderSpan.SetType("template.render")
	time.Sleep(1 * time.Millisecond)
	renderSpan.Stop()

	noiseSpan, err := agent.StartSpan("health probe", nil)
	if err != nil {
		return err
	}
	noiseSpan.Stop()
	noiseSpan.SetDropped(true)

	agent.CaptureError(errors.New("order 1137 has no shipping address"), nil, nil)

	if err := agent.StopTransaction("GET /orders", tracecap.Meta{Type: "request", Result: "HTTP 2xx"}); err != nil {
		return err
	}

	if demoSend || demoOut != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return agent.Send(ctx)
	}

	out, err := json.MarshalIndent(tx.Payload(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
