package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/wirebus/internal/cliconfig"
	"github.com/bft-labs/wirebus/pkg/adapter"
	"github.com/bft-labs/wirebus/pkg/bus"
	"github.com/bft-labs/wirebus/pkg/log"

	_ "github.com/bft-labs/wirebus/pkg/adapter/tcp"
	_ "github.com/bft-labs/wirebus/pkg/adapter/udp"
	_ "github.com/bft-labs/wirebus/pkg/adapter/unixsock"
	_ "github.com/bft-labs/wirebus/pkg/adapter/ws"
	_ "github.com/bft-labs/wirebus/pkg/encoder/jsoncodec"
	_ "github.com/bft-labs/wirebus/pkg/encoder/rawcodec"
)

// listener is the optional server side of an adapter. tcp, unix and ws
// implement it; udp does not.
type listener interface {
	Listen(addr string, accept func(adapter.Socket)) error
}

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logw := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "wirebus",
		Short:   "Multiplexed pub/sub bus over a single connection",
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.wirebus/config.toml)")
	pf.StringVar(&cfg.Hostname, "hostname", cfg.Hostname, "remote hostname (socket path for the unix adapter)")
	pf.IntVar(&cfg.Port, "port", cfg.Port, "remote port")
	pf.StringVar(&cfg.Adapter, "adapter", cfg.Adapter, "transport adapter (tcp, unix, udp, ws)")
	pf.StringVar(&cfg.Encoder, "encoder", cfg.Encoder, "frame encoder (json, raw)")
	pf.DurationVar(&cfg.BundleEvery, "bundle-every", cfg.BundleEvery, "batching interval per channel")
	pf.IntVar(&cfg.BundleMaxBytes, "bundle-max-bytes", cfg.BundleMaxBytes, "flush early once queued bytes reach this (0 disables)")
	pf.DurationVar(&cfg.TickEvery, "tick-every", cfg.TickEvery, "shared flush pulse interval for the daemon")
	pf.DurationVar(&cfg.SocketTimeout, "timeout", cfg.SocketTimeout, "dial timeout")
	pf.BoolVar(&cfg.Stats, "stats", cfg.Stats, "emit per-batch packet/byte counters")

	root.AddCommand(
		serveCmd(&cfg, &cfgPath, logw),
		sendCmd(&cfg, &cfgPath, logw),
		listenCmd(&cfg, &cfgPath, logw),
	)

	if err := root.Execute(); err != nil {
		logw.Error().Err(err).Msg("wirebus")
		os.Exit(1)
	}
}

// applyLayers finishes the config precedence chain: the defaults and
// explicit flags already live in cfg; file and env values fill in the
// rest. Returns the config file path actually consulted.
func applyLayers(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) (string, error) {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return "", fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return "", err
		}
	}
	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return "", err
	}
	return cfgFile, nil
}

func busOptions(cfg cliconfig.Config) bus.Options {
	return bus.Options{
		Hostname: cfg.Hostname,
		Port:     cfg.Port,
		Adapter:  cfg.Adapter,
		Encoder:  cfg.Encoder,
		Bundler: bus.BundlerOptions{
			Every:    cfg.BundleEvery,
			MaxBytes: cfg.BundleMaxBytes,
		},
		Stats:         cfg.Stats,
		SocketTimeout: cfg.SocketTimeout,
	}
}

// peerEvents reaps a daemon-side client once its peer goes away.
type peerEvents struct {
	bus.BaseEventHandler
	disconnected func()
}

func (e *peerEvents) OnDisconnect(bus.DisconnectEvent) { e.disconnected() }

func serveCmd(cfg *cliconfig.Config, cfgPath *string, logw zerolog.Logger) *cobra.Command {
	var channels []string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the echo daemon: frames received on served channels are batched back to the peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, err := applyLayers(cmd, cfg, *cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logw.Info().Interface("config", *cfg).Msg("configuration")

			ad, err := adapter.Lookup(cfg.Adapter)
			if err != nil {
				return err
			}
			ln, ok := ad.(listener)
			if !ok {
				return fmt.Errorf("adapter %q cannot listen", cfg.Adapter)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			tick := bus.NewTick(cfg.TickEvery)
			tick.Start(ctx)

			registry := prometheus.NewRegistry()
			if metricsAddr != "" {
				go serveMetrics(ctx, metricsAddr, registry, logw)
			}

			busLog := log.NewZerologAdapterWithLogger(logw)
			opts := busOptions(*cfg)

			var mu sync.Mutex
			clients := map[*bus.Client]struct{}{}

			accept := func(sock adapter.Socket) {
				var c *bus.Client
				ev := &peerEvents{disconnected: func() {
					mu.Lock()
					delete(clients, c)
					mu.Unlock()
					logw.Info().Str("client", c.ID()).Msg("peer disconnected")
				}}

				c, err := bus.NewClient(opts,
					bus.WithLogger(busLog),
					bus.WithTick(tick),
					bus.WithMetricsRegistry(registry),
					bus.WithEventHandler(ev),
				)
				if err != nil {
					logw.Error().Err(err).Msg("spawn client")
					_ = sock.Close()
					return
				}
				for _, name := range channels {
					c.Subscribe(name, bus.HandlerFunc(func(channel string, packet []byte) {
						c.Send(channel, packet)
					}), nil)
				}
				mu.Lock()
				clients[c] = struct{}{}
				mu.Unlock()

				// Adopt only after the client is registered, so the read
				// loop cannot race the bookkeeping above.
				c.Use(sock)
				logw.Info().Str("client", c.ID()).Msg("peer connected")
			}

			if err := ln.Listen(cfg.ListenAddr, accept); err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			logw.Info().Str("addr", cfg.ListenAddr).Strs("channels", channels).Msg("serving")

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				w := cliconfig.NewConfigWatcher(cfgFile, logw, nil)
				go w.Run(ctx)
			}

			<-ctx.Done()
			logw.Info().Msg("shutting down")

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if err := ad.Stop(stopCtx); err != nil {
				logw.Error().Err(err).Msg("adapter stop")
			}

			mu.Lock()
			remaining := make([]*bus.Client, 0, len(clients))
			for c := range clients {
				remaining = append(remaining, c)
			}
			mu.Unlock()
			for _, c := range remaining {
				c.Destroy()
			}
			tick.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "listen address (socket path for the unix adapter)")
	cmd.Flags().StringSliceVar(&channels, "channels", []string{"default"}, "channel names to serve")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the prometheus /metrics endpoint (empty disables)")
	return cmd
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logw zerolog.Logger) {
	srv := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logw.Error().Err(err).Msg("metrics server")
	}
}

// cliEvents turns the asynchronous connect/error/disconnect events into
// channels the one-shot commands can wait on.
type cliEvents struct {
	bus.BaseEventHandler
	connected    chan struct{}
	disconnected chan struct{}
	errs         chan error

	connOnce sync.Once
	discOnce sync.Once
}

func newCLIEvents() *cliEvents {
	return &cliEvents{
		connected:    make(chan struct{}),
		disconnected: make(chan struct{}),
		errs:         make(chan error, 1),
	}
}

func (e *cliEvents) OnConnect(bus.ConnectEvent) {
	e.connOnce.Do(func() { close(e.connected) })
}

func (e *cliEvents) OnDisconnect(bus.DisconnectEvent) {
	e.discOnce.Do(func() { close(e.disconnected) })
}

func (e *cliEvents) OnError(err error) {
	select {
	case e.errs <- err:
	default:
	}
}

func (e *cliEvents) waitConnected(d time.Duration) error {
	select {
	case <-e.connected:
		return nil
	case err := <-e.errs:
		return err
	case <-time.After(d):
		return fmt.Errorf("connect timed out after %v", d)
	}
}

func sendCmd(cfg *cliconfig.Config, cfgPath *string, logw zerolog.Logger) *cobra.Command {
	var channelName string
	var now, once bool

	cmd := &cobra.Command{
		Use:   "send [payload]...",
		Short: "Publish packets to a channel and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := applyLayers(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ev := newCLIEvents()
			c, err := bus.NewClient(busOptions(*cfg),
				bus.WithLogger(log.NewZerologAdapterWithLogger(logw)),
				bus.WithEventHandler(ev),
			)
			if err != nil {
				return err
			}
			defer c.Destroy()

			c.Use(nil)
			if err := ev.waitConnected(cfg.SocketTimeout); err != nil {
				return err
			}

			for _, arg := range args {
				switch {
				case now:
					c.SendNow(channelName, []byte(arg))
				case once:
					c.SendOnce(channelName, []byte(arg))
				default:
					c.Send(channelName, []byte(arg))
				}
			}
			c.Flush()
			logw.Info().Str("channel", channelName).Int("packets", len(args)).Msg("sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&channelName, "channel", "default", "channel name to publish on")
	cmd.Flags().BoolVar(&now, "now", false, "bypass batching, one frame per payload")
	cmd.Flags().BoolVar(&once, "once", false, "trump semantics: only the last queued payload survives a flush")
	return cmd
}

func listenCmd(cfg *cliconfig.Config, cfgPath *string, logw zerolog.Logger) *cobra.Command {
	var channelName string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Subscribe to a channel and print received packets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := applyLayers(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			ev := newCLIEvents()
			c, err := bus.NewClient(busOptions(*cfg),
				bus.WithLogger(log.NewZerologAdapterWithLogger(logw)),
				bus.WithEventHandler(ev),
			)
			if err != nil {
				return err
			}
			defer c.Destroy()

			c.Subscribe(channelName, bus.HandlerFunc(func(channel string, packet []byte) {
				fmt.Printf("%s: %s\n", channel, packet)
			}), nil)

			c.Use(nil)
			if err := ev.waitConnected(cfg.SocketTimeout); err != nil {
				return err
			}
			logw.Info().Str("channel", channelName).Msg("listening")

			select {
			case <-ctx.Done():
			case <-ev.disconnected:
				logw.Info().Msg("connection closed by peer")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&channelName, "channel", "default", "channel name to subscribe to")
	return cmd
}
