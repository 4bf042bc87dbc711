package main

import (
	"context"
	"fmt"
	"os"

	"github.com/qntx/gamelink"
	"github.com/qntx/gamelink/channel"
	"github.com/qntx/gamelink/coder"
	"github.com/qntx/gamelink/config"
	"github.com/qntx/gamelink/logger"
	"github.com/qntx/gamelink/websocket"
	"github.com/spf13/cobra"
)

type app struct {
	Cfg    config.Config
	Logger logger.Interface
}

type appKey struct{}

func newRootCmd() *cobra.Command {
	var (
		envFiles []string
		logLevel string
		debug    bool
	)

	root := &cobra.Command{
		Use:           "gamelink",
		Short:         "Game channel and API client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFiles...)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}

			l, err := logger.New(cfg.LogLevel, os.Stderr)
			if err != nil {
				return err
			}

			cmd.SetContext(withApp(cmd, &app{Cfg: cfg, Logger: l}))

			return nil
		},
	}

	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "trace frames and requests")

	root.AddCommand(newListenCmd(), newSendCmd(), newAPICmd())

	return root
}

// newDialer builds the transport selected by the configuration.
func newDialer(a *app) (gamelink.Dialer, error) {
	switch a.Cfg.Transport {
	case config.TransportCoder:
		return coder.New(coder.Config{
			Heartbeat: a.Cfg.KeepAlive,
			Logger:    a.Logger,
		}), nil
	default:
		opts := []websocket.Option{
			websocket.WithTimeout(a.Cfg.Timeout),
			websocket.WithHeaders(a.Cfg.Headers),
			websocket.WithEnvProxy(),
			websocket.WithLogger(a.Logger),
			websocket.WithDebug(a.Cfg.Debug),
		}
		if a.Cfg.KeepAlive > 0 {
			opts = append(opts, websocket.WithKeepAlive(a.Cfg.KeepAlive, nil))
		}

		return websocket.New(opts...)
	}
}

// newChannel builds a channel client from the configuration.
func newChannel(a *app, opts ...channel.Option) (*channel.Client, error) {
	d, err := newDialer(a)
	if err != nil {
		return nil, fmt.Errorf("build dialer: %w", err)
	}

	base := []channel.Option{
		channel.WithDialer(d),
		channel.WithLogger(a.Logger),
		channel.WithRetries(a.Cfg.RetryCount, a.Cfg.RetryWait, a.Cfg.RetryMaxWait),
		channel.WithDebug(a.Cfg.Debug),
	}

	return channel.New(a.Cfg.URL, append(base, opts...)...)
}

func withApp(cmd *cobra.Command, a *app) context.Context {
	return context.WithValue(cmd.Context(), appKey{}, a)
}

func getApp(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)

	return a
}
