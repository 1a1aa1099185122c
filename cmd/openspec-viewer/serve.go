package main

import (
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/c360studio/openspec-viewer/config"
	"github.com/c360studio/openspec-viewer/notify"
	openspecwatcher "github.com/c360studio/openspec-viewer/processor/openspec-watcher"
	viewerapi "github.com/c360studio/openspec-viewer/processor/viewer-api"
	"github.com/c360studio/openspec-viewer/storage"
)

// serveOptions are the flags of the serve (root) command.
type serveOptions struct {
	port      int
	host      string
	noOpen    bool
	noWatch   bool
	staticDir string
	natsURL   string
}

func (o *serveOptions) bind(fs *pflag.FlagSet) {
	fs.IntVarP(&o.port, "port", "p", 0, "Port to run server on (default 3000)")
	fs.StringVar(&o.host, "host", "", "Interface to bind (default 127.0.0.1)")
	fs.BoolVar(&o.noOpen, "no-open", false, "Do not open browser automatically")
	fs.BoolVar(&o.noWatch, "no-watch", false, "Do not watch the directory for changes")
	fs.StringVar(&o.staticDir, "static-dir", "", "Directory holding the frontend build")
	fs.StringVar(&o.natsURL, "nats-url", "", "Publish change notifications to this NATS server")
}

// apply overrides cfg with the flags that were set.
func (o *serveOptions) apply(cfg *config.Config, fs *pflag.FlagSet) {
	cfg.Merge(&config.Config{
		Server: config.ServerConfig{Host: o.host, Port: o.port, StaticDir: o.staticDir},
		NATS:   config.NATSConfig{URL: o.natsURL},
	})
	if fs.Changed("no-open") {
		cfg.Server.OpenBrowser = !o.noOpen
	}
	if fs.Changed("no-watch") {
		cfg.Watch.Enabled = !o.noWatch
	}
}

func runServe(cmd *cobra.Command, global *globalOptions, opts *serveOptions, path string) error {
	cfg, logger, err := global.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	opts.apply(cfg, cmd.Flags())
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	root, err := resolveRoot(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Starting OpenSpec Viewer...")
	fmt.Fprintf(out, "Path: %s\n", root)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := viewerapi.Listen(cfg.Addr())
	if err != nil {
		if errors.Is(err, viewerapi.ErrPortInUse) {
			return fmt.Errorf("port %d is already in use; try a different port: %s --port %d",
				cfg.Server.Port, appName, cfg.Server.Port+1)
		}
		return err
	}

	store := storage.NewStore(root, logger)
	metrics := viewerapi.NewMetrics()
	hub := viewerapi.NewHub(logger, metrics)

	svcOpts := []viewerapi.ServiceOption{viewerapi.WithHub(hub), viewerapi.WithMetrics(metrics)}
	if cfg.Watch.Enabled {
		watcher, err := openspecwatcher.NewWatcher(cfg.Watch, root, logger)
		if err != nil {
			ln.Close()
			return fmt.Errorf("create watcher: %w", err)
		}
		svcOpts = append(svcOpts, viewerapi.WithWatcher(watcher))
	}
	if cfg.NATS.URL != "" {
		notifier, err := notify.NewNATSNotifier(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			// Notifications are optional; the viewer still works without them.
			logger.Warn("NATS notifications disabled", "url", cfg.NATS.URL, "error", err)
		} else {
			svcOpts = append(svcOpts, viewerapi.WithNotifier(notifier))
		}
	}

	svc := viewerapi.NewService(store, logger, svcOpts...)
	if err := svc.Start(ctx); err != nil {
		ln.Close()
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		if err := svc.Stop(); err != nil {
			logger.Warn("Service stopped with errors", "error", err)
		}
	}()

	api := viewerapi.NewAPI(store, hub, metrics, cfg.Server.StaticDir, logger)
	url := serverURL(ln.Addr())
	fmt.Fprintf(out, "\nOpenSpec Viewer running at %s\n", url)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	if cfg.Server.OpenBrowser {
		if err := browser.OpenURL(url); err != nil {
			logger.Warn("Failed to open browser", "url", url, "error", err)
		}
	}

	err = viewerapi.Serve(ctx, ln, api.Handler(), logger, hub.Close)
	fmt.Fprintln(out, "\nShutting down...")
	return err
}

// serverURL returns the browser URL for a listener address. Wildcard binds
// are reported as localhost.
func serverURL(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "http://" + addr.String()
	}
	host := tcp.IP.String()
	if tcp.IP.IsUnspecified() || tcp.IP.IsLoopback() {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprint(tcp.Port)))
}
