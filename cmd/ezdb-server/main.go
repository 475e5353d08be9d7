// Command ezdb-server runs the multi-tenant SQL gateway described by the
// ezdb core: one process, one HTTP listener, lazily-opened per-database
// workers.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/ryanpbrewster/ezdb/com"
	"github.com/ryanpbrewster/ezdb/config"
	"github.com/ryanpbrewster/ezdb/database"
	"github.com/ryanpbrewster/ezdb/httpapi"
	"github.com/ryanpbrewster/ezdb/logging"
	"github.com/ryanpbrewster/ezdb/router"
	"github.com/ryanpbrewster/ezdb/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long the HTTP server waits for in-flight
// requests to finish before the process exits on SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Flags are the command's CLI flags. Each setting can also come from an
// EZDB_-prefixed environment variable or, via the Config struct, a YAML config
// file; a flag that is given takes precedence over both.
type Flags struct {
	Config string `short:"c" long:"config" description:"Path to a YAML config file (optional)"`
	Host   string `long:"host" description:"Host to bind the HTTP listener to"`
	Port   int    `long:"port" description:"Port to bind the HTTP listener to"`
	DbDir  string `long:"db-dir" description:"Directory holding per-database SQLite files (omit for in-memory databases)"`
}

func (f Flags) GetConfigPath() string      { return f.Config }
func (f Flags) IsExplicitConfigPath() bool { return f.Config != "" }

// Config is the fully resolved configuration: flags, layered over
// EZDB_-prefixed environment variables, layered over an optional YAML file.
type Config struct {
	Host     string          `yaml:"host" env:"HOST" default:"localhost"`
	Port     int             `yaml:"port" env:"PORT" default:"9000"`
	Database database.Config `yaml:",inline"`
	Logging  logging.Config  `yaml:"logging" envPrefix:"LOGGING_"`
	TLS      config.TLS      `yaml:",inline"`
}

// Validate checks constraints in the supplied configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("port must be in 1-65535, got %d", c.Port)
	}

	if err := c.Database.Validate(); err != nil {
		return errors.WithStack(err)
	}

	if c.TLS.Enable && (c.TLS.Cert == "" || c.TLS.Key == "") {
		return errors.New("tls.enable is set but cert/key are not both configured")
	}

	return c.Logging.Validate()
}

func main() {
	if err := run(); err != nil {
		utils.PrintErrorThenExit(err, 1)
	}
}

func run() error {
	var flags Flags
	if err := config.ParseFlags(&flags); err != nil {
		return err
	}

	var cfg Config
	if err := config.Load(&cfg, config.LoadOptions{
		Flags:      flags,
		EnvOptions: config.EnvOptions{Prefix: "EZDB_"},
	}); err != nil {
		return err
	}

	// CLI flags, when given, win over both the YAML file and the environment.
	if flags.Host != "" {
		cfg.Host = flags.Host
	}
	if flags.Port != 0 {
		cfg.Port = flags.Port
	}
	if flags.DbDir != "" {
		cfg.Database.Dir = flags.DbDir
	}

	lg, err := logging.NewLogging("ezdb-server", cfg.Logging)
	if err != nil {
		return errors.Wrap(err, "can't set up logging")
	}
	logger := lg.GetLogger("main")

	var factory database.Factory
	if cfg.Database.Dir == "" {
		factory = database.InMemoryFactory{Logging: lg}
		logger.Info("Using in-memory databases (no --db-dir configured)")
	} else {
		factory = database.FileSystemFactory{Dir: cfg.Database.Dir, Logging: lg}
		logger.Infow("Using on-disk databases", zap.String("dir", cfg.Database.Dir))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rtr := router.New(ctx, factory, lg)

	addr := utils.JoinHostPort(cfg.Host, cfg.Port)
	srv := httpapi.NewServer(addr, rtr, lg.GetLogger("httpapi"))

	if cfg.TLS.Enable {
		tlsConfig, err := cfg.TLS.MakeConfig(cfg.Host)
		if err != nil {
			return errors.Wrap(err, "can't build TLS config")
		}
		srv.TLSConfig = tlsConfig
	}

	group, groupCtx := errgroup.WithContext(ctx)
	com.ErrgroupReceive(groupCtx, group, com.WaitAsync(groupCtx, rtr.AsWaiter()))

	group.Go(func() error {
		logger.Infow("Listening", zap.String("addr", addr), zap.Bool("tls", cfg.TLS.Enable))

		var err error
		if cfg.TLS.Enable {
			// Certificate and key are already loaded into srv.TLSConfig by
			// MakeConfig, so no paths need to be repeated here.
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "HTTP server failed")
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "HTTP server shutdown failed")
		}
		return nil
	})

	err = group.Wait()
	stop()

	// A signal-triggered shutdown cancels ctx, which surfaces as
	// context.Canceled from the router's supervisor goroutine; that's the
	// expected way a clean shutdown ends, not a failure to report.
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}

	if err != nil {
		return err
	}

	logger.Info("Shut down cleanly")
	return nil
}
