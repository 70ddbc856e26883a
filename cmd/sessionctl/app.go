package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/authtest"
	"github.com/MrEthical07/goAuthClient/internal/confloader"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const loggerKey = "logger"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:     "sessionctl",
		Usage:    "exercise a goAuthClient session against an auth API",
		Version:  fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:    globalFlags(),
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			loginCommand(),
			callCommand(),
			inspectCommand(),
			stressCommand(),
		},
		Before: func(c *cli.Context) error {
			// A missing .env is normal.
			_ = godotenv.Load(c.String("env-file"))

			logger, err := newLogger(c.Bool("verbose"))
			if err != nil {
				return err
			}
			c.App.Metadata[loggerKey] = logger
			return nil
		},
		After: func(c *cli.Context) error {
			if logger, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
				_ = logger.Sync()
			}
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"SESSIONCTL_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "dotenv file loaded before anything else",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "auth API base URL; empty starts the built-in fake API",
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "credential store: memory, cookie, redis",
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "redis address for --store redis; empty uses miniredis",
			EnvVars: []string{"REDIS_ADDR"},
		},
		&cli.StringFlag{
			Name:    "identifier",
			Aliases: []string{"u"},
			Usage:   "login identifier",
			EnvVars: []string{"SESSIONCTL_IDENTIFIER"},
			Value:   authtest.DefaultIdentifier,
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "login password",
			EnvVars: []string{"SESSIONCTL_PASSWORD"},
			Value:   authtest.DefaultPassword,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "development logging at debug level",
		},
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func loggerFrom(c *cli.Context) *zap.Logger {
	if logger, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// loadConfig layers the YAML file, GOAUTHCLIENT_ variables, and flags over
// DefaultConfig.
func loadConfig(c *cli.Context) (goAuthClient.Config, error) {
	overrides := map[string]any{}
	if v := c.String("base-url"); v != "" {
		overrides["api.base_url"] = v
	}
	if v := c.String("store"); v != "" {
		overrides["store.backend"] = v
	}

	cfg := goAuthClient.DefaultConfig()
	loader := confloader.NewLoader(
		confloader.WithConfigFile(c.String("config")),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// session bundles a built provider with whatever it needed started.
type session struct {
	provider *goAuthClient.Provider
	fake     *authtest.Server
	closers  []func()
}

func (s *session) Close() {
	if s.provider != nil {
		_ = s.provider.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openSession(c *cli.Context, out io.Writer) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := loggerFrom(c)
	s := &session{}

	if cfg.API.BaseURL == "" {
		fake := authtest.NewServer()
		fake.CookieMode = cfg.Store.Backend == goAuthClient.StoreCookie
		cfg.API.BaseURL = fake.URL
		s.fake = fake
		s.closers = append(s.closers, fake.Close)
		fmt.Fprintf(out, "using fake auth API at %s\n", fake.URL)
	}

	b := goAuthClient.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithNavigator(goAuthClient.NavigatorFunc(func(_ context.Context, target string) error {
			fmt.Fprintf(out, "redirect -> %s\n", target)
			return nil
		}))

	if cfg.Store.Backend == goAuthClient.StoreRedis {
		client, closeRedis, err := openRedis(c.String("redis-addr"), out)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, closeRedis)
		b = b.WithRedis(client)
	}

	p, err := b.Build()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.provider = p
	return s, nil
}

func openRedis(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

var errUsage = errors.New("invalid arguments")

func usageError(c *cli.Context, msg string) error {
	return cli.Exit(fmt.Sprintf("%s: %s (see %s --help)", errUsage, msg, c.Command.FullName()), 2)
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}
