package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/config"
	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"
	"golang.org/x/sync/errgroup"
)

type app struct {
	configPath string
	logLevel   string
	provider   string
	registry   *cache.Registry
	logger     logger.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and exercise configured cache providers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.registry == nil {
				return nil
			}
			return a.registry.Close(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML provider configuration")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&a.provider, "provider", "p", cache.DefaultName, "provider name")

	root.AddCommand(a.providersCommand(), a.getCommand(), a.setCommand(), a.removeCommand(), a.stampedeCommand())
	return root
}

// setup builds the registry from --config, or a single default in-memory
// provider when no configuration is given.
func (a *app) setup(ctx context.Context) error {
	f := &config.File{Providers: []config.Provider{{Type: config.TypeInMemory}}}
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		f = loaded
	}
	level := f.Level()
	if a.logLevel != "" {
		level = logger.ParseLevel(a.logLevel, level)
	}
	a.logger = logger.NewConsoleLogger(level)
	registry, err := config.Build(ctx, f, a.logger, nil)
	if err != nil {
		return err
	}
	a.registry = registry
	return nil
}

func (a *app) resolve() (cache.Provider, error) {
	return a.registry.Resolve(a.provider)
}

// resolveShared resolves a provider whose contents outlive this process.
// An in-memory provider starts empty on every invocation.
func (a *app) resolveShared() (cache.Provider, error) {
	p, err := a.resolve()
	if err != nil {
		return nil, err
	}
	if _, ok := p.(*cache.InMemory); ok {
		return nil, errors.Newf("provider %q is in-memory and does not persist between runs; use --config with a redis or composite provider", p.Name())
	}
	return p, nil
}

func parseTTL(s string) (time.Duration, error) {
	return str2duration.ParseDuration(s)
}

func (a *app) providersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range a.registry.Names() {
				p, err := a.registry.Resolve(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%T\tmax_random_seconds=%d\n", name, p, p.MaxRandomSeconds())
			}
			return nil
		},
	}
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under key (redis or composite providers)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveShared()
			if err != nil {
				return err
			}
			found, val, err := cache.Get[string](cmd.Context(), p, args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), "(absent)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), val)
			return nil
		},
	}
}

func (a *app) setCommand() *cobra.Command {
	var ttl string
	var onlyIfAbsent bool
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a string value under key (redis or composite providers)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveShared()
			if err != nil {
				return err
			}
			d, err := parseTTL(ttl)
			if err != nil {
				return err
			}
			if onlyIfAbsent {
				ok, err := p.TrySet(cmd.Context(), args[0], args[1], d)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			}
			return p.Set(cmd.Context(), args[0], args[1], d)
		},
	}
	cmd.Flags().StringVar(&ttl, "ttl", "1m", "time to live, e.g. 90s or 1d")
	cmd.Flags().BoolVar(&onlyIfAbsent, "nx", false, "only set when no live value exists")
	return cmd
}

func (a *app) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key>",
		Short: "Remove key (redis or composite providers)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveShared()
			if err != nil {
				return err
			}
			return p.Remove(cmd.Context(), args[0])
		},
	}
}

func (a *app) stampedeCommand() *cobra.Command {
	var workers int
	var ttl string
	cmd := &cobra.Command{
		Use:   "stampede",
		Short: "Race concurrent TrySet calls on a fresh key and report the winners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolve()
			if err != nil {
				return err
			}
			d, err := parseTTL(ttl)
			if err != nil {
				return err
			}
			key := "stampede:" + uuid.NewString()
			var wins atomic.Int32
			g, ctx := errgroup.WithContext(cmd.Context())
			for i := 0; i < workers; i++ {
				i := i
				g.Go(func() error {
					ok, err := p.TrySet(ctx, key, i, d)
					if ok {
						wins.Add(1)
					}
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			_, winner, err := cache.Get[int](cmd.Context(), p, key)
			if err != nil {
				return err
			}
			a.logger.Debug("stampede on %s finished", key)
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s workers=%d winners=%d value=%v\n", key, workers, wins.Load(), winner)
			if wins.Load() != 1 {
				return errors.Newf("expected exactly one winner, got %d", wins.Load())
			}
			return p.Remove(cmd.Context(), key)
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "n", 20, "number of concurrent callers")
	cmd.Flags().StringVar(&ttl, "ttl", "30s", "time to live of the raced key")
	return cmd
}
