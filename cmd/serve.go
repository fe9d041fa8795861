package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pixperk/pixfaker/config"
	"github.com/pixperk/pixfaker/faker"
	"github.com/pixperk/pixfaker/fixture"
	"github.com/pixperk/pixfaker/journal"
	"github.com/pixperk/pixfaker/logger"
)

func runFakers(cmd *cobra.Command, args []string) error {
	profiles, err := config.Select(args[0])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	// Past validation, failures are the fakers' own: no usage dump.
	cmd.SilenceUsage = true

	table, err := cfg.Table()
	if err != nil {
		return err
	}

	log, closer, err := logger.New(cfg.LogFile, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closer.Close()

	fx, err := cfg.Fixture()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openJournal(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	printBanner(profiles, fx)

	// Profiles are independent: one stopping on a violation leaves the
	// others serving until the process is signalled.
	var g errgroup.Group
	if cfg.StatsAddr != "" {
		startStats(ctx, &g, store, log)
	}
	for _, p := range profiles {
		h, err := faker.Build(p, faker.BuildOpts{
			Table:   table,
			Rand:    cfg.Rand(p),
			Fixture: fx,
			Stall:   cfg.Stall,
			Logger:  log,
		})
		if err != nil {
			return err
		}
		sup := faker.NewSupervisor(faker.SupervisorOpts{
			Profile:    p.Name,
			ListenAddr: p.Addr(cfg.Host),
			Handler:    h,
			Journal:    store,
			Logger:     log,
		})
		g.Go(func() error {
			return sup.ListenAndServe(ctx)
		})
	}

	err = g.Wait()
	if err != nil {
		PrintError(err.Error())
		return err
	}
	PrintSuccess("all fakers stopped")
	return nil
}

// openJournal returns nil storage when journaling is off.
func openJournal(ctx context.Context) (journal.Storage, error) {
	switch cfg.Journal {
	case "memory":
		return journal.NewMemoryStorage(journal.DefaultRetention), nil
	case "redis":
		store := journal.NewRedisStorage(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := store.Ping(); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return store, nil
	}
	return nil, nil
}

func startStats(ctx context.Context, g *errgroup.Group, store journal.Storage, log *slog.Logger) {
	srv := journal.NewServer(cfg.StatsAddr, store, log)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("stats endpoint: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func printBanner(profiles []config.Profile, fx *fixture.Bytes) {
	PrintLogoSmall()
	PrintHeader("pixFaker")

	PrintSection("Fixture")
	if cfg.FixturePath != "" {
		PrintKeyValue("File", cfg.FixturePath)
	} else {
		PrintKeyValue("File", "generated")
	}
	PrintKeyValue("Size", FormatBytes(int64(fx.Len())))
	PrintKeyValue("Pieces", fmt.Sprintf("%d x %s", fx.NumPieces(), FormatBytes(int64(fx.PieceLength()))))
	PrintKeyValue("Digest", fmt.Sprintf("%016x", fx.Digest()))

	PrintSection("Profiles")
	for _, p := range profiles {
		PrintKeyValueHighlight(p.Name, p.Addr(cfg.Host)+"  "+Dim+string(p.Kind)+Reset)
	}

	PrintSection("Journal")
	switch cfg.Journal {
	case "redis":
		PrintKeyValue("Storage", fmt.Sprintf("redis://%s/%d", cfg.RedisAddr, cfg.RedisDB))
	default:
		PrintKeyValue("Storage", cfg.Journal)
	}
	if cfg.StatsAddr != "" {
		PrintKeyValue("Endpoint", "http://"+cfg.StatsAddr+"/scrape")
	}
	if cfg.Seed != 0 {
		PrintKeyValue("Seed", fmt.Sprintf("%d", cfg.Seed))
	}
	PrintDivider()
}
