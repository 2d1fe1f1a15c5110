// Command polipulse runs the sentiment polling daemon: it loads
// configuration, opens the store, and drives the scheduler until
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvaughn/polipulse/internal/config"
	"github.com/nvaughn/polipulse/internal/discovery"
	"github.com/nvaughn/polipulse/internal/logging"
	"github.com/nvaughn/polipulse/internal/provider"
	"github.com/nvaughn/polipulse/internal/sched"
	"github.com/nvaughn/polipulse/internal/store"
)

// withdrawalSweepInterval is how often the discovery pipeline checks
// whether tracked figures have withdrawn.
const withdrawalSweepInterval = 24 * time.Hour

func main() {
	interval := flag.Int("interval", 0, "Polling interval in minutes (0 = stored setting)")
	once := flag.Bool("once", false, "Run a single polling tick and exit")
	flag.Parse()

	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "polipulse: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("load config", "error", err)
	}

	st := store.Open(store.Options{
		DatabasePath: cfg.DatabasePath(),
		LegacyPath:   cfg.LegacyPath(),
	})
	defer st.Close()

	factory := provider.NewFactory()
	scheduler := sched.New(st, factory, func() config.ProviderConfig { return cfg.Provider })
	pipeline := discovery.New(st, func() provider.Provider { return factory.Get(cfg.Provider) })

	// Every accepted event feeds the source-discovery pipeline
	scheduler.OnEvent(pipeline.ObserveEvent)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *interval > 0 {
		scheduler.SetInterval(ctx, *interval)
	}

	if *once {
		res := scheduler.FetchNow(ctx)
		fmt.Printf("tick: %d processed, %d updated, %d failed\n", res.Processed, res.Updated, res.Failed)
		return
	}

	scheduler.Start(ctx)

	go func() {
		ticker := time.NewTicker(withdrawalSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed, err := pipeline.CheckWithdrawals(ctx); err == nil && len(removed) > 0 {
					logging.Info("withdrawal sweep removed entities", "names", removed)
				}
			}
		}
	}()

	fmt.Println("polipulse running, ctrl-c to stop")
	<-ctx.Done()

	scheduler.Stop()
}
