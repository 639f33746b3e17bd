package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gearfall-games/gearfall/internal/app/reward"
	"github.com/gearfall-games/gearfall/internal/app/scheduler"
	"github.com/gearfall-games/gearfall/internal/app/syncer"
	"github.com/gearfall-games/gearfall/internal/daemon"
	"github.com/gearfall-games/gearfall/internal/infra/store"
)

func init() {
	rootCmd.AddCommand(tickCmd)
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduler cycle against the local store",
	Long: `Run a single scheduler pass over every running queue and exit.
Intended for cron-style external driving when no daemon tick loop is
configured. Notifications are skipped — there is no live channel in
this mode.`,
	RunE: runTick,
}

func runTick(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return err
	}
	defer st.Close()

	schedCfg := scheduler.DefaultConfig()
	if cfg.Scheduler.MaxQueueSize > 0 {
		schedCfg.MaxQueueSize = cfg.Scheduler.MaxQueueSize
	}
	if cfg.Scheduler.DefaultMaxRetries > 0 {
		schedCfg.DefaultMaxRetries = cfg.Scheduler.DefaultMaxRetries
	}

	sched := scheduler.New(st, reward.NewEngine(nil), nil, schedCfg)
	report := sched.RunCycle(context.Background())

	sync := syncer.New(st, nopChannel{}, syncer.DefaultConfig())
	marked, dropped := sync.CleanupStaleConnections()

	fmt.Printf("tick: %d queues, %d completed, %d failed, %d errors\n",
		report.Queues, report.Completed, report.Failed, report.Errors)
	fmt.Printf("cleanup: %d marked unhealthy, %d dropped\n", marked, dropped)
	return nil
}

// nopChannel discards sends; the tick command has no live connections.
type nopChannel struct{}

func (nopChannel) Send(string, []byte) error { return nil }
