package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gearfall-games/gearfall/internal/daemon"
	"github.com/gearfall-games/gearfall/internal/infra/store"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine state from the local store",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return err
	}
	defer st.Close()

	total, running, err := st.QueueCount()
	if err != nil {
		return err
	}
	conns, healthy, err := st.ConnectionCount()
	if err != nil {
		return err
	}

	fmt.Printf("Store:       %s\n", cfg.Store.Dir)
	fmt.Printf("Queues:      %d (%d running)\n", total, running)
	fmt.Printf("Connections: %d (%d healthy)\n", conns, healthy)
	return nil
}
