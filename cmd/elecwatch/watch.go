package main

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/elecwatch/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run batches on a schedule until interrupted",
	Long: `Runs one batch immediately and then on every tick of schedule.cron
(standard five-field cron or descriptors such as "@every 30m"). A tick that
fires while the previous batch is still running is skipped.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	schedule, err := cron.ParseStandard(cfg.Schedule.Cron)
	if err != nil {
		return configError(fmt.Errorf("schedule.cron: %w", err))
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var busy sync.Mutex
	job := func() {
		if !busy.TryLock() {
			logger.Warn("Previous run still in progress, skipping this tick")
			return
		}
		defer busy.Unlock()
		a.run(ctx)
	}

	job()

	c := cron.NewWithLocation(a.loc)
	c.Schedule(schedule, cron.FuncJob(job))
	c.Start()
	logger.Info("Watching %d units on schedule %q", len(a.units), cfg.Schedule.Cron)

	<-ctx.Done()
	logger.Info("Shutdown signal received, cleaning up...")
	c.Stop()

	// Let an in-flight batch finish saving.
	busy.Lock()
	defer busy.Unlock()

	logger.Info("Service stopped")
	return nil
}
