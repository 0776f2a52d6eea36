package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jamesmcclain/chips/common/go/logging"
	"github.com/jamesmcclain/chips/pkg/chips"
)

var cmd Cmd

// Cmd is the command line arguments.
type Cmd struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string
}

var rootCmd = &cobra.Command{
	Use:   "chipbench",
	Short: "Drains chips from a raster chip reader session and reports throughput",
	Run: func(rawCmd *cobra.Command, args []string) {
		if err := run(cmd); err != nil {
			if errors.Is(err, Interrupted{}) {
				return
			}

			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd Cmd) error {
	cfg, err := LoadConfig(cmd.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	sessionCfg, err := cfg.sessionConfig()
	if err != nil {
		return fmt.Errorf("failed to build session config: %w", err)
	}

	chips.Init()
	defer chips.Deinit()

	session, err := chips.Start(sessionCfg, chips.WithLog(log))
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		// Unblock the signal waiter once draining ends.
		defer cancel()
		return drain(ctx, session, log, cfg.ChipCount)
	})
	wg.Go(func() error {
		err := WaitInterrupted(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		log.Infof("caught signal: %v", err)
		return err
	})

	err = wg.Wait()

	if stopErr := session.Stop(); stopErr != nil {
		log.Errorw("failed to stop session", "error", stopErr)
	}

	return err
}

// drain repeatedly calls GetNext, logging throughput every second, until it
// has consumed count chips (count <= 0 means drain until ctx is canceled).
func drain(ctx context.Context, session *chips.Session, log *zap.SugaredLogger, count int) error {
	imagery := make([]byte, session.ImageryBufSize())
	var label []byte
	if n := session.LabelBufSize(); n > 0 {
		label = make([]byte, n)
	}

	consumed := 0
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	last := time.Now()
	lastConsumed := 0

	for count <= 0 || consumed < count {
		if err := session.GetNext(ctx, imagery, label); err != nil {
			return fmt.Errorf("failed to get next chip: %w", err)
		}
		consumed++

		select {
		case now := <-tick.C:
			elapsed := now.Sub(last).Seconds()
			log.Infof("throughput: %.1f chips/sec (total %d)", float64(consumed-lastConsumed)/elapsed, consumed)
			last = now
			lastConsumed = consumed
		default:
		}
	}

	stats := session.Stats()
	log.Infow("drain complete",
		"consumed", consumed,
		"chipsProduced", stats.ChipsProduced,
		"partitionRejects", stats.PartitionRejects,
		"coverageRejects", stats.CoverageRejects,
		"readErrors", stats.ReadErrors,
	)
	return nil
}

type Interrupted struct {
	os.Signal
}

func (m Interrupted) Error() string {
	return m.String()
}

// WaitInterrupted blocks until either SIGINT or SIGTERM signal is received or
// the provided context is canceled.
func WaitInterrupted(ctx context.Context) error {
	ch := make(chan os.Signal, 1)

	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case v := <-ch:
		return Interrupted{Signal: v}
	case <-ctx.Done():
		return ctx.Err()
	}
}
