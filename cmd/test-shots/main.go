package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/opengolfcoach/bridge/internal/testshots"
	"github.com/opengolfcoach/bridge/pkg/logger"
)

const defaultRunTimeout = 5 * time.Minute

func main() {
	var (
		addr       = flag.String("addr", "localhost:921", "Bridge listener address")
		numShots   = flag.Int("shots", 5, "Number of shots to send")
		interval   = flag.Duration("interval", 2*time.Second, "Pause between shots")
		timeout    = flag.Duration("timeout", 5*time.Second, "Per-operation network timeout")
		metric     = flag.Bool("metric", false, "Send frames in SI units instead of imperial")
		reference  = flag.Bool("reference", false, "Replay the documented contract example shot")
		heartbeats = flag.Bool("heartbeats", false, "Interleave heartbeats between shots")
		list       = flag.Bool("list", false, "List the data point catalog and exit")
	)
	flag.Parse()

	if *list {
		if err := testshots.ListDataPoints(os.Stdout); err != nil {
			os.Stderr.WriteString("listing data points: " + err.Error() + "\n")
			os.Exit(1)
		}
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	runner := testshots.NewRunner(testshots.Config{
		Addr:       *addr,
		NumShots:   *numShots,
		Interval:   *interval,
		Timeout:    *timeout,
		Metric:     *metric,
		Reference:  *reference,
		Heartbeats: *heartbeats,
	})
	if err := runner.Run(ctx); err != nil {
		os.Stderr.WriteString("replay failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
