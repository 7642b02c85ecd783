// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/spf13/pflag"
	"github.com/xmidt-org/rtsem/blinky"
	"github.com/xmidt-org/rtsem/clock"
	"github.com/xmidt-org/rtsem/concurrent"
	"github.com/xmidt-org/rtsem/config"
	"github.com/xmidt-org/rtsem/gpio"
	"github.com/xmidt-org/rtsem/logging"
	"github.com/xmidt-org/rtsem/scheduler"
	"github.com/xmidt-org/rtsem/semaphore"
	"github.com/xmidt-org/rtsem/status"
	"github.com/xmidt-org/rtsem/xmetrics"
)

const (
	// shutdownGracePeriod bounds how long the process waits for the scheduler and the status server to stop
	shutdownGracePeriod = 10 * time.Second
)

func main() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals)
	os.Exit(rtsem(os.Args[1:], signals, os.Stdout, os.Stderr))
}

// rtsem runs the application and returns the process exit code
func rtsem(arguments []string, signals <-chan os.Signal, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(config.ApplicationName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.AddFlags(fs)
	if err := fs.Parse(arguments); err != nil {
		return 1
	}

	v, err := config.New(config.ApplicationName, fs)
	if err != nil {
		fmt.Fprintf(stderr, "Unable to load configuration: %s\n", err)
		return 1
	}

	lo, err := logging.FromViper(v)
	if err != nil {
		fmt.Fprintf(stderr, "Unable to load logging configuration: %s\n", err)
		return 1
	}

	logger := logging.New(lo)
	cfg, err := config.Unmarshal(v)
	if err != nil {
		logging.Error(logger).Log(logging.MessageKey(), "unable to decode configuration", logging.ErrorKey(), err)
		return 1
	}

	registry, err := xmetrics.NewRegistry(&cfg.Metrics, scheduler.Metrics, semaphore.Metrics, gpio.Metrics)
	if err != nil {
		logging.Error(logger).Log(logging.MessageKey(), "unable to create metrics registry", logging.ErrorKey(), err)
		return 1
	}

	var c clock.Interface = clock.System()
	if cfg.Simulate > 0 {
		c = clock.NewFastForward(time.Now())
	}

	s := scheduler.New(
		scheduler.WithClock(c),
		scheduler.WithLogger(logger),
		scheduler.WithMeasures(scheduler.NewMeasures(registry)),
	)

	defer s.Close()

	b, err := blinky.Install(
		s,
		cfg.Blinky(),
		gpio.Tee(
			gpio.NewLogOutput(logger),
			gpio.NewMetricsOutput(registry.NewGauge(gpio.LevelGauge)),
		),
		semaphore.WithMeasures(semaphore.NewMeasures(registry)),
	)

	if err != nil {
		logging.Error(logger).Log(logging.MessageKey(), "unable to install tasks", logging.ErrorKey(), err)
		return 1
	}

	logging.Info(logger).Log(logging.MessageKey(), "tasks installed", "run", s.ID().String(), "mode", cfg.Mode, "accessTime", cfg.AccessTime)

	if cfg.Simulate > 0 {
		if err := s.RunFor(cfg.Simulate); err != nil {
			logging.Error(logger).Log(logging.MessageKey(), "simulation failed", logging.ErrorKey(), err)
			return 1
		}

		summarize(stdout, s, b)
		return 0
	}

	return realTime(logger, s, b, registry, cfg.Status, signals)
}

// realTime runs the scheduler against the system clock, along with the optional status server,
// until a terminating signal arrives
func realTime(logger log.Logger, s *scheduler.Scheduler, b *blinky.Blinky, registry xmetrics.Registry, sc config.Status, signals <-chan os.Signal) int {
	runnables := concurrent.RunnableSet{s}
	if len(sc.Address) > 0 {
		handler := status.NewHandler(status.Options{
			Scheduler: s,
			Workload:  b,
			Gatherer:  registry,
			Logger:    logger,
		})

		runnables = append(runnables, status.Runnable(logger, status.NewServer(sc.Address, handler, logger), nil))
	}

	sig, err := concurrent.Await(logger, runnables, shutdownGracePeriod, signals, os.Interrupt, syscall.SIGTERM)
	if err != nil {
		logging.Error(logger).Log(logging.MessageKey(), "exiting with error", "signal", sig, logging.ErrorKey(), err)
		return 2
	}

	logging.Info(logger).Log(logging.MessageKey(), "exiting", "elapsed", s.Elapsed())
	return 0
}

// summarize writes a table of task timings and resource usage
func summarize(output io.Writer, s *scheduler.Scheduler, b *blinky.Blinky) {
	fmt.Fprintf(output, "run %s: %s of logical time\n\n", s.ID(), s.Elapsed())

	w := tabwriter.NewWriter(output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tPIN\tPRIORITY\tSTATE\tTOGGLES\tMAX LATENESS\tMAX WAIT\tPREEMPTED\tERRORS")

	timings := make(map[string]blinky.TaskStats)
	for _, ts := range b.Tasks() {
		timings[ts.Name] = ts
	}

	for _, info := range s.Tasks() {
		ts := timings[info.Name]
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\t%s\t%d\t%d\n",
			info.Name, ts.Pin, info.Priority, info.State, ts.Toggles, ts.MaxLateness, ts.MaxWait, info.Preemptions, ts.Errors)
	}

	w.Flush()

	rs := b.ResourceStats()
	fmt.Fprintf(output, "\nshared resource (%s): accesses %v, longest access %s, violations %d\n", rs.Mode, rs.Accesses, rs.MaxAccess, rs.Violations)
}
