// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package concurrent

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/xmidt-org/rtsem/logging"
)

// Runnable represents any operation that can spawn zero or more goroutines.
type Runnable interface {
	// Run executes this operation, possibly returning an error if the operation
	// could not be started.  This method is responsible for spawning any necessary
	// goroutines and to ensure WaitGroup.Add() and WaitGroup.Done() are called appropriately.
	//
	// The supplied shutdown channel is used to signal any goroutines spawned by this
	// method that they should gracefully exit.  Callers can then use the waitGroup to
	// wait until things have been cleaned up properly.
	Run(waitGroup *sync.WaitGroup, shutdown <-chan struct{}) error
}

// RunnableFunc is a function type that implements Runnable
type RunnableFunc func(*sync.WaitGroup, <-chan struct{}) error

func (r RunnableFunc) Run(waitGroup *sync.WaitGroup, shutdown <-chan struct{}) error {
	return r(waitGroup, shutdown)
}

// RunnableSet is a slice type that allows grouping of operations.
// This type implements Runnable as well.
type RunnableSet []Runnable

func (set RunnableSet) Run(waitGroup *sync.WaitGroup, shutdown <-chan struct{}) error {
	for _, operation := range set {
		if err := operation.Run(waitGroup, shutdown); err != nil {
			return err
		}
	}

	return nil
}

// FromContext adapts a blocking, context-aware function into a Runnable.  The function runs
// on its own goroutine with a context that is canceled when shutdown is signaled.  Any error
// other than the context's own cancellation is logged.
func FromContext(logger log.Logger, name string, f func(context.Context) error) Runnable {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return RunnableFunc(func(waitGroup *sync.WaitGroup, shutdown <-chan struct{}) error {
		ctx, cancel := context.WithCancel(context.Background())
		waitGroup.Add(2)

		go func() {
			defer waitGroup.Done()
			defer cancel()
			if err := f(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error(logger).Log(logging.MessageKey(), "operation exited", "name", name, logging.ErrorKey(), err)
			}
		}()

		go func() {
			defer waitGroup.Done()
			select {
			case <-shutdown:
				cancel()
			case <-ctx.Done():
			}
		}()

		return nil
	})
}

// Execute is a convenience function that creates the necessary synchronization objects
// and then invokes Run().
func Execute(runnable Runnable) (waitGroup *sync.WaitGroup, shutdown chan struct{}, err error) {
	waitGroup = &sync.WaitGroup{}
	shutdown = make(chan struct{})
	err = runnable.Run(waitGroup, shutdown)
	return
}

// Await uses Execute() to invoke a runnable, then blocks until one of the waitOn signals arrives.
// Other signals are logged and ignored.  If no waitOn signals are given, any signal stops the
// runnable.  A closed signals channel also stops the runnable, in which case the returned signal is nil.
//
// After shutdown is signaled, Await waits at most gracePeriod for the runnable's goroutines to exit.
// A nonpositive gracePeriod waits indefinitely.
func Await(logger log.Logger, runnable Runnable, gracePeriod time.Duration, signals <-chan os.Signal, waitOn ...os.Signal) (os.Signal, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	waitGroup, shutdown, err := Execute(runnable)
	if err != nil {
		close(shutdown)
		return nil, err
	}

	s := SignalWait(logger, signals, waitOn...)
	logging.Info(logger).Log(logging.MessageKey(), "shutting down", "signal", s)
	close(shutdown)

	if gracePeriod > 0 {
		if !WaitTimeout(waitGroup, gracePeriod) {
			return s, ErrShutdownTimeout
		}
	} else {
		waitGroup.Wait()
	}

	return s, nil
}

// ErrShutdownTimeout is returned by Await when goroutines do not exit within the grace period
var ErrShutdownTimeout = errors.New("shutdown did not complete within the grace period")

// SignalWait blocks until any of a set of signals is encountered.  The signal which caused this function
// to exit is returned.  A nil return indicates that the signals channel was closed.
func SignalWait(logger log.Logger, signals <-chan os.Signal, waitOn ...os.Signal) os.Signal {
	filter := make(map[os.Signal]bool, len(waitOn))
	for _, s := range waitOn {
		filter[s] = true
	}

	for s := range signals {
		if len(filter) == 0 || filter[s] {
			return s
		}

		logging.Debug(logger).Log(logging.MessageKey(), "ignoring signal", "signal", s.String())
	}

	return nil
}
