// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/xmidt-org/rtsem/concurrent"
	"github.com/xmidt-org/rtsem/logging"
)

const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// NewServer creates the status HTTP server.  Errors from the server itself go to the given logger.
func NewServer(address string, handler http.Handler, logger log.Logger) *http.Server {
	return &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadTimeout,
		ErrorLog:          logging.NewErrorLog(logger),
	}
}

// Runnable adapts a server to concurrent.Runnable.  The listener is optional:  if nil, the
// server's address is listened on when Run is called, so that a bad address is reported
// immediately.  Shutdown stops the server gracefully.
func Runnable(logger log.Logger, server *http.Server, listener net.Listener) concurrent.Runnable {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return concurrent.RunnableFunc(func(waitGroup *sync.WaitGroup, shutdown <-chan struct{}) error {
		l := listener
		if l == nil {
			var err error
			if l, err = net.Listen("tcp", server.Addr); err != nil {
				return err
			}
		}

		logging.Info(logger).Log(logging.MessageKey(), "status server listening", "address", l.Addr().String())
		waitGroup.Add(2)

		go func() {
			defer waitGroup.Done()
			if err := server.Serve(l); !errors.Is(err, http.ErrServerClosed) {
				logging.Error(logger).Log(logging.MessageKey(), "status server exited", logging.ErrorKey(), err)
			}
		}()

		go func() {
			defer waitGroup.Done()
			<-shutdown

			ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logging.Error(logger).Log(logging.MessageKey(), "status server shutdown failed", logging.ErrorKey(), err)
			}
		}()

		return nil
	})
}
