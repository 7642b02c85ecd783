package logging

import (
	"io"
	"strings"

	"github.com/go-kit/kit/log"
)

// TestSink is the part of testing.T and testing.B that test loggers write to
type TestSink interface {
	Log(...interface{})
}

// sinkWriter sends each formatted log line to a TestSink, minus the trailing newline that
// the sink adds back
type sinkWriter struct {
	sink TestSink
}

func (sw sinkWriter) Write(data []byte) (int, error) {
	sw.sink.Log(strings.TrimSuffix(string(data), "\n"))
	return len(data), nil
}

// NewTestWriter returns an io.Writer whose output shows up in a test's log
func NewTestWriter(sink TestSink) io.Writer {
	return sinkWriter{sink: sink}
}

// NewTestLogger produces a go-kit Logger whose output shows up in a test's log, so that task
// and scheduler output is interleaved with test failures.  A nil Options logs at every level.
func NewTestLogger(o *Options, sink TestSink) log.Logger {
	if o == nil {
		o = &Options{Level: "DEBUG"}
	}

	return NewFilter(
		log.With(
			o.loggerFactory()(log.NewSyncWriter(NewTestWriter(sink))),
			TimestampKey(), log.DefaultTimestampUTC,
		),
		o,
	)
}
