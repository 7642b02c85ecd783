// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"net/http"
	"net/textproto"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/justinas/alice"
	"github.com/xmidt-org/rtsem/logging"
)

// CapturedResponse is what bookkeeping observed about a response
type CapturedResponse struct {
	Code   int
	Size   int
	Header http.Header
}

// RequestFunc takes the request and returns key value pairs from the request
type RequestFunc func(request *http.Request) []interface{}

// ResponseFunc takes the captured response and returns key value pairs from it
type ResponseFunc func(response CapturedResponse) []interface{}

// bookkeeper logs one line per request
type bookkeeper struct {
	next   http.Handler
	logger log.Logger
	before []RequestFunc
	after  []ResponseFunc
}

// BookkeepingOption provides a single configuration option for a bookkeeping handler
type BookkeepingOption func(*bookkeeper)

// WithRequests adds RequestFuncs whose key value pairs are logged
func WithRequests(requestFuncs ...RequestFunc) BookkeepingOption {
	return func(b *bookkeeper) {
		b.before = append(b.before, requestFuncs...)
	}
}

// WithResponses adds ResponseFuncs whose key value pairs are logged
func WithResponses(responseFuncs ...ResponseFunc) BookkeepingOption {
	return func(b *bookkeeper) {
		b.after = append(b.after, responseFuncs...)
	}
}

// Bookkeeping returns a middleware constructor that logs each request at info level
func Bookkeeping(logger log.Logger, o ...BookkeepingOption) alice.Constructor {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			panic("next can't be nil")
		}

		b := &bookkeeper{
			next:   next,
			logger: logger,
		}

		for _, f := range o {
			f(b)
		}

		return b
	}
}

func (b *bookkeeper) ServeHTTP(response http.ResponseWriter, request *http.Request) {
	kv := []interface{}{logging.MessageKey(), "request"}
	for _, before := range b.before {
		kv = append(kv, before(request)...)
	}

	w := &writerInterceptor{ResponseWriter: response, code: http.StatusOK}
	start := time.Now()
	defer func() {
		kv = append(kv, "duration", time.Since(start))

		captured := CapturedResponse{
			Code:   w.code,
			Size:   w.size,
			Header: w.Header(),
		}

		for _, after := range b.after {
			kv = append(kv, after(captured)...)
		}

		logging.Info(b.logger).Log(kv...)
	}()

	b.next.ServeHTTP(w, request)
}

type writerInterceptor struct {
	http.ResponseWriter
	code int
	size int
}

func (w *writerInterceptor) Write(data []byte) (int, error) {
	n, err := w.ResponseWriter.Write(data)
	w.size += n
	return n, err
}

func (w *writerInterceptor) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func Method(request *http.Request) []interface{} {
	return []interface{}{"method", request.Method}
}

func Path(request *http.Request) []interface{} {
	return []interface{}{"path", request.URL.Path}
}

func Code(response CapturedResponse) []interface{} {
	return []interface{}{"code", response.Code}
}

func Size(response CapturedResponse) []interface{} {
	return []interface{}{"size", response.Size}
}

// RequestHeaders logs the given request headers, if present
func RequestHeaders(headers ...string) RequestFunc {
	canonical := canonicalHeaders(headers...)
	return func(request *http.Request) []interface{} {
		return headerValues(request.Header, canonical)
	}
}

// ResponseHeaders logs the given response headers, if present
func ResponseHeaders(headers ...string) ResponseFunc {
	canonical := canonicalHeaders(headers...)
	return func(response CapturedResponse) []interface{} {
		return headerValues(response.Header, canonical)
	}
}

func canonicalHeaders(headers ...string) []string {
	canonical := make([]string, len(headers))
	for i, h := range headers {
		canonical[i] = textproto.CanonicalMIMEHeaderKey(h)
	}

	return canonical
}

func headerValues(header http.Header, canonical []string) []interface{} {
	var kv []interface{}
	for _, h := range canonical {
		if values := header[h]; len(values) > 0 {
			kv = append(kv, h, values)
		}
	}

	return kv
}
