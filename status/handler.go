// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/ksuid"
	"github.com/xmidt-org/rtsem/blinky"
	"github.com/xmidt-org/rtsem/logging"
	"github.com/xmidt-org/rtsem/scheduler"
	"github.com/xmidt-org/rtsem/semaphore"
)

const (
	TasksPath      = "/tasks"
	TaskPath       = "/tasks/{name}"
	SemaphoresPath = "/semaphores"
	ResourcePath   = "/resource"
	MetricsPath    = "/metrics"
)

// Scheduler is the view of a scheduler this package reports on.  *scheduler.Scheduler implements this interface.
type Scheduler interface {
	ID() ksuid.KSUID
	Elapsed() time.Duration
	Tasks() []scheduler.TaskInfo
	Semaphores() []semaphore.Snapshot
}

// Workload is the view of the installed tasks this package reports on.  *blinky.Blinky implements this interface.
type Workload interface {
	Tasks() []blinky.TaskStats
	ResourceStats() blinky.ResourceStats
}

// Task combines the scheduler's view of a task with its timing
type Task struct {
	scheduler.TaskInfo
	Timing *blinky.TaskStats `json:"timing,omitempty"`
}

// Tasks is the response to TasksPath
type Tasks struct {
	Run     string        `json:"run"`
	Elapsed time.Duration `json:"elapsed"`
	Tasks   []Task        `json:"tasks"`
}

// Options configures the status handler
type Options struct {
	Scheduler Scheduler
	Workload  Workload

	// Gatherer is the source for MetricsPath.  If nil, MetricsPath is not served.
	Gatherer prometheus.Gatherer

	Logger log.Logger
}

type handler struct {
	scheduler Scheduler
	workload  Workload
	logger    log.Logger
}

// NewHandler builds the router for the status surface, wrapped in request bookkeeping
func NewHandler(o Options) http.Handler {
	h := &handler{
		scheduler: o.Scheduler,
		workload:  o.Workload,
		logger:    o.Logger,
	}

	if h.logger == nil {
		h.logger = logging.DefaultLogger()
	}

	router := mux.NewRouter()
	router.HandleFunc(TasksPath, h.tasks).Methods(http.MethodGet)
	router.HandleFunc(TaskPath, h.task).Methods(http.MethodGet)
	router.HandleFunc(SemaphoresPath, h.semaphores).Methods(http.MethodGet)
	router.HandleFunc(ResourcePath, h.resource).Methods(http.MethodGet)

	if o.Gatherer != nil {
		router.Handle(MetricsPath, promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{
			ErrorLog: logging.NewErrorLog(h.logger),
		})).Methods(http.MethodGet)
	}

	return alice.New(
		Bookkeeping(h.logger, WithRequests(Method, Path), WithResponses(Code, Size)),
	).Then(router)
}

// encode writes a value in the format the request accepts
func (h *handler) encode(response http.ResponseWriter, request *http.Request, code int, v interface{}) {
	f := FormatFromAccept(request.Header.Get("Accept"))
	response.Header().Set("Content-Type", f.ContentType())
	response.WriteHeader(code)

	if err := NewEncoder(response, f).Encode(v); err != nil {
		logging.Error(h.logger).Log(logging.MessageKey(), "unable to encode response", logging.ErrorKey(), err)
	}
}

func (h *handler) timings() map[string]blinky.TaskStats {
	timings := make(map[string]blinky.TaskStats)
	if h.workload != nil {
		for _, ts := range h.workload.Tasks() {
			timings[ts.Name] = ts
		}
	}

	return timings
}

func newTask(info scheduler.TaskInfo, timings map[string]blinky.TaskStats) Task {
	t := Task{TaskInfo: info}
	if ts, ok := timings[info.Name]; ok {
		t.Timing = &ts
	}

	return t
}

func (h *handler) tasks(response http.ResponseWriter, request *http.Request) {
	var (
		timings = h.timings()
		infos   = h.scheduler.Tasks()
		body    = Tasks{
			Run:     h.scheduler.ID().String(),
			Elapsed: h.scheduler.Elapsed(),
			Tasks:   make([]Task, 0, len(infos)),
		}
	)

	for _, info := range infos {
		body.Tasks = append(body.Tasks, newTask(info, timings))
	}

	h.encode(response, request, http.StatusOK, body)
}

func (h *handler) task(response http.ResponseWriter, request *http.Request) {
	name := mux.Vars(request)["name"]
	for _, info := range h.scheduler.Tasks() {
		if info.Name == name {
			h.encode(response, request, http.StatusOK, newTask(info, h.timings()))
			return
		}
	}

	h.encode(response, request, http.StatusNotFound, map[string]string{"message": "no such task: " + name})
}

func (h *handler) semaphores(response http.ResponseWriter, request *http.Request) {
	h.encode(response, request, http.StatusOK, h.scheduler.Semaphores())
}

func (h *handler) resource(response http.ResponseWriter, request *http.Request) {
	if h.workload == nil {
		h.encode(response, request, http.StatusNotFound, map[string]string{"message": "no workload installed"})
		return
	}

	h.encode(response, request, http.StatusOK, h.workload.ResourceStats())
}
