// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package blinky

import (
	"sync"
	"time"

	"github.com/xmidt-org/rtsem/logging"
	"github.com/xmidt-org/rtsem/scheduler"
	"github.com/xmidt-org/rtsem/semaphore"
)

// ResourceStats is a point-in-time summary of how the shared resource has been used
type ResourceStats struct {
	Mode      Mode           `json:"mode"`
	Occupant  string         `json:"occupant,omitempty"`
	Accesses  map[string]int `json:"accesses"`
	MaxAccess time.Duration  `json:"maxAccess"`

	// Violations counts entries made while another task was inside.  It is zero unless mutual exclusion failed.
	Violations int `json:"violations"`
}

// SharedResource is the data the contending tasks take turns with.  Access must only be called
// while the resource is guarded, which Use takes care of.
type SharedResource struct {
	mode       Mode
	accessTime time.Duration
	sem        *semaphore.Binary

	lock      sync.Mutex
	occupant  string
	accesses  map[string]int
	maxAccess time.Duration
	violation int
}

// NewSharedResource creates the resource along with the semaphore that guards it in ModeSemaphore
func NewSharedResource(s *scheduler.Scheduler, mode Mode, accessTime time.Duration, o ...semaphore.Option) *SharedResource {
	return &SharedResource{
		mode:       mode,
		accessTime: accessTime,
		sem:        s.NewBinarySemaphore("shared", o...),
		accesses:   make(map[string]int),
	}
}

func (r *SharedResource) Semaphore() *semaphore.Binary {
	return r.sem
}

// Access is the critical section body.  It occupies the processor for the configured access time.
func (r *SharedResource) Access(t *scheduler.Task) {
	entered := t.Now()

	r.lock.Lock()
	if len(r.occupant) > 0 {
		r.violation++
		logging.Error(t.Logger()).Log(logging.MessageKey(), "shared resource already occupied", "occupant", r.occupant)
	}

	r.occupant = t.Name()
	r.accesses[t.Name()]++
	r.lock.Unlock()

	t.Busy(r.accessTime)

	r.lock.Lock()
	if r.occupant == t.Name() {
		r.occupant = ""
	}

	if d := t.Now().Sub(entered); d > r.maxAccess {
		r.maxAccess = d
	}

	r.lock.Unlock()
}

// Use guards the resource according to the mode, then accesses it.  A failure to release the
// semaphore is logged and returned, and the task carries on.
func (r *SharedResource) Use(t *scheduler.Task) error {
	if r.mode == ModeCritical {
		t.EnterCritical()
		r.Access(t)
		t.ExitCritical()
		return nil
	}

	if err := t.Acquire(r.sem, scheduler.Forever); err != nil {
		logging.Error(t.Logger()).Log(logging.MessageKey(), "unable to acquire shared resource", logging.SemaphoreKey(), r.sem.Name(), logging.ErrorKey(), err)
		return err
	}

	r.Access(t)

	if err := t.Release(r.sem); err != nil {
		logging.Error(t.Logger()).Log(logging.MessageKey(), "unable to release shared resource", logging.SemaphoreKey(), r.sem.Name(), logging.ErrorKey(), err)
		return err
	}

	return nil
}

func (r *SharedResource) Stats() ResourceStats {
	r.lock.Lock()
	defer r.lock.Unlock()

	accesses := make(map[string]int, len(r.accesses))
	for k, v := range r.accesses {
		accesses[k] = v
	}

	return ResourceStats{
		Mode:       r.mode,
		Occupant:   r.occupant,
		Accesses:   accesses,
		MaxAccess:  r.maxAccess,
		Violations: r.violation,
	}
}
