// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package semaphore

import (
	"errors"
	"sync"

	// nolint: typecheck
	"sync/atomic"
)

var (
	// ErrTimeout is returned when a timeout occurs while waiting to acquire a semaphore.
	ErrTimeout = errors.New("the semaphore could not be acquired within the timeout")

	// ErrNotOwner is returned when Release is called by something other than the current holder.
	// The semaphore is left untouched.
	ErrNotOwner = errors.New("the semaphore is not held by the caller")

	// ErrCapacity is returned when a waiter cannot be queued because the wait queue is full
	ErrCapacity = errors.New("the semaphore wait queue is full")

	// ErrRecursive is returned when the holder of a semaphore attempts to acquire it again
	ErrRecursive = errors.New("the semaphore is already held by the caller")
)

const (
	// DefaultCapacity is the wait queue capacity used when no capacity is configured
	DefaultCapacity = 16

	stateHeld int32 = 0
	stateFree int32 = 1
)

// Option is a configurable option for a Binary semaphore
type Option func(*Binary)

// WithCapacity sets the maximum number of waiters.  Nonpositive values are ignored.
func WithCapacity(c int) Option {
	return func(b *Binary) {
		if c > 0 {
			b.capacity = c
		}
	}
}

// WithMeasures establishes the metrics for a semaphore.  Unset fields in the given
// Measures discard their observations.
func WithMeasures(m Measures) Option {
	return func(b *Binary) {
		b.measures = m.withDefaults()
	}
}

// Snapshot is a point-in-time copy of a semaphore's state
type Snapshot struct {
	Name     string   `json:"name"`
	Count    int      `json:"count"`
	Capacity int      `json:"capacity"`
	Holder   string   `json:"holder,omitempty"`
	Waiters  []string `json:"waiters"`
}

// Binary is a semaphore with a single token.  The token is free when count is 1 and held
// when count is 0.  Holders and waiters are identified by nonempty strings.
//
// All methods are safe for concurrent use.
type Binary struct {
	name     string
	capacity int
	measures Measures

	count int32

	lock    sync.Mutex
	holder  string
	waiters []string
}

// NewBinary constructs a free Binary semaphore
func NewBinary(name string, o ...Option) *Binary {
	b := &Binary{
		name:     name,
		capacity: DefaultCapacity,
		measures: Measures{}.withDefaults(),
		count:    stateFree,
	}

	for _, f := range o {
		f(b)
	}

	return b
}

// Name returns the name given to this semaphore at construction
func (b *Binary) Name() string {
	return b.name
}

// Count returns 1 if the token is free, 0 if it is held
func (b *Binary) Count() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.loadCount()
}

// loadCount reads the token without locking.  The caller must hold b.lock for the result to
// agree with holder.
func (b *Binary) loadCount() int {
	return int(atomic.LoadInt32(&b.count))
}

// Holder returns the identifier of the current holder, if any
func (b *Binary) Holder() (string, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.holder, len(b.holder) > 0
}

// Waiters returns a copy of the wait queue, head first
func (b *Binary) Waiters() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string{}, b.waiters...)
}

// Snapshot returns a consistent copy of this semaphore's state
func (b *Binary) Snapshot() Snapshot {
	b.lock.Lock()
	defer b.lock.Unlock()

	return Snapshot{
		Name:     b.name,
		Count:    b.loadCount(),
		Capacity: b.capacity,
		Holder:   b.holder,
		Waiters:  append([]string{}, b.waiters...),
	}
}

// take attempts the lock-free transition from free to held.  The caller must hold b.lock.
func (b *Binary) take(id string) bool {
	if atomic.CompareAndSwapInt32(&b.count, stateFree, stateHeld) {
		b.holder = id
		b.measures.Acquisitions.Add(1.0)
		b.measures.Held.Set(1.0)
		return true
	}

	return false
}

// Acquire attempts to take the token for the given caller.  If the token was free, the caller
// becomes the holder and this method returns true.  Otherwise the caller is appended to the wait
// queue and this method returns false:  the caller must wait until a Release names it as the
// next holder or until it gives up via Cancel.
func (b *Binary) Acquire(id string) (bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if len(b.holder) > 0 && b.holder == id {
		b.measures.Errors.Add(1.0)
		return false, ErrRecursive
	}

	if b.take(id) {
		return true, nil
	}

	if len(b.waiters) >= b.capacity {
		b.measures.Errors.Add(1.0)
		return false, ErrCapacity
	}

	b.waiters = append(b.waiters, id)
	b.measures.Contentions.Add(1.0)
	b.measures.Waiters.Set(float64(len(b.waiters)))
	return false, nil
}

// TryAcquire takes the token only if it is free.  The caller is never queued.  As with Acquire,
// the current holder receives ErrRecursive.
func (b *Binary) TryAcquire(id string) (bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if len(b.holder) > 0 && b.holder == id {
		b.measures.Errors.Add(1.0)
		return false, ErrRecursive
	}

	if b.take(id) {
		return true, nil
	}

	b.measures.Failures.Add(1.0)
	return false, nil
}

// Release relinquishes the token held by the given caller.  If tasks are waiting, the token passes
// directly to the head of the queue and that waiter is returned with handedOff set to true.  The
// count stays at zero in that case.
//
// A caller that is not the holder receives ErrNotOwner, and the semaphore is left exactly as it was.
func (b *Binary) Release(id string) (next string, handedOff bool, err error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if len(id) == 0 || b.holder != id {
		b.measures.Errors.Add(1.0)
		return "", false, ErrNotOwner
	}

	if len(b.waiters) > 0 {
		next = b.waiters[0]
		b.waiters = append(b.waiters[:0], b.waiters[1:]...)
		b.holder = next
		b.measures.Acquisitions.Add(1.0)
		b.measures.Waiters.Set(float64(len(b.waiters)))
		return next, true, nil
	}

	b.holder = ""
	atomic.StoreInt32(&b.count, stateFree)
	b.measures.Held.Set(0.0)
	return "", false, nil
}

// Cancel removes a caller from the wait queue, as when its timeout elapses.  This method
// returns false if the caller was not waiting.
func (b *Binary) Cancel(id string) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	for i, w := range b.waiters {
		if w == id {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			b.measures.Failures.Add(1.0)
			b.measures.Waiters.Set(float64(len(b.waiters)))
			return true
		}
	}

	return false
}
