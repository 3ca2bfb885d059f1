// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package semaphore provides a named counting semaphore.
package semaphore

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Semaphore is a semaphore.
type Semaphore struct {
	name string
	ch   chan int

	waits atomic.Int64
	reqs  atomic.Int64
}

// New creates a new semaphore with name and capacity.
// Capacity less than 1 is treated as 1.
func New(name string, n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	ch := make(chan int, n)
	for i := 0; i < n; i++ {
		ch <- i + 1 // tid
	}
	return &Semaphore{
		name: name,
		ch:   ch,
	}
}

// WaitAcquire acquires a semaphore.
// It returns a func to release it.
func (s *Semaphore) WaitAcquire(ctx context.Context) (func(), error) {
	s.waits.Add(1)
	defer s.waits.Add(-1)
	select {
	case tid := <-s.ch:
		s.reqs.Add(1)
		return func() {
			s.ch <- tid
		}, nil
	case <-ctx.Done():
		return func() {}, context.Cause(ctx)
	}
}

// Name returns name of the semaphore.
func (s *Semaphore) Name() string {
	return s.name
}

// Capacity returns capacity of the semaphore.
func (s *Semaphore) Capacity() int {
	if s == nil {
		return 0
	}
	return cap(s.ch)
}

// NumServs returns number of currently served.
func (s *Semaphore) NumServs() int {
	return cap(s.ch) - len(s.ch)
}

// NumWaits returns number of waiters.
func (s *Semaphore) NumWaits() int {
	return int(s.waits.Load())
}

// NumRequests returns total number of requests.
func (s *Semaphore) NumRequests() int {
	return int(s.reqs.Load())
}

func (s *Semaphore) String() string {
	return fmt.Sprintf("%s: serv:%d/%d wait:%d reqs:%d", s.name, s.NumServs(), s.Capacity(), s.NumWaits(), s.NumRequests())
}

// Do runs f under semaphore.
func (s *Semaphore) Do(ctx context.Context, f func(ctx context.Context) error) error {
	done, err := s.WaitAcquire(ctx)
	if err != nil {
		return err
	}
	defer done()
	return f(ctx)
}
