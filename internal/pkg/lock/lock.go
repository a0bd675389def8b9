// Package lock provides per-user locking for concurrent balance operations.
// Database transactions keep individual statements atomic; this lock keeps
// whole command-level read-then-write sequences from interleaving for the
// same player.
package lock

import (
	"errors"
	"sync"
)

// ErrLockBusy is returned by TryWithLock when the user is already locked.
var ErrLockBusy = errors.New("user is busy with another operation")

// UserLock provides per-user mutual exclusion keyed by platform user id.
type UserLock struct {
	locks sync.Map // map[string]*sync.Mutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{}
}

func (ul *UserLock) getLock(userID string) *sync.Mutex {
	if v, ok := ul.locks.Load(userID); ok {
		return v.(*sync.Mutex)
	}
	actual, _ := ul.locks.LoadOrStore(userID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// Lock acquires the lock for a user. Call before any balance-modifying
// read-then-write sequence.
func (ul *UserLock) Lock(userID string) {
	ul.getLock(userID).Lock()
}

// Unlock releases the lock for a user.
func (ul *UserLock) Unlock(userID string) {
	if v, ok := ul.locks.Load(userID); ok {
		v.(*sync.Mutex).Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (ul *UserLock) TryLock(userID string) bool {
	return ul.getLock(userID).TryLock()
}

// WithLock executes fn while holding the user's lock.
func (ul *UserLock) WithLock(userID string, fn func() error) error {
	ul.Lock(userID)
	defer ul.Unlock(userID)
	return fn()
}

// TryWithLock executes fn if the user's lock is free, otherwise returns
// ErrLockBusy without running fn.
func (ul *UserLock) TryWithLock(userID string, fn func() error) error {
	if !ul.TryLock(userID) {
		return ErrLockBusy
	}
	defer ul.Unlock(userID)
	return fn()
}
