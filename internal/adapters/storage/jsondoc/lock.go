package jsondoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hylla/kvartal/internal/domain"
)

// lockInfo is the payload written into the sidecar lock file.
type lockInfo struct {
	Owner      string    `json:"owner"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

func (s *Store) lockPath() string { return s.path + ".lock" }

// acquire takes the write lock, waiting up to acquireTimeout. A lock older
// than staleAfter belongs to a crashed writer and is taken over.
func (s *Store) acquire(ctx context.Context) (func(), error) {
	deadline := s.clock().Add(acquireTimeout)
	for {
		ok, err := s.tryAcquire()
		if err != nil {
			return nil, err
		}
		if ok {
			return s.release, nil
		}
		if s.clock().After(deadline) {
			return nil, fmt.Errorf("%w: timed out waiting for lock %s", domain.ErrPersistence, s.lockPath())
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}

func (s *Store) tryAcquire() (bool, error) {
	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return s.tryTakeover()
		}
		return false, fmt.Errorf("%w: create lock: %v", domain.ErrPersistence, err)
	}
	defer f.Close()

	info := lockInfo{Owner: s.owner, PID: os.Getpid(), AcquiredAt: s.clock().UTC()}
	if err := json.NewEncoder(f).Encode(info); err != nil {
		os.Remove(s.lockPath())
		return false, fmt.Errorf("%w: write lock: %v", domain.ErrPersistence, err)
	}
	return true, nil
}

// tryTakeover replaces a stale lock. A fresh lock, or one that disappears
// mid-check, leaves the caller to retry.
func (s *Store) tryTakeover() (bool, error) {
	data, err := os.ReadFile(s.lockPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read lock: %v", domain.ErrPersistence, err)
	}

	var info lockInfo
	if err := json.Unmarshal(data, &info); err == nil {
		if s.clock().Sub(info.AcquiredAt) < staleAfter {
			return false, nil
		}
	}
	// Stale or unreadable: remove and let the next iteration recreate it.
	if err := os.Remove(s.lockPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: remove stale lock: %v", domain.ErrPersistence, err)
	}
	return false, nil
}

// release drops the lock if this store still owns it.
func (s *Store) release() {
	data, err := os.ReadFile(s.lockPath())
	if err != nil {
		return
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil || info.Owner != s.owner {
		return
	}
	os.Remove(s.lockPath())
}
