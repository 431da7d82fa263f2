package picker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/CageChen/cratedeck/internal/apperr"
	"github.com/CageChen/cratedeck/internal/vfs"
)

// Upload errors.
var (
	ErrNoPickWaiting = errors.New("no pick is waiting for this upload")
	ErrPickCanceled  = errors.New("pick canceled in browser")
)

type uploadResult struct {
	entries []vfs.FileEntry
	err     error
}

// Upload picks files through a connected browser: Pick asks the browser to open
// its directory picker and waits until the files are delivered or the pick is cancelled.
type Upload struct {
	request func(id string) error
	seq     atomic.Uint64

	mu      sync.Mutex
	waiting map[string]chan uploadResult
}

// NewUpload creates an Upload picker. request must tell the browser to start a
// pick identified by id.
func NewUpload(request func(id string) error) *Upload {
	return &Upload{
		request: request,
		waiting: make(map[string]chan uploadResult),
	}
}

// Pick waits for the browser to deliver files for a new pick.
func (u *Upload) Pick(ctx context.Context) ([]vfs.FileEntry, error) {
	id := fmt.Sprintf("pick-%d", u.seq.Add(1))
	ch := make(chan uploadResult, 1)

	u.mu.Lock()
	u.waiting[id] = ch
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		delete(u.waiting, id)
		u.mu.Unlock()
	}()

	if err := u.request(id); err != nil {
		return nil, apperr.Pick("request", id, err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, apperr.Pick("upload", id, r.err)
		}
		return r.entries, nil
	case <-ctx.Done():
		return nil, apperr.Pick("upload", id, ctx.Err())
	}
}

// Deliver completes the pick id with the uploaded files.
func (u *Upload) Deliver(id string, entries []vfs.FileEntry) error {
	return u.complete(id, uploadResult{entries: entries})
}

// Cancel completes the pick id with ErrPickCanceled.
func (u *Upload) Cancel(id string) error {
	return u.complete(id, uploadResult{err: ErrPickCanceled})
}

// CancelAll completes every waiting pick with ErrPickCanceled and returns how many there were.
func (u *Upload) CancelAll() int {
	u.mu.Lock()
	waiting := u.waiting
	u.waiting = make(map[string]chan uploadResult)
	u.mu.Unlock()

	for _, ch := range waiting {
		ch <- uploadResult{err: ErrPickCanceled}
	}
	return len(waiting)
}

// Waiting returns the number of picks waiting for the browser.
func (u *Upload) Waiting() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.waiting)
}

func (u *Upload) complete(id string, r uploadResult) error {
	u.mu.Lock()
	ch, ok := u.waiting[id]
	if ok {
		delete(u.waiting, id)
	}
	u.mu.Unlock()

	if !ok {
		return ErrNoPickWaiting
	}
	ch <- r
	return nil
}
