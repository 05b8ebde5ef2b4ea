package auth

import (
	"context"
	"sync"
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"
)

type session struct {
	userId    string
	expiresAt time.Time
}

// fakeSessions считает обращения к провайдеру.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]session
	calls    int
}

func (f *fakeSessions) LookupSession(ctx context.Context, token string) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	sess, ok := f.sessions[token]
	if !ok {
		return "", time.Time{}, models.ErrUnauthorized
	}
	return sess.userId, sess.expiresAt, nil
}

func (f *fakeSessions) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
