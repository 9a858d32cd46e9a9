// Package caching keeps verified login sessions in process memory so the
// bearer-token middleware does not hit SQLite on every request.
package caching

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/vitalink-io/vitalink/database/model"
)

// sessionTTL bounds how long a verified token is trusted without a fresh
// database lookup. Logout drops the entry immediately; edits from the other
// node become visible after at most this window.
const sessionTTL = time.Minute

type Cache struct {
	memoryCache *cache.Cache

	ctx    context.Context
	cancel context.CancelFunc
}

func NewCache() *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Cache) Init() (err error) {
	defer func() {
		if err != nil {
			s.Flush()
		}
	}()

	s.memoryCache = cache.New(sessionTTL, 10*time.Minute)

	return nil
}

func (s *Cache) Flush() error {
	if s.memoryCache != nil {
		s.memoryCache.Flush()
	}
	s.cancel()

	return nil
}

func (s *Cache) GetCtx() context.Context {
	return s.ctx
}

type sessionEntry struct {
	user model.User
}

// GetSession returns the cached account for a bearer token, if present.
func (s *Cache) GetSession(token string) (*model.User, bool) {
	if s.memoryCache == nil {
		return nil, false
	}
	v, ok := s.memoryCache.Get(token)
	if !ok {
		return nil, false
	}
	entry, ok := v.(sessionEntry)
	if !ok {
		return nil, false
	}
	user := entry.user
	return &user, true
}

// PutSession caches a freshly verified token.
func (s *Cache) PutSession(token string, user model.User) {
	if s.memoryCache == nil {
		return
	}
	s.memoryCache.Set(token, sessionEntry{user: user}, sessionTTL)
}

// DropSession removes a single token, used on logout.
func (s *Cache) DropSession(token string) {
	if s.memoryCache == nil {
		return
	}
	s.memoryCache.Delete(token)
}

// DropUser removes every cached session belonging to a user, used when an
// account is edited or deleted so stale credentials stop working at once.
func (s *Cache) DropUser(userId int) {
	if s.memoryCache == nil {
		return
	}
	for key, item := range s.memoryCache.Items() {
		if entry, ok := item.Object.(sessionEntry); ok && entry.user.Id == userId {
			s.memoryCache.Delete(key)
		}
	}
}
