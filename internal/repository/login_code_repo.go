package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/redis/go-redis/v9"
)

// LoginCodeRepo keeps one-time admin login codes in redis
type LoginCodeRepo struct {
	rdb *redis.Client
}

// NewLoginCodeRepo creates a new LoginCodeRepo
func NewLoginCodeRepo(rdb *redis.Client) *LoginCodeRepo {
	return &LoginCodeRepo{rdb: rdb}
}

// Put stores the code hash of adminId, replacing an earlier one
func (r *LoginCodeRepo) Put(ctx context.Context, adminId int64, hash string, ttl time.Duration) error {
	return r.rdb.Set(ctx, fmt.Sprintf(constant.RedisKeyLoginCode(), adminId), hash, ttl).Err()
}

// Take returns and removes the code of adminId; empty when none is stored
func (r *LoginCodeRepo) Take(ctx context.Context, adminId int64) (string, error) {
	code, err := r.rdb.GetDel(ctx, fmt.Sprintf(constant.RedisKeyLoginCode(), adminId)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return code, err
}

type memoryCode struct {
	code      string
	expiresAt time.Time
}

// MemoryLoginCodeRepo keeps login codes in process when redis is disabled
type MemoryLoginCodeRepo struct {
	mu    sync.Mutex
	codes map[int64]memoryCode
	now   func() time.Time
}

// NewMemoryLoginCodeRepo creates a new MemoryLoginCodeRepo
func NewMemoryLoginCodeRepo(now func() time.Time) *MemoryLoginCodeRepo {
	return &MemoryLoginCodeRepo{codes: make(map[int64]memoryCode), now: now}
}

// Put stores the code hash of adminId, replacing an earlier one
func (r *MemoryLoginCodeRepo) Put(_ context.Context, adminId int64, hash string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[adminId] = memoryCode{code: hash, expiresAt: r.now().Add(ttl)}
	return nil
}

// Take returns and removes the code of adminId; empty when none is stored or it expired
func (r *MemoryLoginCodeRepo) Take(_ context.Context, adminId int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[adminId]
	delete(r.codes, adminId)
	if !ok || !r.now().Before(c.expiresAt) {
		return "", nil
	}
	return c.code, nil
}
