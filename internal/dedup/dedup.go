// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dedup provides ticket claims using Redis SET NX with a TTL. A claim
// keeps two workers, or two migrator processes sharing one Redis, from
// migrating the same ticket at once.
package dedup

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL bounds how long a crashed worker can hold a ticket.
	DefaultTTL = 30 * time.Minute

	// keyPrefix namespaces claim keys in Redis.
	keyPrefix = "migrator:claim:"
)

// store is the subset of *redis.Client the filter uses.
type store interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Filter tracks which tickets are being migrated.
type Filter struct {
	rdb store
	ttl time.Duration
}

// NewFilter creates a claim filter backed by Redis.
func NewFilter(rdb store) *Filter {
	return &Filter{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// WithTTL returns a copy of f using ttl for new claims. A ttl of zero or
// less keeps the current one.
func (f *Filter) WithTTL(ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = f.ttl
	}
	return &Filter{rdb: f.rdb, ttl: ttl}
}

func claimKey(ticketID int64) string {
	return keyPrefix + strconv.FormatInt(ticketID, 10)
}

// Claim returns true if nobody else holds the ticket. If true, the claim is
// recorded atomically (SETNX).
func (f *Filter) Claim(ctx context.Context, ticketID int64) (bool, error) {
	set, err := f.rdb.SetNX(ctx, claimKey(ticketID), 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim SETNX: %w", err)
	}
	return set, nil
}

// Release drops a claim so the ticket can be retried.
func (f *Filter) Release(ctx context.Context, ticketID int64) error {
	if err := f.rdb.Del(ctx, claimKey(ticketID)).Err(); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}
