package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"audiencepulse/internal/platform/logger"
	"audiencepulse/internal/services/pulse/domain"
)

// releaseScript deletes the claim only while it still names the caller
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is the shared backend; expiry is delegated to key TTLs
type Redis struct {
	rdb *redis.Client
	opt Options
}

var _ domain.Cache = (*Redis)(nil)

// NewRedis wraps an existing client; Close leaves the client open
func NewRedis(rdb *redis.Client, opt Options) *Redis {
	return &Redis{rdb: rdb, opt: opt.withDefaults()}
}

func (r *Redis) claimKey(fp string) string { return r.opt.Prefix + "claim:" + fp }
func (r *Redis) jobKey(id string) string   { return r.opt.Prefix + "job:" + id }
func (r *Redis) doneKey(fp string) string  { return r.opt.Prefix + "done:" + fp }
func (r *Redis) collKey(k string) string   { return r.opt.Prefix + "coll:" + k }

// Claim is SET NX with the claim TTL; a lost race reports the current owner
func (r *Redis) Claim(ctx context.Context, fingerprint, jobID string) (string, bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.claimKey(fingerprint), jobID, r.opt.ClaimTTL).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return jobID, true, nil
	}
	owner, err := r.rdb.Get(ctx, r.claimKey(fingerprint)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// released between SETNX and GET; try once more
		ok, err = r.rdb.SetNX(ctx, r.claimKey(fingerprint), jobID, r.opt.ClaimTTL).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return jobID, true, nil
		}
		owner, err = r.rdb.Get(ctx, r.claimKey(fingerprint)).Result()
		if err != nil {
			return "", false, err
		}
	case err != nil:
		return "", false, err
	}
	return owner, owner == jobID, nil
}

// Release deletes the claim if jobID still holds it
func (r *Redis) Release(ctx context.Context, fingerprint, jobID string) error {
	return releaseScript.Run(ctx, r.rdb, []string{r.claimKey(fingerprint)}, jobID).Err()
}

// PutJob stores the snapshot as JSON with the TTL
func (r *Redis) PutJob(ctx context.Context, j domain.Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.jobKey(j.ID), b, r.opt.TTL)
	if j.State == domain.StateCompleted {
		pipe.Set(ctx, r.doneKey(j.Fingerprint), j.ID, r.opt.TTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Job loads a snapshot
func (r *Redis) Job(ctx context.Context, id string) (domain.Job, bool, error) {
	var j domain.Job
	ok, err := r.getJSON(ctx, r.jobKey(id), &j)
	return j, ok, err
}

// Completed loads the completed snapshot of fingerprint
func (r *Redis) Completed(ctx context.Context, fingerprint string) (domain.Job, bool, error) {
	id, err := r.rdb.Get(ctx, r.doneKey(fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Job{}, false, nil
	}
	if err != nil {
		return domain.Job{}, false, err
	}
	return r.Job(ctx, id)
}

// PutCollection stores one target's collection
func (r *Redis) PutCollection(ctx context.Context, c domain.Collection) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.collKey(c.Key()), b, r.opt.TTL).Err()
}

// Collection loads a cached collection
func (r *Redis) Collection(ctx context.Context, key string) (domain.Collection, bool, error) {
	var c domain.Collection
	ok, err := r.getJSON(ctx, r.collKey(key), &c)
	c.FromCache = ok
	return c, ok, err
}

func (r *Redis) getJSON(ctx context.Context, key string, v any) (bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, err
	}
	return true, nil
}

// Sweep releases claims whose job is already terminal or gone; everything else expires by TTL
func (r *Redis) Sweep(ctx context.Context) (int, error) {
	n := 0
	iter := r.rdb.Scan(ctx, 0, r.opt.Prefix+"claim:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id, err := r.rdb.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		j, ok, err := r.Job(ctx, id)
		if err != nil {
			logger.Named("cache").Warn().Err(err).Str("key", key).Msg("sweep: load job failed")
			continue
		}
		if ok && !j.State.Terminal() {
			continue
		}
		if err := releaseScript.Run(ctx, r.rdb, []string{key}, id).Err(); err == nil {
			n++
		}
	}
	return n, iter.Err()
}

// Close is a no-op; the client belongs to the store
func (r *Redis) Close() error { return nil }
