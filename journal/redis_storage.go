package journal

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const DefaultRetention = 1000

const profilesKey = "pixfaker:profiles"

type RedisStorage struct {
	client *redis.Client
	ctx    context.Context
	max    int
}

func NewRedisStorage(ctx context.Context, addr, password string, db int) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStorage{
		client: rdb,
		ctx:    ctx,
		max:    DefaultRetention,
	}
}

func (r *RedisStorage) Ping() error {
	return r.client.Ping(r.ctx).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

func sessionsKey(profile string) string {
	return fmt.Sprintf("pixfaker:%s:sessions", profile)
}

func statsKey(profile string) string {
	return fmt.Sprintf("pixfaker:%s:stats", profile)
}

func (r *RedisStorage) Record(rec *Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	sKey := statsKey(rec.Profile)
	lKey := sessionsKey(rec.Profile)

	pipe := r.client.TxPipeline()
	pipe.SAdd(r.ctx, profilesKey, rec.Profile)
	pipe.LPush(r.ctx, lKey, data)
	pipe.LTrim(r.ctx, lKey, 0, int64(r.max-1))
	pipe.HIncrBy(r.ctx, sKey, "sessions", 1)
	pipe.HIncrBy(r.ctx, sKey, "uploaded", rec.Uploaded)
	pipe.HIncrBy(r.ctx, sKey, "term:"+rec.Termination, 1)
	for _, f := range rec.Faults {
		pipe.HIncrBy(r.ctx, sKey, "fault:"+f, 1)
	}

	_, err = pipe.Exec(r.ctx)
	return err
}

func (r *RedisStorage) Sessions(profile string, limit int) ([]*Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	raw, err := r.client.LRange(r.ctx, sessionsKey(profile), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(raw))
	for _, item := range raw {
		rec, err := decodeRecord([]byte(item))
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *RedisStorage) Stats(profile string) (*Stats, error) {
	result, err := r.client.HGetAll(r.ctx, statsKey(profile)).Result()
	if err != nil {
		return nil, err
	}
	return parseStatsHash(profile, result), nil
}

func parseStatsHash(profile string, fields map[string]string) *Stats {
	st := newStats(profile)
	for field, value := range fields {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		switch {
		case field == "sessions":
			st.Sessions = int(n)
		case field == "uploaded":
			st.Uploaded = n
		case strings.HasPrefix(field, "term:"):
			st.Terminations[strings.TrimPrefix(field, "term:")] = int(n)
		case strings.HasPrefix(field, "fault:"):
			st.Faults[strings.TrimPrefix(field, "fault:")] = int(n)
		}
	}
	return st
}

func (r *RedisStorage) Profiles() ([]string, error) {
	profiles, err := r.client.SMembers(r.ctx, profilesKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(profiles)
	return profiles, nil
}
