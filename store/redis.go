package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyburd/redigo/redis"

	cc2420 "github.com/michcald/cc2420sim"
)

// Timeout bounds every redis read and write.
const Timeout = 500 * time.Millisecond

// KeyPrefix namespaces snapshot keys.
const KeyPrefix = "cc2420:snapshot:"

// Redis keeps snapshots as JSON strings in a redis database.
type Redis struct {
	Conn redis.Conn
}

// Dial connects to the redis server at address ("host:port").
func Dial(address string) (*Redis, error) {
	conn, err := redis.Dial("tcp", address,
		redis.DialConnectTimeout(Timeout),
		redis.DialReadTimeout(Timeout),
		redis.DialWriteTimeout(Timeout))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPkg, err)
	}
	return &Redis{Conn: conn}, nil
}

// Close closes the connection.
func (r *Redis) Close() error { return r.Conn.Close() }

// Save stores s under key.
func (r *Redis) Save(key string, s cc2420.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if _, err := r.Conn.Do("SET", KeyPrefix+key, data); err != nil {
		return fmt.Errorf("%w: SET %s: %w", ErrPkg, key, err)
	}
	return nil
}

// Load returns the snapshot stored under key.
func (r *Redis) Load(key string) (cc2420.Snapshot, error) {
	data, err := redis.Bytes(r.Conn.Do("GET", KeyPrefix+key))
	if errors.Is(err, redis.ErrNil) {
		return cc2420.Snapshot{}, fmt.Errorf("%w: %w: %s", ErrPkg, ErrNotFound, key)
	}
	if err != nil {
		return cc2420.Snapshot{}, fmt.Errorf("%w: GET %s: %w", ErrPkg, key, err)
	}

	var s cc2420.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return cc2420.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return s, nil
}

// Delete removes the snapshot stored under key.
func (r *Redis) Delete(key string) error {
	if _, err := r.Conn.Do("DEL", KeyPrefix+key); err != nil {
		return fmt.Errorf("%w: DEL %s: %w", ErrPkg, key, err)
	}
	return nil
}

// Keys lists the names of stored snapshots.
func (r *Redis) Keys() ([]string, error) {
	keys, err := redis.Strings(r.Conn.Do("KEYS", KeyPrefix+"*"))
	if err != nil {
		return nil, fmt.Errorf("%w: KEYS: %w", ErrPkg, err)
	}
	for i, k := range keys {
		keys[i] = k[len(KeyPrefix):]
	}
	return keys, nil
}
