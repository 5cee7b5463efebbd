package blobstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/config"
)

const natsConnectionTimeout = 5 * time.Second

// NATSStore keeps blobs in a JetStream key/value bucket. Keys are escaped to the
// bucket's key alphabet and unescaped on listing.
type NATSStore struct {
	conn   *nats.Conn
	kv     nats.KeyValue
	bucket string
}

// NewNATSStore connects to cfg.URL and binds the bucket, creating it when missing.
func NewNATSStore(cfg config.NATSConfig) (*NATSStore, error) {
	if cfg.URL == "" {
		return nil, storeError(opOpen, "", errors.New("NATS URL cannot be empty"))
	}
	if cfg.Bucket == "" {
		return nil, storeError(opOpen, "", errors.New("NATS bucket cannot be empty"))
	}

	opts := []nats.Option{
		nats.Name("tree-grepper"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(natsConnectionTimeout),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slogger.InfoNoCtx("NATS reconnected", slogger.Fields{"url": c.ConnectedUrl()})
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slogger.WarnNoCtx("NATS disconnected", slogger.Fields{"error": err.Error()})
			}
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, storeError(opOpen, cfg.Bucket, fmt.Errorf("failed to connect to NATS: %w", err))
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, storeError(opOpen, cfg.Bucket, fmt.Errorf("failed to create JetStream context: %w", err))
	}

	kv, err := js.KeyValue(cfg.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      cfg.Bucket,
			Description: "tree-grepper item artifacts",
			Storage:     nats.FileStorage,
		})
	}
	if err != nil {
		conn.Close()
		return nil, storeError(opOpen, cfg.Bucket, err)
	}

	return &NATSStore{conn: conn, kv: kv, bucket: cfg.Bucket}, nil
}

// Get reads the value stored under key.
func (s *NATSStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	entry, err := s.kv.Get(EscapeNATSKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return "", notFound(key)
	}
	if err != nil {
		return "", storeError(opGet, key, err)
	}
	return string(entry.Value()), nil
}

// Put stores value under key.
func (s *NATSStore) Put(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return storeError(opPut, key, err)
	}
	_, err := s.kv.PutString(EscapeNATSKey(key), value)
	return storeError(opPut, key, err)
}

// Delete places a delete marker on key. A missing key is not an error.
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.kv.Delete(EscapeNATSKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil
	}
	return storeError(opDelete, key, err)
}

// Keys returns every live key starting with prefix, sorted.
func (s *NATSStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	escaped, err := s.kv.Keys(nats.Context(ctx))
	if errors.Is(err, nats.ErrNoKeysFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, storeError(opKeys, prefix, err)
	}

	keys := make([]string, 0, len(escaped))
	for _, e := range escaped {
		key, err := UnescapeNATSKey(e)
		if err != nil {
			return nil, storeError(opKeys, e, err)
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close drains the connection.
func (s *NATSStore) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}

const natsEscape = '='

func natsKeyByteAllowed(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '-' || c == '_' || c == '/'
}

// EscapeNATSKey maps key onto the JetStream key alphabet. Bytes outside
// [A-Za-z0-9_/-] become =XX.
func EscapeNATSKey(key string) string {
	var sb strings.Builder
	sb.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if natsKeyByteAllowed(c) {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "%c%02X", natsEscape, c)
	}
	return sb.String()
}

// UnescapeNATSKey reverses EscapeNATSKey.
func UnescapeNATSKey(escaped string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		if c != natsEscape {
			sb.WriteByte(c)
			continue
		}
		if i+2 >= len(escaped) {
			return "", fmt.Errorf("truncated escape in key %q", escaped)
		}
		b, err := strconv.ParseUint(escaped[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("bad escape in key %q: %w", escaped, err)
		}
		sb.WriteByte(byte(b))
		i += 2
	}
	return sb.String(), nil
}
