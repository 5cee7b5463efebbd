package blobstore

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trusted-programming/tree-grepper/internal/config"
)

const natsURLEnv = "TREEGREPPER_TEST_NATS_URL"

func TestNATSStore_Contract(t *testing.T) {
	url := os.Getenv(natsURLEnv)
	if url == "" {
		t.Skipf("%s not set", natsURLEnv)
	}

	store, err := NewNATSStore(config.NATSConfig{
		URL:           url,
		Bucket:        "tree_grepper_test_" + time.Now().Format("20060102150405"),
		MaxReconnects: 1,
		ReconnectWait: time.Second,
	})
	require.NoError(t, err)
	defer store.Close()

	runBlobStoreContract(t, store)
}

func TestNATSStore_RequiresURLAndBucket(t *testing.T) {
	_, err := NewNATSStore(config.NATSConfig{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewNATSStore(config.NATSConfig{URL: "nats://127.0.0.1:4222"})
	assert.Error(t, err)
}

func TestEscapeNATSKey(t *testing.T) {
	tests := []struct {
		key     string
		escaped string
	}{
		{key: "stdin/clean/ab01", escaped: "stdin/clean/ab01"},
		{key: "src/lib.rs/unsafe/ff", escaped: "src/lib=2Ers/unsafe/ff"},
		{key: "my file=x", escaped: "my=20file=3Dx"},
		{key: "ünï", escaped: "=C3=BCn=C3=AF"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			escaped := EscapeNATSKey(tt.key)
			assert.Equal(t, tt.escaped, escaped)

			back, err := UnescapeNATSKey(escaped)
			require.NoError(t, err)
			assert.Equal(t, tt.key, back)
		})
	}
}

func TestUnescapeNATSKey_Malformed(t *testing.T) {
	for _, bad := range []string{"a=", "a=4", "a=ZZ"} {
		_, err := UnescapeNATSKey(bad)
		assert.Error(t, err, bad)
	}
}
