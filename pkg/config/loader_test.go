package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `port: "${TEST_CHAT_PORT}"
jwt_secret: "${TEST_JWT_SECRET}"
mongo:
  host: mongo
  port: 27017
  database: campus_chat
  retry_count: 3
redis:
  addr: "${TEST_REDIS_ADDR}"
minio:
  bucket: chat-attachments
  presign_expiry: 15m
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat_test_service.yaml"), []byte(yaml), 0o644))
	t.Setenv("TEST_CHAT_PORT", "9090")
	t.Setenv("TEST_JWT_SECRET", "s3cret")
	t.Setenv("TEST_REDIS_ADDR", "redis:6379")

	cfg, err := LoadConfig[Chat]("chat_test_service", dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 27017, cfg.MongoSQL.Port)
	assert.Equal(t, 3, cfg.MongoSQL.RetryCount)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 15*time.Minute, cfg.MinIO.PresignExpiry)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig[Chat]("does_not_exist", t.TempDir())
	assert.Error(t, err)
}

func TestChatClient_WithDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := "base_url: http://localhost:8081\nsocket_url: ws://localhost:8081/ws\nrequest_timeout: 3s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "client_test.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadConfig[ChatClient]("client_test", dir)
	require.NoError(t, err)
	cfg = cfg.WithDefaults()

	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, "ws://localhost:8081/ws", cfg.SocketURL)
}

func TestGetPath(t *testing.T) {
	_, err := GetPath("no-such-file.txt", 2)
	assert.Error(t, err)

	path, err := GetPath("loader.go", 1)
	require.NoError(t, err)
	assert.Equal(t, "./loader.go", path)
}
