package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port      string         `mapstructure:"port"`
	PprofAddr string         `mapstructure:"pprof_addr"`
	JWTSecret string         `mapstructure:"jwt_secret"`
	MongoSQL  DatabaseConfig `mapstructure:"mongo"`
	Redis     RedisConfig    `mapstructure:"redis"`
	MinIO     MinIOConfig    `mapstructure:"minio"`
}

// ChatClient definition chat_client YAML structure
type ChatClient struct {
	// BaseURL store endpoints, e.g. http://localhost:8081
	BaseURL string `mapstructure:"base_url"`
	// SocketURL live connection, e.g. ws://localhost:8081/ws
	SocketURL        string        `mapstructure:"socket_url"`
	Token            string        `mapstructure:"token"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	// Addr single node address, empty means use sentinel from .env
	Addr    string `mapstructure:"addr"`
	RedisDB int    `mapstructure:"redis_db"`
}

// MinIOConfig definition attachment bucket setting
type MinIOConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	BucketName    string `mapstructure:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`

	// PresignExpiry 0 回傳公開 url, 否則回傳有期限的 presigned url
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// WithDefaults fill client timeouts left empty in yaml
func (c ChatClient) WithDefaults() ChatClient {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	return c
}
