package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env          Env
	Log          LogConfig
	Server       ServerConfig
	Upload       UploadConfig
	Storage      StorageConfig
	Minio        MinioConfig
	FS           FSConfig
	SessionStore SessionStoreConfig
	Database     DatabaseConfig
	Cache        CacheConfig
	Redis        RedisConfig
	Lock         LockConfig
	NATS         NATSConfig
}

type Env struct {
	Env string `envconfig:"ENV" default:"DEV"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"localhost"`
	Port            string        `envconfig:"SERVER_PORT" default:"8080"`
	HandlerTimeout  time.Duration `envconfig:"SERVER_HANDLER_TIMEOUT" default:"30m"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// Collision policies for client supplied ids
const (
	CollisionReject    = "reject"
	CollisionOverwrite = "overwrite"
)

type UploadConfig struct {
	MaxSize         int64         `envconfig:"UPLOAD_MAX_SIZE" default:"5368709120"`    // 5GB
	MaxChunkSize    int64         `envconfig:"UPLOAD_MAX_CHUNK_SIZE" default:"52428800"` // 50MB
	SessionTTL      time.Duration `envconfig:"UPLOAD_SESSION_TTL" default:"24h"`
	CleanupEvery    time.Duration `envconfig:"UPLOAD_CLEANUP_EVERY" default:"15m"`
	CollisionPolicy string        `envconfig:"UPLOAD_COLLISION_POLICY" default:"reject"`
	GenerateIDs     bool          `envconfig:"UPLOAD_GENERATE_IDS" default:"false"`
	BasePath        string        `envconfig:"UPLOAD_BASE_PATH" default:"/files/attachments"`
}

type StorageConfig struct {
	Driver         string        `envconfig:"STORAGE_DRIVER" default:"minio"`
	RetryAttempts  int           `envconfig:"STORAGE_RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"STORAGE_RETRY_BASE_DELAY" default:"100ms"`
	RetryMaxDelay  time.Duration `envconfig:"STORAGE_RETRY_MAX_DELAY" default:"2s"`
	AttemptTimeout time.Duration `envconfig:"STORAGE_ATTEMPT_TIMEOUT" default:"60s"`
}

type MinioConfig struct {
	Endpoint   string `envconfig:"MINIO_ENDPOINT"`
	BucketName string `envconfig:"MINIO_BUCKET_NAME" default:"attachments"`
	AccessKey  string `envconfig:"MINIO_ACCESS_KEY"`
	SecretKey  string `envconfig:"MINIO_SECRET_KEY"`
	UseSSL     bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type FSConfig struct {
	Root string `envconfig:"FS_ROOT" default:"./data"`
}

type SessionStoreConfig struct {
	Driver string `envconfig:"SESSION_STORE_DRIVER" default:"postgres"`
}

type DatabaseConfig struct {
	Host           string        `envconfig:"DB_HOST" default:"localhost"`
	Port           int           `envconfig:"DB_PORT" default:"5432"`
	User           string        `envconfig:"DB_USER"`
	Password       string        `envconfig:"DB_PASSWORD"`
	Name           string        `envconfig:"DB_NAME"`
	SSLMode        string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenCons    int           `envconfig:"DB_MAX_OPEN_CONS" default:"25"`
	MaxIdleCons    int           `envconfig:"DB_MAX_IDLE_CONS" default:"5"`
	ConMaxLifeTime time.Duration `envconfig:"DB_CONMAX_LIFE_TIME" default:"5m"`
}

type CacheConfig struct {
	Driver        string        `envconfig:"CACHE_DRIVER" default:"memory"`
	MaxObjectSize int64         `envconfig:"CACHE_MAX_OBJECT_SIZE" default:"1048576"` // 1MB
	MaxEntries    int           `envconfig:"CACHE_MAX_ENTRIES" default:"256"`
	TTL           time.Duration `envconfig:"CACHE_TTL" default:"10m"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type LockConfig struct {
	Driver string        `envconfig:"LOCK_DRIVER" default:"memory"`
	TTL    time.Duration `envconfig:"LOCK_TTL" default:"30m"`
}

// NATSConfig is optional, an empty URL disables event publishing
type NATSConfig struct {
	URL          string `envconfig:"NATS_URL"`
	StreamName   string `envconfig:"NATS_STREAM_NAME" default:"UPLOADS"`
	ConsumerName string `envconfig:"NATS_CONSUMER_NAME" default:"mediaworker"`
	Subject      string `envconfig:"NATS_SUBJECT" default:"uploads.completed"`
}

// DSN builds the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Load reads the API server configuration and validates every group it uses
func Load() (*Config, error) {
	return load((*Config).validate)
}

// LoadMediaWorker reads the configuration of the media worker. Only storage and
// NATS are checked, the session store and HTTP settings are not used there.
func LoadMediaWorker() (*Config, error) {
	return load((*Config).validateMediaWorker)
}

func load(validate func(*Config) error) (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Upload.CollisionPolicy {
	case CollisionReject, CollisionOverwrite:
	default:
		return fmt.Errorf("UPLOAD_COLLISION_POLICY must be %q or %q", CollisionReject, CollisionOverwrite)
	}
	if c.Upload.MaxChunkSize <= 0 || c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload sizes must be positive")
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	switch c.SessionStore.Driver {
	case "postgres":
		if c.Database.User == "" || c.Database.Name == "" {
			return fmt.Errorf("postgres session store requires DB_USER and DB_NAME")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown SESSION_STORE_DRIVER %q", c.SessionStore.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.Cache.Driver)
	}
	switch c.Lock.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown LOCK_DRIVER %q", c.Lock.Driver)
	}
	return nil
}

func (c *Config) validateMediaWorker() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("media worker requires NATS_URL")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.RetryAttempts < 1 {
		return fmt.Errorf("STORAGE_RETRY_ATTEMPTS must be at least 1")
	}
	switch c.Storage.Driver {
	case "minio":
		if c.Minio.Endpoint == "" || c.Minio.AccessKey == "" || c.Minio.SecretKey == "" {
			return fmt.Errorf("minio storage requires MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY")
		}
	case "fs":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}
