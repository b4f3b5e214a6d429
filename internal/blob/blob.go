// Package blob defines the object storage abstraction used for snapshot
// backups and report artifacts, plus the driver selection factory.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem is the local filesystem driver (default, dev).
	DriverFilesystem Driver = "fs"
	// DriverS3 is the S3 / MinIO compatible driver.
	DriverS3 Driver = "s3"
	// DriverMemory is the in-process driver used in tests.
	DriverMemory Driver = "memory"
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string            // MIME type, optional
	Metadata    map[string]string // small flat key-value user metadata
}

// Object describes a stored blob.
type Object struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is a minimal object-store surface. Put overwrites: backup keys are
// timestamped, so collisions only happen on deliberate re-writes.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Object, error)
	Get(ctx context.Context, key string) (Object, io.ReadCloser, error)
	Delete(ctx context.Context, key string) (bool, error)
	// List returns objects under prefix, ordered by key ascending.
	List(ctx context.Context, prefix string) ([]Object, error)
	// PresignURL returns a time-limited GET URL, or ErrUnsupported.
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Driver() Driver
}

// ErrUnsupported is returned when an optional capability is not available.
var ErrUnsupported = errors.New("blob: unsupported operation")

// ErrNotFound is returned when the requested key does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Config selects and parameterizes a blob backend.
type Config struct {
	Driver Driver `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`

	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
}

// ConfigFromEnv reads backend selection from the environment.
//
//	SIGNALSAI_BLOB_DRIVER: fs|s3|memory (default fs)
//	SIGNALSAI_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	SIGNALSAI_BLOB_S3_BUCKET / _REGION / _ENDPOINT / _PATH_STYLE
//	SIGNALSAI_BLOB_S3_ACCESS_KEY / _SECRET_KEY (optional, else default chain)
func ConfigFromEnv() Config {
	return Config{
		Driver:      Driver(os.Getenv("SIGNALSAI_BLOB_DRIVER")),
		FSRoot:      os.Getenv("SIGNALSAI_BLOB_FS_ROOT"),
		S3Bucket:    os.Getenv("SIGNALSAI_BLOB_S3_BUCKET"),
		S3Region:    os.Getenv("SIGNALSAI_BLOB_S3_REGION"),
		S3Endpoint:  os.Getenv("SIGNALSAI_BLOB_S3_ENDPOINT"),
		S3PathStyle: strings.EqualFold(os.Getenv("SIGNALSAI_BLOB_S3_PATH_STYLE"), "true"),
		S3AccessKey: os.Getenv("SIGNALSAI_BLOB_S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("SIGNALSAI_BLOB_S3_SECRET_KEY"),
	}
}

// openFuncs is populated by the driver packages through Register to avoid an
// import cycle between the facade and its implementations.
var openFuncs = map[Driver]func(context.Context, Config) (Store, error){}

// Register installs a driver constructor. Called from driver package init.
func Register(driver Driver, open func(context.Context, Config) (Store, error)) {
	openFuncs[driver] = open
}

// Open constructs the configured backend. Unset driver defaults to fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	open, ok := openFuncs[driver]
	if !ok {
		return nil, fmt.Errorf("unknown or unlinked blob driver %s", driver)
	}
	return open(ctx, cfg)
}
