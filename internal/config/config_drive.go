package config

import "time"

// DriveConfig selects and configures the C6 drive monitor's
// object-store backend, grounded on internal/drive.S3Config/
// NewLocalFileStore's constructor parameters.
type DriveConfig struct {
	// Backend is "s3" (github.com/aws/aws-sdk-go-v2/service/s3) or
	// "local" (internal/drive.LocalFileStore, a filesystem directory
	// watched the same way).
	Backend string `yaml:"backend"`

	Bucket string `yaml:"bucket"` // S3 bucket name, or the bot's subdirectory under LocalPath

	// S3-only fields; ignored for Backend "local".
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`

	// LocalPath is the filesystem root for Backend "local".
	LocalPath string `yaml:"local_path"`

	// PollInterval is how often the drive monitor's check_for_changes
	// tick runs (spec.md §5's 300s overall timeout bounds a single
	// tick, not the interval between them).
	PollInterval time.Duration `yaml:"poll_interval"`
}
