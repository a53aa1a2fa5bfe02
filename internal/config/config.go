package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Config holds everything a single deployment run needs.
// It is built once at startup and treated as read-only afterwards.
type Config struct {
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// ContentDir is the local game content directory holding cars/ and tracks/.
	ContentDir string `yaml:"content_dir"`
	// StagingDir is the local working directory for archives and the extracted pack.
	StagingDir string `yaml:"staging_dir"`
	// BaselineFile optionally replaces the embedded base game content list.
	BaselineFile string `yaml:"baseline_file,omitempty"`

	Storage  Storage  `yaml:"storage"`
	Manifest Manifest `yaml:"manifest"`
	Target   Target   `yaml:"target"`
	Service  Service  `yaml:"service"`
}

// Storage describes the S3-compatible bucket that serves content downloads.
type Storage struct {
	// Endpoint is host[:port] of the S3 API, without scheme.
	Endpoint string `yaml:"endpoint"`
	// Region of the bucket.
	Region string `yaml:"region"`
	// Bucket receives the packaged archives.
	Bucket string `yaml:"bucket"`
	// AccessKey and SecretKey are HMAC credentials.
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// Insecure disables TLS towards the endpoint.
	Insecure bool `yaml:"insecure,omitempty"`
	// PublicBaseURL prefixes object paths to build download URLs.
	PublicBaseURL string `yaml:"public_base_url"`
}

// Manifest locates the client content manifest and its category keys.
type Manifest struct {
	// Path is relative to the extracted server pack.
	Path string `yaml:"path"`
	// CarKey and TrackKey are the top-level keys for each category.
	// The defaults ("cars" and "track") are read by existing clients as-is.
	CarKey   string `yaml:"car_key"`
	TrackKey string `yaml:"track_key"`
}

// Target identifies the remote server host.
type Target struct {
	// Transport is "gcloud" or "ssh".
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Zone      string `yaml:"zone"`
	// Project is passed to gcloud when set.
	Project   string `yaml:"project,omitempty"`
	Principal string `yaml:"principal"`
	// Path is the absolute server directory whose content is replaced.
	Path string `yaml:"path"`
	// GcloudPath overrides the gcloud executable lookup.
	GcloudPath string `yaml:"gcloud_path,omitempty"`
	// SSHPort, SSHKeyFile and KnownHostsFile configure the ssh transport.
	SSHPort        int    `yaml:"ssh_port,omitempty"`
	SSHKeyFile     string `yaml:"ssh_key_file,omitempty"`
	KnownHostsFile string `yaml:"known_hosts_file,omitempty"`
	// Timeout bounds connection setup of the ssh transport.
	Timeout time.Duration `yaml:"timeout"`
}

// Service describes the supervised game server process.
type Service struct {
	// Name is the systemd unit name.
	Name string `yaml:"name"`
	// Owner is passed to chown for replaced directories, e.g. "acserver:acserver".
	Owner string `yaml:"owner,omitempty"`
	// Directories are replaced wholesale from the staged pack.
	Directories []string `yaml:"directories"`
	// LogLines is how many journal lines are inspected after a failure.
	LogLines int `yaml:"log_lines"`
	// HealthAttempts and HealthInterval bound polling of a unit still activating.
	HealthAttempts uint          `yaml:"health_attempts"`
	HealthInterval time.Duration `yaml:"health_interval"`
	// FailureSignatures extend the built-in log patterns used for diagnosis.
	FailureSignatures []Signature `yaml:"failure_signatures,omitempty"`
}

// Signature maps a log pattern to a human-readable failure cause.
type Signature struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Cause   string `yaml:"cause"`
}

const (
	// DefaultConfigFilename is read when no --config flag is given.
	DefaultConfigFilename = "ac-deploy.yaml"
	// DefaultEnvFilename is the dotenv file loaded next to the working directory.
	DefaultEnvFilename = ".env"
	// DefaultStagingDir matches the uploads folder used by the old scripts.
	DefaultStagingDir = "uploads"
	// DefaultEndpoint is the S3-compatible XML API of Google Cloud Storage.
	DefaultEndpoint = "storage.googleapis.com"
	// DefaultRegion is accepted by GCS interoperability.
	DefaultRegion = "auto"
	// DefaultManifestPath is where Content Manager server packs keep content.json.
	DefaultManifestPath = "cfg/cm_content/content.json"
	// DefaultCarKey and DefaultTrackKey are the manifest category keys.
	DefaultCarKey   = "cars"
	DefaultTrackKey = "track"
	// TransportGcloud and TransportSSH are the supported remote transports.
	TransportGcloud = "gcloud"
	TransportSSH    = "ssh"
	// DefaultServiceName is the systemd unit of the game server.
	DefaultServiceName = "assettoserver"
	// DefaultLogLines is the journal tail size used for diagnosis.
	DefaultLogLines = 50
	// DefaultHealthAttempts and DefaultHealthInterval bound the health probe.
	DefaultHealthAttempts = 5
	DefaultHealthInterval = 2 * time.Second
	// DefaultTimeout bounds ssh connection setup.
	DefaultTimeout = 30 * time.Second
	// DefaultSSHPort is used by the ssh transport.
	DefaultSSHPort = 22
	// DefaultKnownHostsFile verifies host keys for the ssh transport.
	DefaultKnownHostsFile = "~/.ssh/known_hosts"

	// DefaultFilePermissions restricts saved settings, which hold credentials.
	DefaultFilePermissions = 0o600
)

var (
	errConfigIsNotSet       = errors.New("configuration is not set")
	errContentDirRequired   = errors.New("content directory must be provided (ASSETTO_CORSA_DIR)")
	errBucketRequired       = errors.New("storage bucket must be provided (GCP_BUCKET_NAME)")
	errCredentialsRequired  = errors.New("storage access key and secret key must be provided")
	errEndpointHasScheme    = errors.New("storage endpoint must not include a scheme")
	errHostRequired         = errors.New("target host must be provided (GCP_VM_INSTANCE_NAME)")
	errZoneRequired         = errors.New("target zone must be provided for gcloud (GCP_VM_ZONE)")
	errTargetPathRequired   = errors.New("target path must be provided (GCP_VM_DESTINATION_PATH)")
	errTargetPathNotAbs     = errors.New("target path must be absolute and not the filesystem root")
	errUnknownTransport     = errors.New("unknown transport")
	errSSHKeyRequired       = errors.New("ssh key file must be provided for the ssh transport")
	errServiceNameRequired  = errors.New("service name must be provided")
	errBadManagedDirectory  = errors.New("managed directory must be a single relative path segment")
	errManifestKeysRequired = errors.New("manifest category keys must be non-empty and distinct")
)

// Load reads settings from path, then the .env file, then the environment.
// A missing file is only tolerated for the default filename.
// Defaults are applied; callers pick the validation level they need.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	cfg := new(Config)

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = loadDotEnv(DefaultEnvFilename); err != nil {
		return nil, err
	}

	if err = applyEnvironment(cfg); err != nil {
		return nil, err
	}

	if err = applyDefaults(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// applyDefaults fills unset fields and expands ~ in local paths.
func applyDefaults(cfg *Config) error {
	if cfg.StagingDir == "" {
		cfg.StagingDir = DefaultStagingDir
	}

	if cfg.Storage.Endpoint == "" {
		cfg.Storage.Endpoint = DefaultEndpoint
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = DefaultRegion
	}

	if cfg.Storage.PublicBaseURL == "" && cfg.Storage.Bucket != "" {
		scheme := "https"
		if cfg.Storage.Insecure {
			scheme = "http"
		}

		cfg.Storage.PublicBaseURL = scheme + "://" + cfg.Storage.Endpoint + "/" + cfg.Storage.Bucket
	}

	cfg.Storage.PublicBaseURL = strings.TrimRight(cfg.Storage.PublicBaseURL, "/")

	if cfg.Manifest.Path == "" {
		cfg.Manifest.Path = DefaultManifestPath
	}

	if cfg.Manifest.CarKey == "" {
		cfg.Manifest.CarKey = DefaultCarKey
	}

	if cfg.Manifest.TrackKey == "" {
		cfg.Manifest.TrackKey = DefaultTrackKey
	}

	if cfg.Target.Transport == "" {
		cfg.Target.Transport = TransportGcloud
	}

	if cfg.Target.SSHPort == 0 {
		cfg.Target.SSHPort = DefaultSSHPort
	}

	if cfg.Target.Transport == TransportSSH && cfg.Target.KnownHostsFile == "" {
		cfg.Target.KnownHostsFile = DefaultKnownHostsFile
	}

	// gcloud picks the local user itself; the ssh transport needs it spelled out.
	if cfg.Target.Transport == TransportSSH && cfg.Target.Principal == "" {
		if current, err := user.Current(); err == nil {
			cfg.Target.Principal = current.Username
		}
	}

	if cfg.Target.Timeout <= 0 {
		cfg.Target.Timeout = DefaultTimeout
	}

	if cfg.Service.Name == "" {
		cfg.Service.Name = DefaultServiceName
	}

	if len(cfg.Service.Directories) == 0 {
		cfg.Service.Directories = []string{"cfg", "content"}
	}

	if cfg.Service.LogLines <= 0 {
		cfg.Service.LogLines = DefaultLogLines
	}

	if cfg.Service.HealthAttempts == 0 {
		cfg.Service.HealthAttempts = DefaultHealthAttempts
	}

	if cfg.Service.HealthInterval <= 0 {
		cfg.Service.HealthInterval = DefaultHealthInterval
	}

	for _, p := range []*string{
		&cfg.ContentDir,
		&cfg.StagingDir,
		&cfg.BaselineFile,
		&cfg.Target.SSHKeyFile,
		&cfg.Target.KnownHostsFile,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand %q: %w", *p, err)
		}

		*p = expanded
	}

	return nil
}

// ValidateStorage checks the settings needed to compute download URLs and upload.
func ValidateStorage(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Storage.Bucket == "" {
		return errBucketRequired
	}

	if strings.Contains(cfg.Storage.Endpoint, "://") {
		return fmt.Errorf("%w: %q", errEndpointHasScheme, cfg.Storage.Endpoint)
	}

	if cfg.Manifest.CarKey == "" || cfg.Manifest.TrackKey == "" || cfg.Manifest.CarKey == cfg.Manifest.TrackKey {
		return errManifestKeysRequired
	}

	return nil
}

// Validate checks everything a full deployment run needs.
func Validate(cfg *Config) error {
	if err := ValidateStorage(cfg); err != nil {
		return err
	}

	if cfg.ContentDir == "" {
		return errContentDirRequired
	}

	if cfg.Storage.AccessKey == "" || cfg.Storage.SecretKey == "" {
		return errCredentialsRequired
	}

	if err := validateTarget(&cfg.Target); err != nil {
		return err
	}

	if cfg.Service.Name == "" {
		return errServiceNameRequired
	}

	for _, dir := range cfg.Service.Directories {
		if dir == "" || dir == "." || dir == ".." || strings.ContainsAny(dir, `/\`) {
			return fmt.Errorf("%w: %q", errBadManagedDirectory, dir)
		}
	}

	return nil
}

func validateTarget(t *Target) error {
	if t.Host == "" {
		return errHostRequired
	}

	if t.Path == "" {
		return errTargetPathRequired
	}

	if !strings.HasPrefix(t.Path, "/") || strings.Trim(t.Path, "/") == "" {
		return fmt.Errorf("%w: %q", errTargetPathNotAbs, t.Path)
	}

	switch t.Transport {
	case TransportGcloud:
		if t.Zone == "" {
			return errZoneRequired
		}
	case TransportSSH:
		if t.SSHKeyFile == "" {
			return errSSHKeyRequired
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownTransport, t.Transport)
	}

	return nil
}
