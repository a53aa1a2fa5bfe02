package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/vrischmann/envconfig"
)

// environment lists the variables that override file settings.
type environment struct {
	LogLevel        string `envconfig:"AC_DEPLOY_LOG_LEVEL"`
	ContentDir      string `envconfig:"ASSETTO_CORSA_DIR"`
	StagingDir      string `envconfig:"AC_DEPLOY_STAGING_DIR"`
	Bucket          string `envconfig:"GCP_BUCKET_NAME"`
	AccessKey       string `envconfig:"AC_DEPLOY_STORAGE_ACCESS_KEY"`
	SecretKey       string `envconfig:"AC_DEPLOY_STORAGE_SECRET_KEY"`
	Endpoint        string `envconfig:"AC_DEPLOY_STORAGE_ENDPOINT"`
	PublicBaseURL   string `envconfig:"AC_DEPLOY_PUBLIC_BASE_URL"`
	Host            string `envconfig:"GCP_VM_INSTANCE_NAME"`
	Zone            string `envconfig:"GCP_VM_ZONE"`
	Project         string `envconfig:"GCP_PROJECT"`
	DestinationPath string `envconfig:"GCP_VM_DESTINATION_PATH"`
	Principal       string `envconfig:"AC_DEPLOY_PRINCIPAL"`
	Transport       string `envconfig:"AC_DEPLOY_TRANSPORT"`
	ServiceName     string `envconfig:"AC_DEPLOY_SERVICE"`
}

// loadDotEnv populates the process environment from a dotenv file.
// Variables already set win; a missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("load %s: %w", path, err)
}

// applyEnvironment overlays non-empty environment variables on cfg.
func applyEnvironment(cfg *Config) error {
	var env environment

	//nolint:exhaustruct // Only AllOptional matters here.
	if err := envconfig.InitWithOptions(&env, envconfig.Options{AllOptional: true}); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	overlay := []struct {
		dst *string
		src string
	}{
		{&cfg.LogLevel, env.LogLevel},
		{&cfg.ContentDir, env.ContentDir},
		{&cfg.StagingDir, env.StagingDir},
		{&cfg.Storage.Bucket, env.Bucket},
		{&cfg.Storage.AccessKey, env.AccessKey},
		{&cfg.Storage.SecretKey, env.SecretKey},
		{&cfg.Storage.Endpoint, env.Endpoint},
		{&cfg.Storage.PublicBaseURL, env.PublicBaseURL},
		{&cfg.Target.Host, env.Host},
		{&cfg.Target.Zone, env.Zone},
		{&cfg.Target.Project, env.Project},
		{&cfg.Target.Path, env.DestinationPath},
		{&cfg.Target.Principal, env.Principal},
		{&cfg.Target.Transport, env.Transport},
		{&cfg.Service.Name, env.ServiceName},
	}

	for _, o := range overlay {
		if o.src != "" {
			*o.dst = o.src
		}
	}

	return nil
}
