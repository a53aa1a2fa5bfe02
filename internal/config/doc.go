// Package config defines the deployer settings and loads them from a YAML
// file, an optional .env file and the process environment, in that order of
// increasing precedence.
//
// The environment keeps the variable names of the original upload scripts
// (GCP_BUCKET_NAME, ASSETTO_CORSA_DIR, GCP_VM_*) so existing .env files keep
// working.
package config
