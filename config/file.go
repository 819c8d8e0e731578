package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ncerr "rconsole/internal/errors"
)

// File is the on-disk YAML layout.  Every field is optional; only the
// keys present override the current configuration.
//
//	address: 0.0.0.0
//	port: 3535
//	max_connections: 8
//	close_grace: 3s
//	attach:
//	  host: build-42.internal
//	  linemode: on
//	  tunnel: ops@bastion:2222
//	log:
//	  verbose: 2
//	  format: json
type File struct {
	Address         *string        `yaml:"address"`
	Port            *int           `yaml:"port"`
	MaxConnections  *int           `yaml:"max_connections"`
	ChannelCapacity *int           `yaml:"channel_capacity"`
	SweepInterval   *time.Duration `yaml:"sweep_interval"`
	CloseGrace      *time.Duration `yaml:"close_grace"`
	WriteTimeout    *time.Duration `yaml:"write_timeout"`
	Banner          *string        `yaml:"banner"`
	DemoLogInterval *time.Duration `yaml:"demo_log_interval"`

	Attach struct {
		Host          *string        `yaml:"host"`
		LineMode      *string        `yaml:"linemode"`
		Retries       *int           `yaml:"retries"`
		Timeout       *time.Duration `yaml:"timeout"`
		Tunnel        *string        `yaml:"tunnel"`
		SSHKey        *string        `yaml:"ssh_key"`
		SSHAgent      *bool          `yaml:"ssh_agent"`
		SSHPassword   *bool          `yaml:"ssh_password"`
		StrictHostKey *bool          `yaml:"strict_hostkey"`
		KnownHosts    *string        `yaml:"known_hosts"`
	} `yaml:"attach"`

	Log struct {
		Verbose *int    `yaml:"verbose"`
		Format  *string `yaml:"format"`
	} `yaml:"log"`
}

// LoadFile reads a YAML config file and overlays it onto cfg.  Unknown
// keys are rejected so typos do not silently fall back to defaults.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ncerr.ConfigError{Field: "config", Value: path, Message: err.Error()}
	}
	return LoadYAML(data, cfg, path)
}

// LoadYAML decodes data and overlays it onto cfg.  name is used in
// error messages only.
func LoadYAML(data []byte, cfg *Config, name string) error {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return &ncerr.ConfigError{
			Field:   "config",
			Value:   name,
			Message: err.Error(),
			Hint:    "durations use Go syntax, e.g. 250ms or 2s",
		}
	}
	f.apply(cfg)
	return nil
}

func (f *File) apply(cfg *Config) {
	setString(&cfg.Address, f.Address)
	setInt(&cfg.Port, f.Port)
	setInt(&cfg.MaxConnections, f.MaxConnections)
	setInt(&cfg.ChannelCapacity, f.ChannelCapacity)
	setDuration(&cfg.SweepInterval, f.SweepInterval)
	setDuration(&cfg.CloseGrace, f.CloseGrace)
	setDuration(&cfg.WriteTimeout, f.WriteTimeout)
	setString(&cfg.Banner, f.Banner)
	setDuration(&cfg.DemoLogInterval, f.DemoLogInterval)

	a := &f.Attach
	setString(&cfg.Host, a.Host)
	setString(&cfg.LineMode, a.LineMode)
	setInt(&cfg.Retries, a.Retries)
	setDuration(&cfg.Timeout, a.Timeout)
	setString(&cfg.TunnelSpec, a.Tunnel)
	setString(&cfg.SSHKeyPath, a.SSHKey)
	setBool(&cfg.UseSSHAgent, a.SSHAgent)
	setBool(&cfg.SSHPassword, a.SSHPassword)
	setBool(&cfg.StrictHostKey, a.StrictHostKey)
	setString(&cfg.KnownHostsPath, a.KnownHosts)

	setInt(&cfg.Verbose, f.Log.Verbose)
	setString(&cfg.LogFormat, f.Log.Format)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
