// Copyright 2024 The grpcfs Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cfg holds the configuration surface shared by the server and
// mount subcommands. Flags are bound through viper so a YAML config file
// and command-line flags compose, flags winning.
package cfg

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// The compiled-in defaults of the reference implementation.
	DefaultAddress    = "[::1]:50051"
	DefaultMountPoint = "/tmp/mnt"
	DefaultExportRoot = "/"
)

type LoggingConfig struct {
	Severity string `mapstructure:"severity"`
	Format   string `mapstructure:"format"`
	FilePath string `mapstructure:"file-path"`
}

type ServerConfig struct {
	// host:port the RPC listener binds to.
	Address string `mapstructure:"address"`

	// The directory served as the remote root.
	ExportRoot string `mapstructure:"export-root"`
}

type MountConfig struct {
	// host:port of the server to dial.
	Address string `mapstructure:"address"`

	// Where the remote tree appears locally.
	MountPoint string `mapstructure:"mount-point"`

	// Stay in the foreground instead of daemonizing.
	Foreground bool `mapstructure:"foreground"`
}

type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Mount   MountConfig   `mapstructure:"mount"`
}

// flagKeys maps each flag to its config-file key.
var flagKeys = map[string]string{
	"log-severity": "logging.severity",
	"log-format":   "logging.format",
	"log-file":     "logging.file-path",
	"address":      "server.address",
	"export-root":  "server.export-root",
	"mount-point":  "mount.mount-point",
	"foreground":   "mount.foreground",
}

// BindFlags declares every flag on the supplied set and binds it into
// viper. The server and mount commands share the address flag; they read
// different config keys, so the mount key is aliased below.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.String("log-severity", "INFO", "Lowest severity that is logged: TRACE, DEBUG, INFO, WARNING, ERROR or OFF.")
	flagSet.String("log-format", "text", "Log output format: text or json.")
	flagSet.String("log-file", "", "Write logs to this file (size-rotated) instead of stderr.")
	flagSet.String("address", DefaultAddress, "host:port of the RPC endpoint.")
	flagSet.String("export-root", DefaultExportRoot, "Directory the server exports.")
	flagSet.String("mount-point", DefaultMountPoint, "Directory the remote tree is mounted on.")
	flagSet.Bool("foreground", false, "Stay in the foreground after mounting.")

	for flag, key := range flagKeys {
		if err := viper.BindPFlag(key, flagSet.Lookup(flag)); err != nil {
			return err
		}
	}

	// One --address flag feeds both roles.
	return viper.BindPFlag("mount.address", flagSet.Lookup("address"))
}

func validSeverity(s string) bool {
	switch s {
	case "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF":
		return true
	}
	return false
}

func (c *Config) Validate() error {
	if !validSeverity(c.Logging.Severity) {
		return fmt.Errorf("unknown log severity %q", c.Logging.Severity)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	if c.Server.Address == "" || c.Mount.Address == "" {
		return fmt.Errorf("address must not be empty")
	}
	if c.Mount.MountPoint == "" {
		return fmt.Errorf("mount point must not be empty")
	}
	if c.Server.ExportRoot == "" {
		return fmt.Errorf("export root must not be empty")
	}
	return nil
}
