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

package cmd

import (
	"fmt"
	"os"

	"github.com/grpcfs/grpcfs/cfg"
	"github.com/grpcfs/grpcfs/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// NewRootCmd assembles the command tree. Both subcommands share the
// persistent flag set declared here.
func NewRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "grpcfs",
		Short: "Mount a remote host's filesystem locally over gRPC",
		Long: `grpcfs is a pair of daemons that expose a remote host's directory
tree as a locally mounted, read-only filesystem. "grpcfs server" serves a
local directory over gRPC; "grpcfs mount" mounts it through FUSE.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to the config-file")
	if err := cfg.BindFlags(rootCmd.PersistentFlags()); err != nil {
		return nil, err
	}

	rootCmd.AddCommand(newServerCmd())
	rootCmd.AddCommand(newMountCmd())

	return rootCmd, nil
}

// loadConfig materializes the effective configuration (file, then flags)
// and points the process logger at it.
func loadConfig() (*cfg.Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var c cfg.Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Setup(c.Logging.Format, c.Logging.Severity, c.Logging.FilePath); err != nil {
		return nil, err
	}

	return &c, nil
}

func Execute() {
	rootCmd, err := NewRootCmd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error occurred while creating the root command: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
