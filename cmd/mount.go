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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grpcfs/grpcfs/cfg"
	"github.com/grpcfs/grpcfs/internal/fs"
	"github.com/grpcfs/grpcfs/internal/logger"
	"github.com/grpcfs/grpcfs/internal/rpcfs"
	"github.com/jacobsa/daemonize"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/timeutil"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Set in the environment of the daemonized child so it knows to report
// the mount outcome back through daemonize's status channel.
const daemonEnvVar = "GRPCFS_DAEMON"

// The connectivity probe at startup must fail fast; a dead server should
// abort the mount, not hang it.
const dialTimeout = 10 * time.Second

func newMountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mount",
		Short: "Mount a grpcfs server's tree locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			return runMount(c)
		},
	}
}

func runMount(c *cfg.Config) error {
	if !c.Mount.Foreground && os.Getenv(daemonEnvVar) == "" {
		return daemonizeMount()
	}

	mfs, err := mountFileSystem(context.Background(), c)

	// Tell the parent (if any) how the mount went, so it can exit with
	// the right status.
	if os.Getenv(daemonEnvVar) != "" {
		if err2 := daemonize.SignalOutcome(err); err2 != nil {
			logger.Errorf("Failed to signal mount outcome: %v", err2)
		}
	}
	if err != nil {
		return err
	}

	registerSIGINTHandler(c.Mount.MountPoint)

	logger.Infof("File system has been successfully mounted.")
	if err := mfs.Join(context.Background()); err != nil {
		return fmt.Errorf("mounted file system: %w", err)
	}
	logger.Infof("Successfully exiting.")

	return nil
}

// daemonizeMount re-runs this binary in the background; the parent blocks
// until the child reports whether the mount succeeded.
func daemonizeMount() error {
	path, err := os.Executable()
	if err != nil {
		return fmt.Errorf("finding own executable: %w", err)
	}

	env := []string{
		daemonEnvVar + "=true",
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
	}

	if err := daemonize.Run(path, os.Args[1:], env, nil, os.Stdout); err != nil {
		return fmt.Errorf("daemonize.Run: %w", err)
	}

	return nil
}

func mountFileSystem(ctx context.Context, c *cfg.Config) (*fuse.MountedFileSystem, error) {
	conn, err := grpc.NewClient(
		c.Mount.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rpcfs.Codec{})))
	if err != nil {
		return nil, fmt.Errorf("creating channel to %q: %w", c.Mount.Address, err)
	}

	remote := rpcfs.NewRemoteFSClient(conn)

	// Establish the connection eagerly: stat the remote root. A server
	// that cannot answer this cannot serve a mount, and finding out now
	// beats finding out after the kernel has a dead mount point.
	probeCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if _, err := remote.GetAttr(probeCtx, &rpcfs.GetAttrRequest{Path: "/"}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to %q: %w", c.Mount.Address, err)
	}
	logger.Infof("Connected to server at %q.", c.Mount.Address)

	server, err := fs.NewServer(&fs.ServerConfig{
		Clock:  timeutil.RealClock(),
		Remote: remote,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("fs.NewServer: %w", err)
	}

	mountCfg := &fuse.MountConfig{
		FSName:      "GrpcFs",
		Subtype:     "grpcfs",
		ReadOnly:    true,
		ErrorLogger: logger.NewLegacyLogger(logger.ErrorSeverity, "fuse: "),
		// Entries and their attributes come back from the server in one
		// RPC, so let the kernel fetch them in one op too.
		EnableReaddirplus: true,
	}

	mfs, err := fuse.Mount(c.Mount.MountPoint, server, mountCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mount: %w", err)
	}

	return mfs, nil
}

func registerSIGINTHandler(mountPoint string) {
	// Watch for the termination signals, trying to unmount when
	// received. A failed unmount (the mount point may be busy) is tried
	// again when the next signal arrives.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for {
			<-signalChan
			logger.Infof("Received signal, attempting to unmount...")

			if err := fuse.Unmount(mountPoint); err != nil {
				logger.Errorf("Failed to unmount: %v", err)
			} else {
				logger.Infof("Successfully unmounted.")
				return
			}
		}
	}()
}
