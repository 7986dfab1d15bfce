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
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/grpcfs/grpcfs/cfg"
	"github.com/grpcfs/grpcfs/internal/exportfs"
	"github.com/grpcfs/grpcfs/internal/logger"
	"github.com/grpcfs/grpcfs/internal/rpcfs"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Serve a local directory to grpcfs mounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(c)
		},
	}
}

func runServer(c *cfg.Config) error {
	handler, err := exportfs.New(c.Server.ExportRoot)
	if err != nil {
		return fmt.Errorf("exportfs.New: %w", err)
	}

	lis, err := net.Listen("tcp", c.Server.Address)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", c.Server.Address, err)
	}

	grpcServer := grpc.NewServer(grpc.ForceServerCodec(rpcfs.Codec{}))
	rpcfs.RegisterRemoteFSServer(grpcServer, handler)

	// Stop serving cleanly when killed; in-flight RPCs drain first.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		logger.Infof("Received signal, shutting down...")
		grpcServer.GracefulStop()
	}()

	logger.Infof("Serving %q on %s", c.Server.ExportRoot, lis.Addr())
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}
