// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"maas.io/maas-jobs/pkg/config"
	"maas.io/maas-jobs/pkg/logger"
	"maas.io/maas-jobs/pkg/server"
	"maas.io/maas-jobs/pkg/types"
	joberr "maas.io/maas-jobs/pkg/types/err"
)

type globalOptions struct {
	cfgPath string
	lookup  func(string) (string, bool)
}

func RootCommand(version string) *cobra.Command {

	return newRootCommand(version, nil)
}

// newRootCommand builds the tree. lookup replaces the process environment
// when set.
func newRootCommand(version string, lookup func(string) (string, bool)) *cobra.Command {

	opts := &globalOptions{lookup: lookup}

	c := &cobra.Command{
		Use:           "maas-jobs",
		Short:         "MAAS job orchestration",
		Long:          "Manage MAAS monitoring jobs and announce every change on the event stream",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.PersistentFlags().StringVarP(&opts.cfgPath, "config", "c", "", "config file path")

	c.AddCommand(versionCommand(version))
	c.AddCommand(migrateCommand(opts, version))
	c.AddCommand(poolCommand(opts, version))
	c.AddCommand(jobCommand(opts, version))

	return c
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, c *cobra.Command) int {

	err := c.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(c.ErrOrStderr(), "Error: %s: %v\n", joberr.Kind(err), err)
	return ExitCode(err)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {

	switch {
	case err == nil:
		return 0
	case errors.Is(err, joberr.ErrCompensationFailed):
		return 7
	case errors.Is(err, joberr.ErrPublishFailure):
		return 6
	case errors.Is(err, joberr.ErrConflict):
		return 5
	case errors.Is(err, joberr.ErrNotFound):
		return 4
	case errors.Is(err, joberr.ErrUnauthorized):
		return 3
	case errors.Is(err, joberr.ErrBadRequest),
		errors.Is(err, joberr.ErrUnsupportedOperation),
		errors.Is(err, joberr.ErrCollectorNotInPool):
		return 2
	default:
		return 1
	}
}

func loadConfig(opts *globalOptions, logOut io.Writer) (*types.ServiceConfig, error) {

	loader := config.New(opts.cfgPath, logger.DefaultLogger(logOut, types.LogLevelError))
	if opts.lookup != nil {
		loader.WithLookup(opts.lookup)
	}
	return loader.Load()
}

// withServer runs fn against a started server. connect also brings up the
// event publisher, which only mutating commands need.
func withServer(c *cobra.Command, opts *globalOptions, version string, connect bool, fn func(context.Context, *server.Server) error) (err error) {

	cfg, err := loadConfig(opts, c.ErrOrStderr())
	if err != nil {
		return err
	}

	srv := server.New(cfg, version, c.ErrOrStderr())
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			srv.Logger.Error(closeErr, "shutdown failed")
		}
	}()

	ctx := c.Context()
	if connect {
		err = srv.Start(ctx)
	} else {
		err = srv.Open(ctx)
	}
	if err != nil {
		return err
	}

	return fn(ctx, srv)
}
