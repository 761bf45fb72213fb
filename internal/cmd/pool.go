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
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"maas.io/maas-jobs/internal/pool"
	"maas.io/maas-jobs/pkg/server"
	"maas.io/maas-jobs/pkg/types/job"
)

func poolCommand(opts *globalOptions, version string) *cobra.Command {

	c := &cobra.Command{
		Use:   "pool",
		Short: "Inspect and seed MAAS pools",
	}

	var collectors []string
	put := &cobra.Command{
		Use:   "put NAME",
		Short: "Create or replace a pool and its collector clusters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServer(cmd, opts, version, false, func(ctx context.Context, srv *server.Server) error {
				p := &job.Pool{Name: args[0], CollectorClusters: collectors}
				if err := srv.Backend().PutPool(ctx, p); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Pool %s saved\n", p.Name)
				return err
			})
		},
	}
	put.Flags().StringSliceVar(&collectors, "collector", nil, "collector cluster in the pool, repeatable")

	get := &cobra.Command{
		Use:   "get NAME",
		Short: "Show a pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServer(cmd, opts, version, false, func(ctx context.Context, srv *server.Server) error {
				p, err := pool.NewOracle(srv.Backend()).GetPool(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}

	c.AddCommand(put, get)
	return c
}

func printJSON(w io.Writer, v any) error {

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
