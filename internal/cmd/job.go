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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"maas.io/maas-jobs/internal/auth"
	"maas.io/maas-jobs/internal/service"
	"maas.io/maas-jobs/pkg/server"
	joberr "maas.io/maas-jobs/pkg/types/err"
	"maas.io/maas-jobs/pkg/types/job"
)

type jobOptions struct {
	*globalOptions

	apiKey  string
	pools   []string
	isAdmin bool

	jobName   string
	maasPool  string
	collector string
	file      string
}

func (o *jobOptions) identity() (job.Identity, error) {

	id := job.Identity{JobName: o.jobName, MaasPool: o.maasPool, CollectorCluster: o.collector}
	if id.JobName == "" || id.MaasPool == "" || id.CollectorCluster == "" {
		return id, joberr.BadRequest("--job, --pool and --collector are required")
	}
	return id, nil
}

// authContext resolves the caller. An API key wins over the operator flags.
func (o *jobOptions) authContext(ctx context.Context, srv *server.Server) (auth.Context, error) {

	if o.apiKey != "" {
		return srv.Resolver().Resolve(ctx, o.apiKey)
	}
	return auth.Context{Pools: o.pools, IsAdmin: o.isAdmin}, nil
}

func jobCommand(global *globalOptions, version string) *cobra.Command {

	opts := &jobOptions{globalOptions: global}

	c := &cobra.Command{
		Use:   "job",
		Short: "Manage monitoring jobs",
	}
	flags := c.PersistentFlags()
	flags.StringVar(&opts.apiKey, "api-key", "", "API key of the caller")
	flags.StringSliceVar(&opts.pools, "pools", nil, "pools the caller may act on")
	flags.BoolVar(&opts.isAdmin, "admin", false, "act as an administrator")
	flags.StringVar(&opts.jobName, "job", "", "job name")
	flags.StringVar(&opts.maasPool, "pool", "", "MAAS pool")
	flags.StringVar(&opts.collector, "collector", "", "collector cluster")

	get := &cobra.Command{
		Use:   "get",
		Short: "Show a job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, version, false, func(ctx context.Context, jobs *service.JobService, id job.Identity, ac auth.Context) (string, error) {
				j, err := jobs.Get(ctx, id, ac)
				if err != nil {
					return "", err
				}
				return "", printJSON(cmd.OutOrStdout(), j.Document())
			})
		},
	}

	create := &cobra.Command{
		Use:   "create -f FILE",
		Short: "Create a job from a YAML or JSON file",
		Long:  "Create a job from a YAML or JSON file. job_type is one of " + job.TypeNames() + ".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var doc job.Document
			if err := decodeFile(opts.file, &doc); err != nil {
				return err
			}
			j, err := job.FromDocument(doc)
			if err != nil {
				return err
			}
			opts.jobName, opts.maasPool, opts.collector = j.JobName, j.MaasPool, j.CollectorCluster
			return opts.run(cmd, version, true, func(ctx context.Context, jobs *service.JobService, _ job.Identity, ac auth.Context) (string, error) {
				res, err := jobs.Create(ctx, j, ac)
				return res.Detail, err
			})
		},
	}
	create.Flags().StringVarP(&opts.file, "file", "f", "", "job file")
	_ = create.MarkFlagRequired("file")

	update := &cobra.Command{
		Use:   "update -f FILE",
		Short: "Apply a partial update from a YAML or JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var u job.Update
			if err := decodeFile(opts.file, &u); err != nil {
				return err
			}
			return opts.run(cmd, version, true, func(ctx context.Context, jobs *service.JobService, id job.Identity, ac auth.Context) (string, error) {
				res, err := jobs.Update(ctx, id, &u, ac)
				return res.Detail, err
			})
		},
	}
	update.Flags().StringVarP(&opts.file, "file", "f", "", "update file")
	_ = update.MarkFlagRequired("file")

	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, version, true, func(ctx context.Context, jobs *service.JobService, id job.Identity, ac auth.Context) (string, error) {
				res, err := jobs.Delete(ctx, id, ac)
				return res.Detail, err
			})
		},
	}

	c.AddCommand(get, create, update, del, targetCommand(opts, version), labelCommand(opts, version))
	return c
}

func targetCommand(opts *jobOptions, version string) *cobra.Command {

	c := &cobra.Command{
		Use:   "target",
		Short: "Add or remove scrape targets",
	}

	add := &cobra.Command{
		Use:   "add TARGET",
		Short: "Add a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, version, true, func(ctx context.Context, jobs *service.JobService, id job.Identity, ac auth.Context) (string, error) {
				res, err := jobs.AddTarget(ctx, id, args[0], ac)
				return res.Detail, err
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete TARGET",
		Short: "Remove a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, version, true, func(ctx context.Context, jobs *service.JobService, id job.Identity, ac auth.Context) (string, error) {
				res, err := jobs.DeleteTarget(ctx, id, args[0], ac)
				return res.Detail, err
			})
		},
	}

	c.AddCommand(add, del)
	return c
}

func labelCommand(opts *jobOptions, version string) *cobra.Command {

	c := &cobra.Command{
		Use:   "label",
		Short: "Manage job labels",
	}

	add := &cobra.Command{
		Use:   "add KEY=VALUE...",
		Short: "Add or overwrite labels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			labels, err := parseLabels(args)
			if err != nil {
				return err
			}
			return opts.run(cmd, version, true, func(ctx context.Context, jobs *service.JobService, id job.Identity, ac auth.Context) (string, error) {
				res, err := jobs.AddLabels(ctx, id, labels, ac)
				return res.Detail, err
			})
		},
	}

	update := &cobra.Command{
		Use:   "update KEY VALUE",
		Short: "Change the value of an existing label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, version, true, func(ctx context.Context, jobs *service.JobService, id job.Identity, ac auth.Context) (string, error) {
				res, err := jobs.UpdateLabel(ctx, id, args[0], args[1], ac)
				return res.Detail, err
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, version, true, func(ctx context.Context, jobs *service.JobService, id job.Identity, ac auth.Context) (string, error) {
				res, err := jobs.DeleteLabel(ctx, id, args[0], ac)
				return res.Detail, err
			})
		},
	}

	c.AddCommand(add, update, del)
	return c
}

type jobFunc func(ctx context.Context, jobs *service.JobService, id job.Identity, ac auth.Context) (string, error)

// run resolves identity and caller, then calls fn and prints its detail.
func (o *jobOptions) run(cmd *cobra.Command, version string, connect bool, fn jobFunc) error {

	id, err := o.identity()
	if err != nil {
		return err
	}

	return withServer(cmd, o.globalOptions, version, connect, func(ctx context.Context, srv *server.Server) error {
		ac, err := o.authContext(ctx, srv)
		if err != nil {
			return err
		}
		detail, err := fn(ctx, srv.Jobs(), id, ac)
		if err != nil {
			return err
		}
		if detail != "" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), detail)
		}
		return err
	})
}

// decodeFile reads a YAML document. JSON input works too.
func decodeFile(path string, v any) error {

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, v); err != nil {
		return joberr.BadRequest("decode %s: %v", path, err)
	}
	return nil
}

func parseLabels(args []string) (map[string]string, error) {

	labels := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, joberr.BadRequest("label %q is not KEY=VALUE", arg)
		}
		labels[key] = value
	}
	return labels, nil
}
