package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arclight-oj/judge/internal/contentstore"
	"github.com/arclight-oj/judge/internal/presets"
	"github.com/arclight-oj/judge/internal/problemspec"
	"github.com/arclight-oj/judge/internal/registerer"
)

func problemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "problem",
		Short: "Manage problem registrations",
	}
	cmd.AddCommand(problemRegisterCmd())
	return cmd
}

func problemRegisterCmd() *cobra.Command {
	var (
		pgDSN      string
		s3Bucket   string
		s3Prefix   string
		outputPath string
		timeMs     int64
	)

	cmd := &cobra.Command{
		Use:   "register <problem-spec.yaml>",
		Short: "Build a normal-judge procedure from a YAML spec and register it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			spec, err := problemspec.ParseFile(args[0])
			if err != nil {
				return err
			}
			if timeMs <= 0 {
				timeMs = spec.TimeLimitMs
			}

			scripts, testcases, err := spec.Build()
			if err != nil {
				return err
			}

			procedure, err := presets.BuildNormalJudge(testcases, scripts, timeMs)
			if err != nil {
				return fmt.Errorf("build normal judge procedure: %w", err)
			}

			var blobs contentstore.BlobStore
			if s3Bucket != "" {
				s3Store, err := contentstore.NewS3BlobStore(ctx, contentstore.S3BlobStoreConfig{Bucket: s3Bucket, Prefix: s3Prefix})
				if err != nil {
					return fmt.Errorf("create s3 blob store: %w", err)
				}
				blobs = s3Store
			} else {
				fmt.Fprintln(os.Stderr, "warning: no --s3-bucket given, registering against an in-memory blob store that will not outlive this process")
				blobs = contentstore.NewInMemoryBlobStore()
			}

			var names registerer.NameTable
			var refs *contentstore.PostgresResourceRefTable
			if pgDSN != "" {
				pgNames, err := contentstore.NewPostgresNameTable(ctx, pgDSN)
				if err != nil {
					return fmt.Errorf("create postgres name table: %w", err)
				}
				names = pgNames
				refs, err = contentstore.NewPostgresResourceRefTable(ctx, pgDSN)
				if err != nil {
					return fmt.Errorf("create postgres resource ref table: %w", err)
				}
			} else {
				fmt.Fprintln(os.Stderr, "warning: no --pg-dsn given, registering against an in-memory name table that will not outlive this process")
				names = contentstore.NewInMemoryNameTable()
			}

			reg := registerer.New(blobs, names)
			if refs != nil {
				reg = reg.WithResourceRefs(refs)
			}

			registered, err := reg.Register(ctx, spec.ProblemID, procedure)
			if err != nil {
				return fmt.Errorf("register procedure: %w", err)
			}

			out, err := json.MarshalIndent(registered, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal registered procedure: %w", err)
			}

			if outputPath == "" {
				fmt.Println(string(out))
				return nil
			}
			return os.WriteFile(outputPath, out, 0o644)
		},
	}

	cmd.Flags().StringVar(&pgDSN, "pg-dsn", "", "Postgres DSN for the name/resource-ref tables")
	cmd.Flags().StringVar(&s3Bucket, "s3-bucket", "", "S3 bucket for the content blob store")
	cmd.Flags().StringVar(&s3Prefix, "s3-prefix", "", "S3 key prefix for the content blob store")
	cmd.Flags().StringVar(&outputPath, "out", "", "Write the registered procedure JSON here instead of stdout")
	cmd.Flags().Int64Var(&timeMs, "time-reserved-ms", 0, "Time budget applied to every execution node (defaults to the spec's timeLimitMs)")

	return cmd
}
