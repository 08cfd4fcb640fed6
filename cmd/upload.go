package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/veridian-env/wastestream/internal/blobstore"
	"github.com/veridian-env/wastestream/internal/importer"
	"github.com/veridian-env/wastestream/internal/model"
)

var uploadFlags struct {
	tenant        string
	company       string
	entryLocation string
	createdBy     string
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a source file and enqueue an import run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := newPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		blobs, err := blobstore.NewFS(cfg.Blobstore.Root)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		filename := filepath.Base(args[0])
		run := &model.ImportRun{
			ID:             uuid.New().String(),
			TenantID:       uploadFlags.tenant,
			CompanyID:      uploadFlags.company,
			SourceFileName: filename,
			CreatedBy:      uploadFlags.createdBy,
		}
		run.SourceFileKey = fmt.Sprintf("%s/%s/%s", run.TenantID, run.ID, filename)
		if uploadFlags.entryLocation != "" {
			run.EntryLocationID = &uploadFlags.entryLocation
		}

		if err := blobs.Put(ctx, run.SourceFileKey, data); err != nil {
			return err
		}
		if err := importer.NewStore(pool).CreateRun(ctx, run); err != nil {
			return err
		}

		fmt.Printf("Created run %s (%d bytes queued for processing)\n", run.ID, len(data))
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadFlags.tenant, "tenant", "", "tenant id (required)")
	uploadCmd.Flags().StringVar(&uploadFlags.company, "company", "", "company id (required)")
	uploadCmd.Flags().StringVar(&uploadFlags.entryLocation, "entry-location", "", "default location for projects without an extracted parent")
	uploadCmd.Flags().StringVar(&uploadFlags.createdBy, "by", "", "user id creating the run")
	_ = uploadCmd.MarkFlagRequired("tenant")
	_ = uploadCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(uploadCmd)
}
