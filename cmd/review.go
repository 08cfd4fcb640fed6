package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/veridian-env/wastestream/internal/importer"
	"github.com/veridian-env/wastestream/internal/model"
)

var reviewFlags struct {
	tenant          string
	item            string
	notes           string
	selectDuplicate string
	confirmNew      bool
	amendments      string
	amendmentsFile  string
}

func reviewPatch(cmd *cobra.Command) importer.ReviewPatch {
	patch := importer.ReviewPatch{Notes: reviewFlags.notes}
	if cmd.Flags().Changed("confirm-new") {
		patch.ConfirmCreateNew = &reviewFlags.confirmNew
	}
	if reviewFlags.selectDuplicate != "" {
		patch.SelectedDuplicateID = &reviewFlags.selectDuplicate
	}
	return patch
}

func reviewAmendments() (json.RawMessage, error) {
	switch {
	case reviewFlags.amendments != "" && reviewFlags.amendmentsFile != "":
		return nil, eris.New("review: --amendments and --amendments-file are mutually exclusive")
	case reviewFlags.amendments != "":
		return json.RawMessage(reviewFlags.amendments), nil
	case reviewFlags.amendmentsFile != "":
		data, err := os.ReadFile(reviewFlags.amendmentsFile)
		if err != nil {
			return nil, eris.Wrapf(err, "review: read %s", reviewFlags.amendmentsFile)
		}
		return json.RawMessage(data), nil
	default:
		return nil, eris.New("review: amend requires --amendments or --amendments-file")
	}
}

func runReview(cmd *cobra.Command, verb func(engine *importer.ReviewEngine) (*model.ImportItem, error)) error {
	pool, err := newPool(cmd.Context(), "db")
	if err != nil {
		return err
	}
	defer pool.Close()

	item, err := verb(importer.NewReviewEngine(pool))
	if err != nil {
		return err
	}
	fmt.Printf("Item %s is now %s\n", item.ID, item.Status)
	return nil
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Record reviewer decisions on import items",
}

var reviewAcceptCmd = &cobra.Command{
	Use:   "accept",
	Short: "Accept an item for materialization",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd, func(e *importer.ReviewEngine) (*model.ImportItem, error) {
			return e.Accept(cmd.Context(), reviewFlags.tenant, reviewFlags.item, reviewPatch(cmd))
		})
	},
}

var reviewAmendCmd = &cobra.Command{
	Use:   "amend",
	Short: "Accept an item with a corrected payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		amendments, err := reviewAmendments()
		if err != nil {
			return err
		}
		return runReview(cmd, func(e *importer.ReviewEngine) (*model.ImportItem, error) {
			return e.Amend(cmd.Context(), reviewFlags.tenant, reviewFlags.item, amendments, reviewPatch(cmd))
		})
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject",
	Short: "Reject an item; rejecting a location invalidates its dependent projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd, func(e *importer.ReviewEngine) (*model.ImportItem, error) {
			return e.Reject(cmd.Context(), reviewFlags.tenant, reviewFlags.item, reviewPatch(cmd))
		})
	},
}

var reviewResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Return an item to pending review, clearing the prior decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd, func(e *importer.ReviewEngine) (*model.ImportItem, error) {
			return e.Reset(cmd.Context(), reviewFlags.tenant, reviewFlags.item)
		})
	},
}

func init() {
	reviewCmd.PersistentFlags().StringVar(&reviewFlags.tenant, "tenant", "", "tenant id (required)")
	reviewCmd.PersistentFlags().StringVar(&reviewFlags.item, "item", "", "item id (required)")
	reviewCmd.PersistentFlags().StringVar(&reviewFlags.notes, "notes", "", "reviewer notes")
	reviewCmd.PersistentFlags().StringVar(&reviewFlags.selectDuplicate, "select-duplicate", "", "link the item to this existing entity instead of creating")
	reviewCmd.PersistentFlags().BoolVar(&reviewFlags.confirmNew, "confirm-new", false, "create a new entity despite duplicate candidates")
	_ = reviewCmd.MarkPersistentFlagRequired("tenant")
	_ = reviewCmd.MarkPersistentFlagRequired("item")

	reviewAmendCmd.Flags().StringVar(&reviewFlags.amendments, "amendments", "", "replacement payload as inline JSON")
	reviewAmendCmd.Flags().StringVar(&reviewFlags.amendmentsFile, "amendments-file", "", "replacement payload from a JSON file")

	reviewCmd.AddCommand(reviewAcceptCmd, reviewAmendCmd, reviewRejectCmd, reviewResetCmd)
	rootCmd.AddCommand(reviewCmd)
}
