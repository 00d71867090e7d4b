package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supportlens/supportlens/internal/config"
	"github.com/supportlens/supportlens/internal/extract"
	"github.com/supportlens/supportlens/internal/openai"
	"github.com/supportlens/supportlens/internal/repository"
	"github.com/supportlens/supportlens/internal/service"
)

// RepairCmd returns the repair command, the operator entry point for fixing
// drift between document metadata and the vector index.
func RepairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Reconcile document metadata with the vector index",
		Long: "Compare every document's recorded chunk count against the vectors actually " +
			"indexed, delete orphaned vector sets, and mark drifted documents with status error",
		RunE: runRepair,
	}

	cmd.Flags().Bool("dry-run", false, "Report inconsistencies without fixing them")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")

	return cmd
}

func runRepair(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	documentRepo := repository.NewDocumentRepository(pool)
	vectorRepo := repository.NewVectorRepository(pool)

	// Reconciliation only touches the two stores; extraction and embedding
	// are never invoked, so stub clients are fine here.
	var embedder service.EmbeddingClient
	if cfg.HasOpenAI() {
		embedder = openai.NewClient(cfg.OpenAIAPIKey)
	}
	kbSvc := service.NewKnowledgeBaseService(extract.PlainText{}, embedder, vectorRepo, documentRepo, nil)

	report, err := kbSvc.Reconcile(ctx, !dryRun)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Printf("Checked %d documents against %d indexed vectors\n", report.CheckedDocuments, report.VectorCount)

	if len(report.Entries) == 0 {
		fmt.Println("No inconsistencies found")
		return nil
	}

	for _, e := range report.Entries {
		switch {
		case e.Orphaned && e.Repaired:
			fmt.Printf("  %s: %d orphaned vectors deleted\n", e.Prefix, e.Actual)
		case e.Orphaned:
			fmt.Printf("  %s: %d orphaned vectors (no matching document)\n", e.Prefix, e.Actual)
		case e.Repaired:
			fmt.Printf("  %s (%s): expected %d chunks, found %d, marked with status error\n", e.DocumentID, e.Filename, e.Expected, e.Actual)
		default:
			fmt.Printf("  %s (%s): expected %d chunks, found %d\n", e.DocumentID, e.Filename, e.Expected, e.Actual)
		}
	}

	if dryRun {
		fmt.Printf("\n%d inconsistencies found (dry run, nothing changed)\n", len(report.Entries))
	} else {
		fmt.Printf("\n%d inconsistencies repaired\n", len(report.Entries))
	}

	return nil
}
