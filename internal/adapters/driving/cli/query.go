package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

var (
	queryTopK int
	queryDocs []string
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question about your documents",
	Long: `Embeds the question, ranks the stored chunks by cosine similarity and asks
the chat model to answer from the best matches. Without --doc every completed
document is searched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to use as context (default from settings)")
	queryCmd.Flags().StringSliceVarP(&queryDocs, "doc", "d", nil, "restrict the search to these document ids")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return notConfigured(errQueryNotConfigured)
	}

	ids := queryDocs
	if len(ids) == 0 {
		if err := requireDocuments(); err != nil {
			return err
		}
		docs, err := documentService.List(cmd.Context(), domain.EmbeddingCompleted)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		for i := range docs {
			ids = append(ids, docs[i].ID)
		}
		if len(ids) == 0 {
			return errors.New("no embedded documents; run 'ragline upload --embed' or 'ragline embed pending' first")
		}
	}

	result, err := queryService.Answer(cmd.Context(), domain.QueryRequest{
		Query:       strings.Join(args, " "),
		TopK:        queryTopK,
		DocumentIDs: ids,
	})

	if queryJSON {
		data, merr := json.MarshalIndent(result, "", "  ")
		if merr != nil {
			return fmt.Errorf("failed to marshal result: %w", merr)
		}
		cmd.Println(string(data))
	} else {
		printAnswer(cmd, result)
	}

	if err != nil && !errors.Is(err, domain.ErrNoCandidates) {
		return errors.New(domain.UserMessage(err))
	}
	return nil
}

func printAnswer(cmd *cobra.Command, result *domain.QueryResult) {
	cmd.Println(result.Answer)
	if len(result.Sources) == 0 {
		return
	}

	cmd.Println()
	cmd.Println("Sources:")
	for i, src := range result.Sources {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, src.DocumentName, src.SimilarityScore)
		cmd.Printf("      %s\n", strings.ReplaceAll(src.Excerpt, "\n", " "))
	}
}
