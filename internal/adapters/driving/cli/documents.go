package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

var (
	uploadEmbed     bool
	uploadChunkSize int
	uploadOverlap   int

	listStatuses []string
	listJSON     bool

	showContent bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload [path|url]...",
	Short: "Upload documents",
	Long: `Reads files, directories or URLs, extracts their text and stores them as
pending documents. Directories are walked recursively, skipping hidden files.
Plain text, Markdown, HTML, DOCX and EML are supported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage uploaded documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents and their embedding status",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsShow,
}

var documentsChunksCmd = &cobra.Command{
	Use:   "chunks [doc-id]",
	Short: "Print the stored chunks of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsChunks,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

var documentsResetCmd = &cobra.Command{
	Use:   "reset [doc-id]",
	Short: "Remove a document's chunks and mark it pending",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsReset,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadEmbed, "embed", false, "embed each document after upload")
	uploadCmd.Flags().IntVar(&uploadChunkSize, "chunk-size", 0, "chunk length in characters (default from settings)")
	uploadCmd.Flags().IntVar(&uploadOverlap, "overlap", 0, "characters shared by neighbouring chunks")
	rootCmd.AddCommand(uploadCmd)

	documentsListCmd.Flags().StringSliceVar(&listStatuses, "status", nil,
		"only list documents in these embedding statuses (pending, processing, completed, failed)")
	documentsListCmd.Flags().BoolVar(&listJSON, "json", false, "output documents as JSON")
	documentsShowCmd.Flags().BoolVar(&showContent, "content", false, "print the extracted text")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsShowCmd)
	documentsCmd.AddCommand(documentsChunksCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	documentsCmd.AddCommand(documentsResetCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}
	if fetcher == nil {
		return errors.New("file loader not configured")
	}
	if uploadEmbed {
		if err := requireEmbedding(); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	var uploaded, failed int
	for _, location := range args {
		files, err := fetcher.List(ctx, location)
		if err != nil {
			cmd.PrintErrf("  %s: %v\n", location, err)
			failed++
			continue
		}

		for _, file := range files {
			upload, err := fetcher.Fetch(ctx, file)
			if err != nil {
				cmd.PrintErrf("  %s: %v\n", file, err)
				failed++
				continue
			}

			doc, err := documentService.Upload(ctx, upload)
			if err != nil {
				cmd.PrintErrf("  %s: %s\n", upload.Name, domain.UserMessage(err))
				failed++
				continue
			}
			uploaded++
			cmd.Printf("  %s  %s (%d characters)\n", doc.ID, doc.Name, len([]rune(doc.Content)))

			if uploadEmbed {
				embedOne(cmd, doc.ID, uploadChunkSize, uploadOverlap)
			}
		}
	}

	cmd.Printf("\nUploaded %d document(s)", uploaded)
	if failed > 0 {
		cmd.Printf(", %d failed", failed)
	}
	cmd.Println()
	if uploaded == 0 && failed > 0 {
		return errors.New("no documents uploaded")
	}
	return nil
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	statuses := make([]domain.EmbeddingStatus, len(listStatuses))
	for i, s := range listStatuses {
		statuses[i] = domain.EmbeddingStatus(s)
	}

	docs, err := documentService.List(cmd.Context(), statuses...)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	for i := range docs {
		docs[i].Content = ""
	}

	if listJSON {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Name:   %s\n", docs[i].Name)
		cmd.Printf("    Status: %s", docs[i].EmbeddingStatus)
		if docs[i].EmbeddingStatus == domain.EmbeddingCompleted {
			cmd.Printf(" (%d chunks)", docs[i].ChunkCount)
		}
		cmd.Println()
		if docs[i].LastError != "" {
			cmd.Printf("    Error:  %s\n", docs[i].LastError)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	doc, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Name:       %s\n", doc.Name)
	cmd.Printf("  Type:       %s\n", doc.MediaType)
	cmd.Printf("  Size:       %d bytes\n", doc.Size)
	cmd.Printf("  Characters: %d\n", len([]rune(doc.Content)))
	cmd.Printf("  Embedding:  %s\n", doc.EmbeddingStatus)
	cmd.Printf("  Chunks:     %d\n", doc.ChunkCount)
	if doc.LastError != "" {
		cmd.Printf("  Error:      %s\n", doc.LastError)
	}
	cmd.Printf("  Created:    %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:    %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))

	if showContent {
		cmd.Println()
		cmd.Println(doc.Content)
	}
	return nil
}

func runDocumentsChunks(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	chunks, err := documentService.Chunks(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}
	if len(chunks) == 0 {
		cmd.Println("No chunks stored. Run 'ragline embed " + args[0] + "' first.")
		return nil
	}

	for i := range chunks {
		cmd.Printf("--- chunk %d (%d characters, %d dimensions) ---\n",
			chunks[i].Index, len([]rune(chunks[i].Content)), len(chunks[i].Embedding))
		cmd.Println(chunks[i].Content)
	}
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	if err := documentService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted document %s\n", args[0])
	return nil
}

func runDocumentsReset(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	if err := documentService.Reset(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to reset document: %w", err)
	}
	cmd.Printf("Document %s is pending again\n", args[0])
	return nil
}
