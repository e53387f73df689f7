package cli

import (
	"errors"
	"fmt"
)

var (
	errDocumentsNotConfigured = errors.New("document service not configured")
	errEmbeddingNotConfigured = errors.New("embedding pipeline not configured")
	errQueryNotConfigured     = errors.New("query service not configured")
	errSettingsNotConfigured  = errors.New("settings service not configured")
)

// notConfigured adds the startup failure, if known, to err.
func notConfigured(err error) error {
	if unavailable == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, unavailable)
}

func requireDocuments() error {
	if documentService == nil {
		return notConfigured(errDocumentsNotConfigured)
	}
	return nil
}

func requireEmbedding() error {
	if embeddingPipeline == nil {
		return notConfigured(errEmbeddingNotConfigured)
	}
	return nil
}
