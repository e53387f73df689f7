package request

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

func TestValidate_EmbedDocument(t *testing.T) {
	require.NoError(t, Validate(EmbedDocument{DocumentID: "doc-1"}))
	require.NoError(t, Validate(EmbedDocument{DocumentID: "doc-1", ChunkSize: 256, Overlap: 20}))

	err := Validate(EmbedDocument{})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "documentId", ve.Field)
	assert.Equal(t, "is required", ve.Message)

	err = Validate(EmbedDocument{DocumentID: "doc-1", Overlap: -1})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "overlap", ve.Field)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidate_Query(t *testing.T) {
	require.NoError(t, Validate(Query{Query: "what?", DocumentIDs: []string{"a"}}))

	tests := []struct {
		name  string
		body  Query
		field string
	}{
		{"missing query", Query{DocumentIDs: []string{"a"}}, "query"},
		{"missing documents", Query{Query: "q"}, "documentIds"},
		{"empty documents", Query{Query: "q", DocumentIDs: []string{}}, "documentIds"},
		{"blank document id", Query{Query: "q", DocumentIDs: []string{"a", ""}}, "documentIds[1]"},
		{"negative topK", Query{Query: "q", TopK: -1, DocumentIDs: []string{"a"}}, "topK"},
		{"huge topK", Query{Query: "q", TopK: 1000, DocumentIDs: []string{"a"}}, "topK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *domain.ValidationError
			require.True(t, errors.As(Validate(tt.body), &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestToDomain(t *testing.T) {
	req := EmbedDocument{DocumentID: "d", Content: "c", ChunkSize: 300, Overlap: 10}.ToDomain()
	assert.Equal(t, domain.EmbedRequest{DocumentID: "d", Content: "c", ChunkSize: 300, Overlap: 10}, req)

	q := Query{Query: "q", TopK: 3, DocumentIDs: []string{"a"}}.ToDomain()
	assert.Equal(t, domain.QueryRequest{Query: "q", TopK: 3, DocumentIDs: []string{"a"}}, q)
}
