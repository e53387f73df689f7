package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

func TestExtractor_Metadata(t *testing.T) {
	e := New()
	assert.Equal(t, 5, e.Priority())
	assert.Contains(t, e.SupportedMIMETypes(), "text/plain")
}

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"plain", []byte("hello world"), "hello world"},
		{"crlf", []byte("a\r\nb\r\n"), "a\nb\n"},
		{"bom", append([]byte{0xEF, 0xBB, 0xBF}, []byte("x")...), "x"},
		{"unicode", []byte("héllo wörld"), "héllo wörld"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Extract(context.Background(), &domain.Upload{Name: "a.txt", Data: tt.data})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Text)
			assert.Equal(t, "text/plain", got.MediaType)
		})
	}
}

// TestExtractor_RejectsBinary tests that invalid UTF-8 and NUL bytes are refused
func TestExtractor_RejectsBinary(t *testing.T) {
	_, err := New().Extract(context.Background(), &domain.Upload{Data: []byte{0xff, 0xfe, 0xfd}})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = New().Extract(context.Background(), &domain.Upload{Data: []byte("ab\x00cd")})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = New().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
