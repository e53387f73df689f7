// Package request holds the request bodies shared by the HTTP and MCP
// adapters, and validates them with go-playground/validator.
package request

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// EmbedDocument is the body of an embed-document call.
type EmbedDocument struct {
	DocumentID string `json:"documentId" validate:"required"`
	Content    string `json:"content,omitempty"`
	ChunkSize  int    `json:"chunkSize,omitempty" validate:"gte=0"`
	Overlap    int    `json:"overlap,omitempty" validate:"gte=0"`
}

// ToDomain converts the body to an embedding request.
func (r EmbedDocument) ToDomain() domain.EmbedRequest {
	return domain.EmbedRequest{
		DocumentID: r.DocumentID,
		Content:    r.Content,
		ChunkSize:  r.ChunkSize,
		Overlap:    r.Overlap,
	}
}

// EmbedBatch is the body of the batch embedding calls.
type EmbedBatch struct {
	ChunkSize int `json:"chunkSize,omitempty" validate:"gte=0"`
	Overlap   int `json:"overlap,omitempty" validate:"gte=0"`
}

// Query is the body of a rag-query call.
type Query struct {
	Query       string   `json:"query" validate:"required"`
	TopK        int      `json:"topK,omitempty" validate:"gte=0,lte=100"`
	DocumentIDs []string `json:"documentIds" validate:"required,min=1,dive,required"`
}

// ToDomain converts the body to a query request.
func (r Query) ToDomain() domain.QueryRequest {
	return domain.QueryRequest{
		Query:       r.Query,
		TopK:        r.TopK,
		DocumentIDs: r.DocumentIDs,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks a request body. Failures are *domain.ValidationError
// naming the first offending field by its JSON name.
func Validate(body any) error {
	err := instance().Struct(body)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError("", "%v", err)
	}
	fe := fieldErrs[0]
	return domain.NewValidationError(fieldName(fe), "%s", describe(fe))
}

// fieldName drops the struct prefix, keeping slice indexes.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
