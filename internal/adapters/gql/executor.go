package gql

import (
	"context"

	"github.com/graphql-go/graphql"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// Logger defines the logging interface for the GraphQL adapter.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
}

// Request is a GraphQL request as sent over HTTP.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// Executor runs GraphQL requests against one graph.
type Executor struct {
	schema graphql.Schema
	logger Logger
}

// NewExecutor builds the schema for graph.
func NewExecutor(graph domain.Graph, log Logger) (*Executor, error) {
	schema, err := NewSchema(graph)
	if err != nil {
		return nil, err
	}
	return &Executor{schema: schema, logger: log}, nil
}

// Execute runs req. Field failures are reported in Result.Errors next to the
// data of the fields that succeeded.
func (e *Executor) Execute(ctx context.Context, req Request) *graphql.Result {
	result := graphql.Do(graphql.Params{
		Schema:         e.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})

	if len(result.Errors) > 0 {
		messages := make([]string, 0, len(result.Errors))
		for _, err := range result.Errors {
			messages = append(messages, err.Message)
		}
		e.logger.Debug(ctx, "graphql request completed with errors", map[string]interface{}{
			"operation": req.OperationName,
			"errors":    messages,
		})
	}
	return result
}
