package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"storefront-graphql/internal/logging"
)

const anonymousOperationName = "<anonymous>"

type graphQLRequest struct {
	Query         string `json:"query"`
	OperationName string `json:"operationName"`
}

type queryMetadata struct {
	operationName  string
	operationType  string
	fieldCount     int
	selectionDepth int
	variableCount  int
}

type queryMetadataKey struct{}

func withQueryMetadata(ctx context.Context, metadata *queryMetadata) context.Context {
	return context.WithValue(ctx, queryMetadataKey{}, metadata)
}

func queryMetadataFromContext(ctx context.Context) (*queryMetadata, bool) {
	metadata, ok := ctx.Value(queryMetadataKey{}).(*queryMetadata)
	return metadata, ok
}

// GraphQLRequestAnalysisMiddleware parses the GraphQL document once, stores
// the selected operation's shape in the request context and adds operation
// fields to the request logger. Operations nested deeper than maxDepth are
// rejected with 400; maxDepth <= 0 disables the limit.
func GraphQLRequestAnalysisMiddleware(maxDepth int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query, operationName := extractGraphQLRequest(r)
			metadata, err := extractQueryMetadata(query, operationName)
			if err != nil || metadata == nil {
				// graphql-go reports syntax errors itself.
				next.ServeHTTP(w, r)
				return
			}

			ctx := withQueryMetadata(r.Context(), metadata)
			reqLogger := logging.FromContext(ctx).WithFields(
				slog.String("graphql.operation_name", metadata.operationName),
				slog.String("graphql.operation_type", metadata.operationType),
			)
			ctx = logging.WithLogger(ctx, reqLogger)

			if maxDepth > 0 && metadata.selectionDepth > maxDepth {
				reqLogger.Warn("graphql query rejected",
					slog.Int("depth", metadata.selectionDepth),
					slog.Int("max_depth", maxDepth),
				)
				writeGraphQLError(w, http.StatusBadRequest,
					fmt.Sprintf("query depth %d exceeds the maximum of %d", metadata.selectionDepth, maxDepth))
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeGraphQLError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]string{{"message": message}},
	})
}

// extractGraphQLRequest reads the query and operation name from a GET query
// string or a POST body, rewinding the body for the next handler.
func extractGraphQLRequest(r *http.Request) (string, string) {
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("query"), r.URL.Query().Get("operationName")
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return "", ""
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "application/graphql" {
		return string(body), ""
	}

	var payload graphQLRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ""
	}
	return payload.Query, payload.OperationName
}

func extractQueryMetadata(query, operationName string) (*queryMetadata, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(query),
			Name: "graphql",
		}),
	})
	if err != nil {
		return nil, err
	}

	fragments := make(map[string]*ast.FragmentDefinition)
	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch node := def.(type) {
		case *ast.FragmentDefinition:
			if node.Name != nil {
				fragments[node.Name.Value] = node
			}
		case *ast.OperationDefinition:
			operations = append(operations, node)
		}
	}

	op := selectOperation(operations, operationName)
	if op == nil {
		return nil, nil
	}

	metadata := &queryMetadata{
		operationName: anonymousOperationName,
		operationType: string(op.Operation),
		variableCount: len(op.VariableDefinitions),
	}
	if op.Name != nil && op.Name.Value != "" {
		metadata.operationName = op.Name.Value
	}
	metadata.fieldCount, metadata.selectionDepth = countFieldsAndDepth(op.SelectionSet, fragments, 1, map[string]bool{}, map[string]bool{})
	return metadata, nil
}

// selectOperation picks the named operation, or the only one when no name
// was sent.
func selectOperation(operations []*ast.OperationDefinition, operationName string) *ast.OperationDefinition {
	if operationName == "" {
		if len(operations) == 1 {
			return operations[0]
		}
		return nil
	}
	for _, op := range operations {
		if op.Name != nil && op.Name.Value == operationName {
			return op
		}
	}
	return nil
}

func countFieldsAndDepth(selectionSet *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, currentDepth int, visited, inFlight map[string]bool) (fields, maxDepth int) {
	if selectionSet == nil {
		return 0, currentDepth - 1
	}

	maxDepth = currentDepth
	for _, selection := range selectionSet.Selections {
		var nestedFields, nestedDepth int
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet == nil {
				continue
			}
			nestedFields, nestedDepth = countFieldsAndDepth(sel.SelectionSet, fragments, currentDepth+1, visited, inFlight)
		case *ast.InlineFragment:
			nestedFields, nestedDepth = countFieldsAndDepth(sel.SelectionSet, fragments, currentDepth, visited, inFlight)
		case *ast.FragmentSpread:
			name := ""
			if sel.Name != nil {
				name = sel.Name.Value
			}
			// Each fragment counts once; cycles stop at the first repeat.
			if name == "" || inFlight[name] || visited[name] {
				continue
			}
			fragment, ok := fragments[name]
			if !ok {
				continue
			}
			inFlight[name] = true
			visited[name] = true
			nestedFields, nestedDepth = countFieldsAndDepth(fragment.SelectionSet, fragments, currentDepth, visited, inFlight)
			delete(inFlight, name)
		}
		fields += nestedFields
		if nestedDepth > maxDepth {
			maxDepth = nestedDepth
		}
	}
	return fields, maxDepth
}
