package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/graphql-go/graphql"

	"storefront-graphql/internal/cursor"
	"storefront-graphql/internal/scalars"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// page is the offset window requested by first/after.
type page struct {
	limit  int
	offset int
}

func connectionArgs(extra graphql.FieldConfigArgument) graphql.FieldConfigArgument {
	args := graphql.FieldConfigArgument{
		"first": &graphql.ArgumentConfig{
			Type:        scalars.NonNegativeInt(),
			Description: fmt.Sprintf("Returns the first n elements from the list. Defaults to %d, at most %d.", defaultPageSize, maxPageSize),
		},
		"after": &graphql.ArgumentConfig{
			Type:        graphql.String,
			Description: "Returns the elements in the list that come after the specified cursor.",
		},
	}
	for name, arg := range extra {
		args[name] = arg
	}
	return args
}

func pageFromArgs(args map[string]interface{}, connectionName, typeName, sortKey string) (page, error) {
	limit := defaultPageSize
	if first, ok := args["first"].(int); ok {
		limit = first
	}
	if limit > maxPageSize {
		return page{}, fmt.Errorf("requesting %d records on the `%s` connection exceeds the `first` limit of %d records", limit, connectionName, maxPageSize)
	}
	after, _ := args["after"].(string)
	offset, err := cursor.After(after, typeName, sortKey)
	if err != nil {
		return page{}, err
	}
	return page{limit: limit, offset: offset}, nil
}

type edge struct {
	Node   interface{}
	Cursor string
}

// connectionResult is the source object of every *Connection type.
type connectionResult struct {
	edges       []edge
	hasNext     bool
	hasPrevious bool
	count       func(context.Context) (int, error)
	countCtx    context.Context
	// totalCount is lazily computed
	totalCountVal *int
	totalCountMu  sync.Mutex
}

// newConnectionResult builds a connection from up to limit+1 fetched nodes; the
// extra node only signals that another page exists.
func newConnectionResult(ctx context.Context, nodes []interface{}, p page, typeName, sortKey string, count func(context.Context) (int, error)) *connectionResult {
	hasNext := p.limit >= 0 && len(nodes) > p.limit
	if hasNext {
		nodes = nodes[:p.limit]
	}
	edges := make([]edge, len(nodes))
	for i, node := range nodes {
		edges[i] = edge{Node: node, Cursor: cursor.Encode(typeName, sortKey, p.offset+i)}
	}
	return &connectionResult{
		edges:       edges,
		hasNext:     hasNext,
		hasPrevious: p.offset > 0,
		count:       count,
		// totalCount is resolved after the rows, possibly once the request
		// context is already done.
		countCtx: context.WithoutCancel(ctx),
	}
}

func (cr *connectionResult) totalCount() (int, error) {
	cr.totalCountMu.Lock()
	defer cr.totalCountMu.Unlock()

	if cr.totalCountVal != nil {
		return *cr.totalCountVal, nil
	}
	count := 0
	if cr.count != nil {
		var err error
		count, err = cr.count(cr.countCtx)
		if err != nil {
			return 0, err
		}
	}
	cr.totalCountVal = &count
	return count, nil
}

func (cr *connectionResult) pageInfo() map[string]interface{} {
	var startCursor, endCursor interface{}
	if len(cr.edges) > 0 {
		startCursor = cr.edges[0].Cursor
		endCursor = cr.edges[len(cr.edges)-1].Cursor
	}
	return map[string]interface{}{
		"hasNextPage":     cr.hasNext,
		"hasPreviousPage": cr.hasPrevious,
		"startCursor":     startCursor,
		"endCursor":       endCursor,
	}
}

func newPageInfoType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name:        "PageInfo",
		Description: "Pagination information of a connection.",
		Fields: graphql.Fields{
			"hasNextPage":     &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"hasPreviousPage": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"startCursor":     &graphql.Field{Type: graphql.String},
			"endCursor":       &graphql.Field{Type: graphql.String},
		},
	})
}

func newConnectionType(node *graphql.Object, pageInfo *graphql.Object) *graphql.Object {
	edgeType := graphql.NewObject(graphql.ObjectConfig{
		Name: node.Name() + "Edge",
		Fields: graphql.Fields{
			"node": &graphql.Field{
				Type: graphql.NewNonNull(node),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					e, _ := p.Source.(edge)
					return e.Node, nil
				},
			},
			"cursor": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					e, _ := p.Source.(edge)
					return e.Cursor, nil
				},
			},
		},
	})
	return graphql.NewObject(graphql.ObjectConfig{
		Name: node.Name() + "Connection",
		Fields: graphql.Fields{
			"edges": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(edgeType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					cr, ok := p.Source.(*connectionResult)
					if !ok {
						return []edge{}, nil
					}
					return cr.edges, nil
				},
			},
			"pageInfo": &graphql.Field{
				Type: graphql.NewNonNull(pageInfo),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					cr, ok := p.Source.(*connectionResult)
					if !ok {
						return nil, nil
					}
					return cr.pageInfo(), nil
				},
			},
			"totalCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					cr, ok := p.Source.(*connectionResult)
					if !ok {
						return 0, nil
					}
					return cr.totalCount()
				},
			},
		},
	})
}
