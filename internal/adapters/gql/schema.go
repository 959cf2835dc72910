// Package gql exposes a domain.Graph as a GraphQL schema using graphql-go.
package gql

import (
	"context"
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// schemaBuilder holds the object types of one schema. Types reference each
// other through thunks, so they are built per schema.
type schemaBuilder struct {
	graph domain.Graph

	object    *graphql.Interface
	signature *graphql.Object
	slip      *graphql.Object
	treeEntry *graphql.Object
	tree      *graphql.Object
	commit    *graphql.Object
	reference *graphql.Object
	repo      *graphql.Object
}

// NewSchema builds the GraphQL schema whose Query.self field resolves to graph.
func NewSchema(graph domain.Graph) (graphql.Schema, error) {
	b := &schemaBuilder{graph: graph}
	b.build()

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"self": &graphql.Field{
				Type:        b.repo,
				Description: "The repository this server was started for",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return b.graph, nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: query,
		Types: []graphql.Type{b.commit, b.tree},
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to build schema: %w", err)
	}
	return schema, nil
}

func (b *schemaBuilder) build() {
	b.object = graphql.NewInterface(graphql.InterfaceConfig{
		Name:        "Object",
		Description: "A commit or tree stored in the repository",
		Fields: graphql.Fields{
			"oid": &graphql.Field{Type: graphql.String},
		},
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			switch p.Value.(type) {
			case *domain.Commit:
				return b.commit
			case *domain.Tree:
				return b.tree
			default:
				return nil
			}
		},
	})

	b.signature = graphql.NewObject(graphql.ObjectConfig{
		Name: "Signature",
		Fields: graphql.Fields{
			"name": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.Signature).Name, nil
				},
			},
			"email": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.Signature).Email, nil
				},
			},
		},
	})

	b.slip = graphql.NewObject(graphql.ObjectConfig{
		Name:        "Slip",
		Description: "The routing slip recorded for a commit",
		Fields: graphql.Fields{
			"correlationId": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Slip).CorrelationID, nil
				},
			},
			"matchedCommit": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Slip).MatchedCommit.String(), nil
				},
			},
			"repository": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Slip).Repository, nil
				},
			},
		},
	})

	b.treeEntry = graphql.NewObject(graphql.ObjectConfig{
		Name: "TreeEntry",
		Fields: graphql.Fields{
			"sha": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.TreeEntry).Oid.String(), nil
				},
			},
			"path": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.TreeEntry).Path, nil
				},
			},
			"mode": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.TreeEntry).Mode, nil
				},
			},
		},
	})

	b.tree = graphql.NewObject(graphql.ObjectConfig{
		Name:       "Tree",
		Interfaces: []*graphql.Interface{b.object},
		Fields: graphql.Fields{
			"oid": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Tree).Oid.String(), nil
				},
			},
			"entries": &graphql.Field{
				Type: graphql.NewList(b.treeEntry),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Tree).Entries, nil
				},
			},
		},
	})

	b.commit = graphql.NewObject(graphql.ObjectConfig{
		Name:       "Commit",
		Interfaces: []*graphql.Interface{b.object},
		Fields:     graphql.FieldsThunk(b.commitFields),
	})

	b.reference = graphql.NewObject(graphql.ObjectConfig{
		Name: "Reference",
		Fields: graphql.Fields{
			"name": &graphql.Field{
				Type:        graphql.String,
				Description: "Canonical name, e.g. refs/heads/main",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Reference).Name, nil
				},
			},
			"symbolicTarget": &graphql.Field{
				Type:        graphql.String,
				Description: "The reference this one points at, when symbolic",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ref := p.Source.(*domain.Reference)
					if ref.SymbolicTarget == "" {
						return nil, nil
					}
					return ref.SymbolicTarget, nil
				},
			},
			"target": &graphql.Field{
				Type: b.object,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return b.graph.Target(ctxOf(p), p.Source.(*domain.Reference))
				},
			},
			"commit": &graphql.Field{
				Type:        b.commit,
				Description: "The target narrowed to a commit; annotated tags are peeled",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return b.graph.TargetCommit(ctxOf(p), p.Source.(*domain.Reference))
				},
			},
		},
	})

	b.repo = graphql.NewObject(graphql.ObjectConfig{
		Name:   "Repository",
		Fields: b.repositoryFields(),
	})
}

func (b *schemaBuilder) commitFields() graphql.Fields {
	return graphql.Fields{
		"oid": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(*domain.Commit).Oid.String(), nil
			},
		},
		"message": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(*domain.Commit).Message, nil
			},
		},
		"summary": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(*domain.Commit).Summary(), nil
			},
		},
		"date": &graphql.Field{
			Type:        graphql.String,
			Description: "Commit time as ISO-8601 in UTC",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(*domain.Commit).Date(), nil
			},
		},
		"author": &graphql.Field{
			Type: b.signature,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(*domain.Commit).Author, nil
			},
		},
		"committer": &graphql.Field{
			Type: b.signature,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(*domain.Commit).Committer, nil
			},
		},
		"parents": &graphql.Field{
			Type: graphql.NewList(b.commit),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return b.graph.Parents(ctxOf(p), p.Source.(*domain.Commit))
			},
		},
		"tree": &graphql.Field{
			Type: b.tree,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return b.graph.Tree(ctxOf(p), p.Source.(*domain.Commit))
			},
		},
		"slip": &graphql.Field{
			Type:        b.slip,
			Description: "Routing slip of this commit or its nearest ancestor within ancestryDepth commits",
			Args: graphql.FieldConfigArgument{
				"ancestryDepth": &graphql.ArgumentConfig{
					Type:         graphql.Int,
					DefaultValue: domain.DefaultAncestryDepth,
				},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				depth, _ := p.Args["ancestryDepth"].(int)
				slip, err := b.graph.Slip(ctxOf(p), p.Source.(*domain.Commit), depth)
				if err != nil || slip == nil {
					return nil, err
				}
				return slip, nil
			},
		},
	}
}

func (b *schemaBuilder) repositoryFields() graphql.Fields {
	nameArg := func(name string) graphql.FieldConfigArgument {
		return graphql.FieldConfigArgument{
			name: &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		}
	}

	return graphql.Fields{
		"path": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return b.graph.Path(), nil
			},
		},
		"name": &graphql.Field{
			Type:        graphql.String,
			Description: "owner/repo derived from the origin remote",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return b.graph.Name(ctxOf(p))
			},
		},
		"reference": &graphql.Field{
			Type: b.reference,
			Args: nameArg("name"),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return nilIfErr(b.graph.Reference(ctxOf(p), p.Args["name"].(string)))
			},
		},
		"branch": &graphql.Field{
			Type: b.reference,
			Args: nameArg("name"),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return nilIfErr(b.graph.Branch(ctxOf(p), p.Args["name"].(string)))
			},
		},
		"commit": &graphql.Field{
			Type: b.commit,
			Args: nameArg("oid"),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return nilIfErr(b.graph.Commit(ctxOf(p), p.Args["oid"].(string)))
			},
		},
		"object": &graphql.Field{
			Type: b.object,
			Args: nameArg("oid"),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return b.graph.Object(ctxOf(p), p.Args["oid"].(string))
			},
		},
		"revParse": &graphql.Field{
			Type:        graphql.String,
			Description: "The oid named by a revision expression such as HEAD~2",
			Args:        nameArg("expression"),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				oid, err := b.graph.RevParse(ctxOf(p), p.Args["expression"].(string))
				if err != nil {
					return nil, err
				}
				return oid.String(), nil
			},
		},
		"log": &graphql.Field{
			Type:        graphql.NewList(b.commit),
			Description: "Commits reachable from reachableFrom but not from notReachableFrom, newest first",
			Args: graphql.FieldConfigArgument{
				"reachableFrom": &graphql.ArgumentConfig{
					Type:         graphql.NewList(graphql.String),
					DefaultValue: []interface{}{},
				},
				"notReachableFrom": &graphql.ArgumentConfig{
					Type:         graphql.NewList(graphql.String),
					DefaultValue: []interface{}{},
				},
				"firstParent": &graphql.ArgumentConfig{
					Type:         graphql.Boolean,
					DefaultValue: false,
				},
				"first": &graphql.ArgumentConfig{
					Type:        graphql.Int,
					Description: "Stop after this many commits",
				},
			},
			Resolve: b.resolveLog,
		},
	}
}

var errNegativeFirst = errors.New("first must not be negative")

func (b *schemaBuilder) resolveLog(p graphql.ResolveParams) (interface{}, error) {
	input := domain.LogInput{
		ReachableFrom:    stringList(p.Args["reachableFrom"]),
		NotReachableFrom: stringList(p.Args["notReachableFrom"]),
	}
	input.FirstParent, _ = p.Args["firstParent"].(bool)
	limit, hasLimit := p.Args["first"].(int)
	if hasLimit && limit < 0 {
		return nil, errNegativeFirst
	}

	it, err := b.graph.Log(ctxOf(p), input)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	commits := make([]*domain.Commit, 0)
	for (!hasLimit || len(commits) < limit) && it.Next() {
		commits = append(commits, it.Value())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return commits, nil
}

// ctxOf returns the request context, falling back to Background when the
// executor was called without one.
func ctxOf(p graphql.ResolveParams) context.Context {
	if p.Context != nil {
		return p.Context
	}
	return context.Background()
}

// nilIfErr keeps a typed nil pointer from reaching graphql-go as a non-nil
// interface value.
func nilIfErr[T any](v *T, err error) (interface{}, error) {
	if err != nil || v == nil {
		return nil, err
	}
	return v, nil
}

func stringList(v interface{}) []string {
	if s, ok := v.(string); ok {
		return []string{s}
	}
	items, _ := v.([]interface{})
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
