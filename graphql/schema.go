// Package graphql provides the GraphQL schema definition and resolvers
package graphql

import (
	"context"
	"sort"

	"github.com/graphql-go/graphql"
	"github.com/ortelius/depchain/database"
	"github.com/ortelius/depchain/model"
)

// DependencyTypeEnum defines the GraphQL enum for how a package enters the tree
var DependencyTypeEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "DependencyType",
	Values: graphql.EnumValueConfigMap{
		"DIRECT":     &graphql.EnumValueConfig{Value: string(model.DependencyDirect)},
		"TRANSITIVE": &graphql.EnumValueConfig{Value: string(model.DependencyTransitive)},
		"NOT_FOUND":  &graphql.EnumValueConfig{Value: string(model.DependencyNotFound)},
	},
})

// InstallationType defines the GraphQL object for an installed version of a vulnerable package
var InstallationType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Installation",
	Fields: graphql.Fields{
		"version": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			inst, _ := p.Source.(model.Installation)
			return inst.Version, nil
		}},
		"in_range": &graphql.Field{Type: graphql.Boolean, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			inst, _ := p.Source.(model.Installation)
			if inst.InRange == nil {
				return nil, nil
			}
			return *inst.InRange, nil
		}},
	},
})

// FindingType defines the GraphQL object for a classified vulnerability
var FindingType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Finding",
	Fields: graphql.Fields{
		"package": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(model.Finding)
			return f.Package, nil
		}},
		"version_range": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(model.Finding)
			return f.VersionRange, nil
		}},
		"type": &graphql.Field{Type: DependencyTypeEnum, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(model.Finding)
			return string(f.DependencyType), nil
		}},
		"strategy": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(model.Finding)
			return string(f.Strategy), nil
		}},
		"explanation": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(model.Finding)
			return f.Explanation, nil
		}},
		"severity": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(model.Finding)
			return f.Severity, nil
		}},
		"purl": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(model.Finding)
			return f.Purl, nil
		}},
		"advisory": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(model.Finding)
			return f.Advisory, nil
		}},
		"advisory_url": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(model.Finding)
			return f.AdvisoryURL, nil
		}},
		"paths": &graphql.Field{
			Type: graphql.NewList(graphql.NewList(graphql.String)),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				f, _ := p.Source.(model.Finding)
				paths := make([][]string, 0, len(f.Paths))
				for _, path := range f.Paths {
					paths = append(paths, []string(path))
				}
				return paths, nil
			},
		},
		"installed": &graphql.Field{Type: graphql.NewList(InstallationType), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			f, _ := p.Source.(model.Finding)
			return f.Installed, nil
		}},
	},
})

// SeverityCountType defines the GraphQL object for a finding count per severity
var SeverityCountType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SeverityCount",
	Fields: graphql.Fields{
		"severity": &graphql.Field{Type: graphql.String},
		"count":    &graphql.Field{Type: graphql.Int},
	},
})

// SummaryType defines the GraphQL object for analysis counts
var SummaryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Summary",
	Fields: graphql.Fields{
		"total": &graphql.Field{Type: graphql.Int, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			s, _ := p.Source.(model.Summary)
			return s.Total, nil
		}},
		"direct": &graphql.Field{Type: graphql.Int, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			s, _ := p.Source.(model.Summary)
			return s.Direct, nil
		}},
		"transitive": &graphql.Field{Type: graphql.Int, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			s, _ := p.Source.(model.Summary)
			return s.Transitive, nil
		}},
		"not_found": &graphql.Field{Type: graphql.Int, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			s, _ := p.Source.(model.Summary)
			return s.NotFound, nil
		}},
		"skipped": &graphql.Field{Type: graphql.NewList(graphql.String), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			s, _ := p.Source.(model.Summary)
			return s.Skipped, nil
		}},
		"by_severity": &graphql.Field{Type: graphql.NewList(SeverityCountType), Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			s, _ := p.Source.(model.Summary)
			counts := make([]map[string]interface{}, 0, len(s.BySeverity))
			for severity, count := range s.BySeverity {
				counts = append(counts, map[string]interface{}{"severity": severity, "count": count})
			}
			sort.Slice(counts, func(i, j int) bool {
				return model.SeverityRank(counts[i]["severity"].(string)) > model.SeverityRank(counts[j]["severity"].(string))
			})
			return counts, nil
		}},
	},
})

// AnalysisType defines the GraphQL object for a stored analysis run
var AnalysisType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Analysis",
	Fields: graphql.Fields{
		"key": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(*model.Analysis)
			return a.Key, nil
		}},
		"project": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(*model.Analysis)
			return a.Project, nil
		}},
		"version": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(*model.Analysis)
			return a.Version, nil
		}},
		"created_at": &graphql.Field{Type: graphql.DateTime, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(*model.Analysis)
			return a.CreatedAt, nil
		}},
		"summary": &graphql.Field{Type: SummaryType, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(*model.Analysis)
			return a.Summary, nil
		}},
		"findings": &graphql.Field{
			Type: graphql.NewList(FindingType),
			Args: graphql.FieldConfigArgument{
				"type": &graphql.ArgumentConfig{Type: DependencyTypeEnum},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				a, _ := p.Source.(*model.Analysis)
				return filterFindings(a.Findings, p.Args), nil
			},
		},
	},
})

// AnalysisListItemType defines the GraphQL object for the analysis list view
var AnalysisListItemType = graphql.NewObject(graphql.ObjectConfig{
	Name: "AnalysisListItem",
	Fields: graphql.Fields{
		"key": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			item, _ := p.Source.(model.AnalysisListItem)
			return item.Key, nil
		}},
		"project": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			item, _ := p.Source.(model.AnalysisListItem)
			return item.Project, nil
		}},
		"version": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			item, _ := p.Source.(model.AnalysisListItem)
			return item.Version, nil
		}},
		"created_at": &graphql.Field{Type: graphql.DateTime, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			item, _ := p.Source.(model.AnalysisListItem)
			return item.CreatedAt, nil
		}},
		"total": &graphql.Field{Type: graphql.Int, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			item, _ := p.Source.(model.AnalysisListItem)
			return item.Total, nil
		}},
	},
})

// AffectedAnalysisType defines the GraphQL object for an analysis reporting a given package
var AffectedAnalysisType = graphql.NewObject(graphql.ObjectConfig{
	Name: "AffectedAnalysis",
	Fields: graphql.Fields{
		"analysis_key": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(model.AffectedAnalysis)
			return a.AnalysisKey, nil
		}},
		"project": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(model.AffectedAnalysis)
			return a.Project, nil
		}},
		"version": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(model.AffectedAnalysis)
			return a.Version, nil
		}},
		"package": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(model.AffectedAnalysis)
			return a.Package, nil
		}},
		"severity": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(model.AffectedAnalysis)
			return a.Severity, nil
		}},
		"type": &graphql.Field{Type: DependencyTypeEnum, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(model.AffectedAnalysis)
			return string(a.DependencyType), nil
		}},
		"strategy": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			a, _ := p.Source.(model.AffectedAnalysis)
			return string(a.Strategy), nil
		}},
	},
})

// CreateSchema generates and returns the configured GraphQL schema for the API.
func CreateSchema(store database.Store) (graphql.Schema, error) {
	rootQuery := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"analysis": &graphql.Field{
				Type: AnalysisType,
				Args: graphql.FieldConfigArgument{
					"key": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					key := p.Args["key"].(string)
					analysis, err := store.GetAnalysis(contextOf(p), key)
					if err != nil || analysis == nil {
						return nil, err
					}
					return analysis, nil
				},
			},
			"analyses": &graphql.Field{
				Type: graphql.NewList(AnalysisListItemType),
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit := p.Args["limit"].(int)
					return store.ListAnalyses(contextOf(p), limit)
				},
			},
			"findings": &graphql.Field{
				Type: graphql.NewList(FindingType),
				Args: graphql.FieldConfigArgument{
					"key":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"type": &graphql.ArgumentConfig{Type: DependencyTypeEnum},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					key := p.Args["key"].(string)
					analysis, err := store.GetAnalysis(contextOf(p), key)
					if err != nil || analysis == nil {
						return nil, err
					}
					return filterFindings(analysis.Findings, p.Args), nil
				},
			},
			"affectedAnalyses": &graphql.Field{
				Type: graphql.NewList(AffectedAnalysisType),
				Args: graphql.FieldConfigArgument{
					"purl": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					purl := p.Args["purl"].(string)
					return store.AffectedAnalyses(contextOf(p), purl)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: rootQuery,
	})
}

func contextOf(p graphql.ResolveParams) context.Context {
	if p.Context != nil {
		return p.Context
	}
	return context.Background()
}

// filterFindings keeps the findings matching the optional "type" argument.
func filterFindings(findings []model.Finding, args map[string]interface{}) []model.Finding {
	depType, filtered := args["type"].(string)
	if !filtered {
		return findings
	}
	matched := []model.Finding{}
	for _, f := range findings {
		if string(f.DependencyType) == depType {
			matched = append(matched, f)
		}
	}
	return matched
}
