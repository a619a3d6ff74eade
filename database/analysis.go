package database

import (
	"context"
	"fmt"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/ortelius/depchain/model"
	"github.com/ortelius/depchain/util"
	"go.uber.org/zap"
)

// analysisDocument is the stored form of an analysis; findings live in their own collection
type analysisDocument struct {
	model.Analysis
	Findings []model.Finding `json:"findings,omitempty"`
}

// SaveAnalysis stores an analysis, its findings and the purl hub links.
// Returns the key of the new analysis document.
func (c DBConnection) SaveAnalysis(ctx context.Context, analysis *model.Analysis) (string, error) {
	if analysis.ObjType == "" {
		analysis.ObjType = "Analysis"
	}

	doc := analysisDocument{Analysis: *analysis}
	doc.Findings = nil
	meta, err := c.Collections["analysis"].CreateDocument(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to save analysis: %w", err)
	}
	analysisID := "analysis/" + meta.Key

	if len(analysis.Findings) == 0 {
		return meta.Key, nil
	}

	findingKeys, err := c.batchInsertFindings(ctx, analysis.Findings)
	if err != nil {
		return "", err
	}

	if err := c.batchInsertEdges(ctx, "analysis2finding", buildFindingEdges(analysisID, findingKeys)); err != nil {
		return "", fmt.Errorf("failed to link findings: %w", err)
	}

	basePurls := make([]string, 0, len(analysis.Findings))
	seen := make(map[string]bool)
	for _, f := range analysis.Findings {
		base := basePurl(f)
		if base == "" || seen[base] {
			continue
		}
		seen[base] = true
		basePurls = append(basePurls, base)
	}

	purlIDMap, err := c.batchFindOrCreatePURLs(ctx, basePurls)
	if err != nil {
		return "", fmt.Errorf("failed to upsert purls: %w", err)
	}

	if err := c.batchInsertEdges(ctx, "finding2purl", buildPurlEdges(analysis.Findings, findingKeys, purlIDMap)); err != nil {
		return "", fmt.Errorf("failed to link purls: %w", err)
	}

	c.logger.Info("analysis saved",
		zap.String("key", meta.Key),
		zap.String("project", analysis.Project),
		zap.Int("findings", len(findingKeys)))

	return meta.Key, nil
}

// GetAnalysis returns the analysis with its findings in stored order, nil when not found
func (c DBConnection) GetAnalysis(ctx context.Context, key string) (*model.Analysis, error) {
	query := `
		FOR a IN analysis
			FILTER a._key == @key
			LIMIT 1
			LET findings = (
				FOR f, e IN 1..1 OUTBOUND a analysis2finding
					SORT e.seq
					RETURN f
			)
			RETURN MERGE(a, { findings: findings })
	`
	cursor, err := c.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"key": key,
		},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return nil, nil
	}

	var analysis model.Analysis
	if _, err := cursor.ReadDocument(ctx, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// ListAnalyses returns the most recent analyses first
func (c DBConnection) ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisListItem, error) {
	query := `
		FOR a IN analysis
			SORT a.created_at DESC
			LIMIT @limit
			RETURN {
				_key: a._key,
				project: a.project,
				version: a.version,
				created_at: a.created_at,
				total: a.summary.total
			}
	`
	cursor, err := c.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"limit": limit,
		},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	items := []model.AnalysisListItem{}
	for cursor.HasMore() {
		var item model.AnalysisListItem
		if _, err := cursor.ReadDocument(ctx, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// AffectedAnalyses returns every analysis reporting the package identified by purl
func (c DBConnection) AffectedAnalyses(ctx context.Context, purl string) ([]model.AffectedAnalysis, error) {
	base, err := util.GetBasePURL(purl)
	if err != nil {
		return nil, fmt.Errorf("invalid purl %s: %w", purl, err)
	}

	query := `
		FOR p IN purl
			FILTER p.purl == @purl
			FOR f IN 1..1 INBOUND p finding2purl
				FOR a IN 1..1 INBOUND f analysis2finding
					SORT a.created_at DESC
					RETURN DISTINCT {
						analysis_key: a._key,
						project: a.project,
						version: a.version,
						package: f.package,
						severity: f.severity,
						type: f.type,
						strategy: f.strategy
					}
	`
	cursor, err := c.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"purl": base,
		},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	affected := []model.AffectedAnalysis{}
	for cursor.HasMore() {
		var item model.AffectedAnalysis
		if _, err := cursor.ReadDocument(ctx, &item); err != nil {
			return nil, err
		}
		affected = append(affected, item)
	}
	return affected, nil
}

// batchInsertFindings inserts findings in a single query and returns their keys in input order
func (c DBConnection) batchInsertFindings(ctx context.Context, findings []model.Finding) ([]string, error) {
	query := `
		FOR f IN @findings
			INSERT f INTO finding
			RETURN NEW._key
	`
	cursor, err := c.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"findings": findings,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save findings: %w", err)
	}
	defer cursor.Close()

	keys := make([]string, 0, len(findings))
	for cursor.HasMore() {
		var key string
		if _, err := cursor.ReadDocument(ctx, &key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// batchFindOrCreatePURLs finds or creates multiple PURLs in a single query
// Returns a map of basePurl -> purlID
func (c DBConnection) batchFindOrCreatePURLs(ctx context.Context, basePurls []string) (map[string]string, error) {
	if len(basePurls) == 0 {
		return make(map[string]string), nil
	}

	docs := make([]*model.PURL, 0, len(basePurls))
	for _, base := range basePurls {
		docs = append(docs, model.NewPURL(base))
	}

	query := `
		FOR doc IN @purls
			LET upsertedPurl = FIRST(
				UPSERT { purl: doc.purl }
				INSERT doc
				UPDATE {} IN purl
				RETURN NEW
			)
			RETURN {
				basePurl: doc.purl,
				purlId: CONCAT("purl/", upsertedPurl._key)
			}
	`
	cursor, err := c.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"purls": docs,
		},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	purlIDMap := make(map[string]string)
	for cursor.HasMore() {
		var result struct {
			BasePurl string `json:"basePurl"`
			PurlID   string `json:"purlId"`
		}
		if _, err := cursor.ReadDocument(ctx, &result); err != nil {
			return nil, err
		}
		purlIDMap[result.BasePurl] = result.PurlID
	}
	return purlIDMap, nil
}

// batchInsertEdges inserts multiple edges in a single query
func (c DBConnection) batchInsertEdges(ctx context.Context, edgeCollection string, edges []map[string]interface{}) error {
	if len(edges) == 0 {
		return nil
	}

	query := `
		FOR edge IN @edges
			INSERT edge INTO @@edgeCollection
	`
	cursor, err := c.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"@edgeCollection": edgeCollection,
			"edges":           edges,
		},
	})
	if err != nil {
		return err
	}
	cursor.Close()

	return nil
}

// buildFindingEdges links an analysis to its findings; seq keeps the report order
func buildFindingEdges(analysisID string, findingKeys []string) []map[string]interface{} {
	edges := make([]map[string]interface{}, 0, len(findingKeys))
	for i, key := range findingKeys {
		edges = append(edges, map[string]interface{}{
			"_from": analysisID,
			"_to":   "finding/" + key,
			"seq":   i,
		})
	}
	return edges
}

// buildPurlEdges links each finding to the hub of its base purl
func buildPurlEdges(findings []model.Finding, findingKeys []string, purlIDMap map[string]string) []map[string]interface{} {
	var edges []map[string]interface{}
	for i, f := range findings {
		if i >= len(findingKeys) {
			break
		}
		purlID, ok := purlIDMap[basePurl(f)]
		if !ok {
			continue
		}
		edges = append(edges, map[string]interface{}{
			"_from":     "finding/" + findingKeys[i],
			"_to":       purlID,
			"full_purl": f.Purl,
		})
	}
	return edges
}

func basePurl(f model.Finding) string {
	if f.Purl == "" {
		return ""
	}
	base, err := util.GetBasePURL(f.Purl)
	if err != nil {
		return ""
	}
	return base
}
