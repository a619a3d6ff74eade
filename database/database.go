// Package database - Handles all interaction with ArangoDB
package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"github.com/ortelius/depchain/config"
	"github.com/ortelius/depchain/model"
	"go.uber.org/zap"
)

// Store persists analyses and answers queries about them
type Store interface {
	SaveAnalysis(ctx context.Context, analysis *model.Analysis) (string, error)
	GetAnalysis(ctx context.Context, key string) (*model.Analysis, error)
	ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisListItem, error)
	AffectedAnalyses(ctx context.Context, purl string) ([]model.AffectedAnalysis, error)
}

// DBConnection is the structure that defined the database engine and collections
type DBConnection struct {
	Collections map[string]arangodb.Collection
	Database    arangodb.Database
	logger      *zap.Logger
}

// Define a struct to hold the index definition
type indexConfig struct {
	Collection string
	IdxName    string
	IdxField   string
}

var documentCollections = []string{"analysis", "finding", "purl"}

var edgeCollections = []string{"analysis2finding", "finding2purl"}

var indexes = []indexConfig{
	{Collection: "analysis", IdxName: "analysis_project", IdxField: "project"},
	{Collection: "analysis", IdxName: "analysis_created", IdxField: "created_at"},
	{Collection: "finding", IdxName: "finding_package", IdxField: "package"},
	{Collection: "finding", IdxName: "finding_severity", IdxField: "severity"},
	{Collection: "purl", IdxName: "purl_idx", IdxField: "purl"},
	// Edge collection indexes for optimized traversals
	{Collection: "analysis2finding", IdxName: "analysis2finding_from", IdxField: "_from"},
	{Collection: "analysis2finding", IdxName: "analysis2finding_to", IdxField: "_to"},
	{Collection: "finding2purl", IdxName: "finding2purl_from", IdxField: "_from"},
	{Collection: "finding2purl", IdxName: "finding2purl_to", IdxField: "_to"},
}

func dbConnectionConfig(endpoint connection.Endpoint, dbuser string, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// InitializeDatabase connects to the db engine with backoff retry and creates
// the database, collections and indexes when they do not exist yet
func InitializeDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (DBConnection, error) {
	const initialInterval = 2 * time.Second
	const maxInterval = 30 * time.Second
	const maxElapsed = 2 * time.Minute

	if logger == nil {
		logger = zap.NewNop()
	}

	var client arangodb.Client

	//
	// Database connection with backoff retry
	//

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = maxElapsed

	err := backoff.RetryNotify(func() error {
		logger.Debug("Attempting to connect to ArangoDB", zap.String("url", cfg.URL))
		endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
		conn := connection.NewHttpConnection(dbConnectionConfig(endpoint, cfg.User, cfg.Pass))

		client = arangodb.NewClient(conn)

		versionInfo, err := client.Version(ctx)
		if err != nil {
			return err
		}

		logger.Sugar().Infof("Database has version '%s' and license '%s'", versionInfo.Version, versionInfo.License)
		return nil

	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		logger.Sugar().Warnf("Retrying connection to ArangoDB in %s: %v", wait, err)
	})
	if err != nil {
		return DBConnection{}, fmt.Errorf("failed to connect to ArangoDB: %w", err)
	}

	//
	// Database creation
	//

	var db arangodb.Database
	dblist, err := client.Databases(ctx)
	if err != nil {
		return DBConnection{}, fmt.Errorf("failed to list databases: %w", err)
	}

	exists := false
	for _, dbinfo := range dblist {
		if dbinfo.Name() == cfg.Name {
			exists = true
			break
		}
	}

	if exists {
		var options arangodb.GetDatabaseOptions
		if db, err = client.GetDatabase(ctx, cfg.Name, &options); err != nil {
			return DBConnection{}, fmt.Errorf("failed to get database: %w", err)
		}
	} else {
		if db, err = client.CreateDatabase(ctx, cfg.Name, nil); err != nil {
			return DBConnection{}, fmt.Errorf("failed to create database: %w", err)
		}
	}

	//
	// Collection creation for document and edge storage
	//

	collections := make(map[string]arangodb.Collection)

	for _, name := range documentCollections {
		col, err := ensureCollection(ctx, db, name, arangodb.CollectionTypeDocument)
		if err != nil {
			return DBConnection{}, err
		}
		collections[name] = col
	}

	for _, name := range edgeCollections {
		col, err := ensureCollection(ctx, db, name, arangodb.CollectionTypeEdge)
		if err != nil {
			return DBConnection{}, err
		}
		collections[name] = col
	}

	//
	// Index creation
	//

	False := false
	for _, idx := range indexes {
		found := false

		if existing, err := collections[idx.Collection].Indexes(ctx); err == nil {
			for _, index := range existing {
				if idx.IdxName == index.Name {
					found = true
					break
				}
			}
		}

		if found {
			continue
		}

		indexOptions := arangodb.CreatePersistentIndexOptions{
			Unique: &False,
			Sparse: &False,
			Name:   idx.IdxName,
		}

		if _, _, err = collections[idx.Collection].EnsurePersistentIndex(ctx, []string{idx.IdxField}, &indexOptions); err != nil {
			return DBConnection{}, fmt.Errorf("failed to create index %s: %w", idx.IdxName, err)
		}
	}

	return DBConnection{
		Database:    db,
		Collections: collections,
		logger:      logger,
	}, nil
}

func ensureCollection(ctx context.Context, db arangodb.Database, name string, colType arangodb.CollectionType) (arangodb.Collection, error) {
	exists, err := db.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", name, err)
	}

	if exists {
		var options arangodb.GetCollectionOptions
		col, err := db.GetCollection(ctx, name, &options)
		if err != nil {
			return nil, fmt.Errorf("failed to use collection %s: %w", name, err)
		}
		return col, nil
	}

	col, err := db.CreateCollectionV2(ctx, name, &arangodb.CreateCollectionPropertiesV2{
		Type: &colType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return col, nil
}
