package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/typesense/typesense-go/v4/typesense"
	"github.com/typesense/typesense-go/v4/typesense/api"
	"github.com/typesense/typesense-go/v4/typesense/api/pointer"
)

// Indexer pushes and removes search documents.
type Indexer interface {
	EnsureCollections(ctx context.Context) error
	Index(ctx context.Context, batch Batch) error
	Remove(ctx context.Context, removal Removal) error
}

var (
	_ Indexer = (*TypesenseIndexer)(nil)
	_ Indexer = (*NopIndexer)(nil)
)

// TypesenseIndexer writes documents to a Typesense cluster.
type TypesenseIndexer struct {
	client *typesense.Client
	logger *slog.Logger
}

func NewTypesenseIndexer(serverURL, apiKey string, logger *slog.Logger) *TypesenseIndexer {
	client := typesense.NewClient(
		typesense.WithServer(serverURL),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(10*time.Second),
	)
	return &TypesenseIndexer{client: client, logger: logger}
}

func schemas() []*api.CollectionSchema {
	return []*api.CollectionSchema{
		{
			Name: CollectionProjects,
			Fields: []api.Field{
				{Name: "name", Type: "string"},
				{Name: "description", Type: "string"},
				{Name: "organization_id", Type: "string", Facet: pointer.True()},
				{Name: "is_public", Type: "bool", Facet: pointer.True()},
				{Name: "created_at", Type: "int64"},
			},
			DefaultSortingField: pointer.String("created_at"),
		},
		{
			Name: CollectionPlaylists,
			Fields: []api.Field{
				{Name: "project_id", Type: "string", Facet: pointer.True()},
				{Name: "title", Type: "string"},
				{Name: "is_public", Type: "bool", Facet: pointer.True()},
				{Name: "created_at", Type: "int64"},
			},
			DefaultSortingField: pointer.String("created_at"),
		},
		{
			Name: CollectionActivities,
			Fields: []api.Field{
				{Name: "project_id", Type: "string", Facet: pointer.True()},
				{Name: "playlist_id", Type: "string", Facet: pointer.True()},
				{Name: "title", Type: "string"},
				{Name: "type", Type: "string", Facet: pointer.True()},
				{Name: "is_public", Type: "bool", Facet: pointer.True()},
				{Name: "created_at", Type: "int64"},
			},
			DefaultSortingField: pointer.String("created_at"),
		},
	}
}

// EnsureCollections creates any missing collection.
func (i *TypesenseIndexer) EnsureCollections(ctx context.Context) error {
	for _, schema := range schemas() {
		if _, err := i.client.Collection(schema.Name).Retrieve(ctx); err == nil {
			continue
		} else if !isStatus(err, http.StatusNotFound) {
			return fmt.Errorf("retrieving collection %s: %w", schema.Name, err)
		}
		if _, err := i.client.Collections().Create(ctx, schema); err != nil && !isStatus(err, http.StatusConflict) {
			return fmt.Errorf("creating collection %s: %w", schema.Name, err)
		}
		i.logger.Info("search collection created", "collection", schema.Name)
	}
	return nil
}

func (i *TypesenseIndexer) Index(ctx context.Context, batch Batch) error {
	for _, doc := range batch.Projects {
		if err := i.upsert(ctx, CollectionProjects, doc); err != nil {
			return err
		}
	}
	for _, doc := range batch.Playlists {
		if err := i.upsert(ctx, CollectionPlaylists, doc); err != nil {
			return err
		}
	}
	for _, doc := range batch.Activities {
		if err := i.upsert(ctx, CollectionActivities, doc); err != nil {
			return err
		}
	}
	return nil
}

func (i *TypesenseIndexer) upsert(ctx context.Context, collection string, doc interface{}) error {
	if _, err := i.client.Collection(collection).Documents().Upsert(ctx, doc, &api.DocumentIndexParameters{}); err != nil {
		return fmt.Errorf("upserting into %s: %w", collection, err)
	}
	return nil
}

// Remove deletes documents; documents already gone are ignored.
func (i *TypesenseIndexer) Remove(ctx context.Context, removal Removal) error {
	groups := []struct {
		collection string
		ids        []string
	}{
		{CollectionActivities, idStrings(removal.ActivityIDs)},
		{CollectionPlaylists, idStrings(removal.PlaylistIDs)},
		{CollectionProjects, idStrings(removal.ProjectIDs)},
	}
	for _, g := range groups {
		for _, id := range g.ids {
			_, err := i.client.Collection(g.collection).Document(id).Delete(ctx)
			if err != nil && !isStatus(err, http.StatusNotFound) {
				return fmt.Errorf("deleting %s/%s: %w", g.collection, id, err)
			}
		}
	}
	return nil
}

func isStatus(err error, status int) bool {
	var httpErr *typesense.HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == status
}

// NopIndexer is used when no search cluster is configured.
type NopIndexer struct {
	logger *slog.Logger
}

func NewNopIndexer(logger *slog.Logger) *NopIndexer {
	return &NopIndexer{logger: logger}
}

func (n *NopIndexer) EnsureCollections(context.Context) error { return nil }

func (n *NopIndexer) Index(_ context.Context, batch Batch) error {
	n.logger.Debug("search disabled, skipping index",
		"projects", len(batch.Projects), "playlists", len(batch.Playlists), "activities", len(batch.Activities))
	return nil
}

func (n *NopIndexer) Remove(_ context.Context, removal Removal) error {
	n.logger.Debug("search disabled, skipping removal", "projects", len(removal.ProjectIDs))
	return nil
}
