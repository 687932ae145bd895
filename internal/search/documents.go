// Package search keeps the Typesense collections in step with projects,
// playlists and activities.
package search

import (
	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
)

const (
	CollectionProjects   = "projects"
	CollectionPlaylists  = "playlists"
	CollectionActivities = "activities"
)

type ProjectDocument struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	OrganizationID string `json:"organization_id"`
	IsPublic       bool   `json:"is_public"`
	CreatedAt      int64  `json:"created_at"`
}

type PlaylistDocument struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	IsPublic  bool   `json:"is_public"`
	CreatedAt int64  `json:"created_at"`
}

type ActivityDocument struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	PlaylistID string `json:"playlist_id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	IsPublic   bool   `json:"is_public"`
	CreatedAt  int64  `json:"created_at"`
}

// Batch is every document derived from one project.
type Batch struct {
	Projects   []ProjectDocument
	Playlists  []PlaylistDocument
	Activities []ActivityDocument
}

// Removal names the documents to drop, by collection.
type Removal struct {
	ProjectIDs  []uuid.UUID
	PlaylistIDs []uuid.UUID
	ActivityIDs []uuid.UUID
}

// BuildBatch flattens a project with its playlists and their activities
// preloaded.
func BuildBatch(project *models.Project) Batch {
	batch := Batch{
		Projects: []ProjectDocument{{
			ID:             project.ID.String(),
			Name:           project.Name,
			Description:    project.Description,
			OrganizationID: optionalID(project.OrganizationID),
			IsPublic:       project.IsPublic,
			CreatedAt:      project.CreatedAt.Unix(),
		}},
	}

	for _, pl := range project.Playlists {
		batch.Playlists = append(batch.Playlists, PlaylistDocument{
			ID:        pl.ID.String(),
			ProjectID: project.ID.String(),
			Title:     pl.Title,
			IsPublic:  pl.IsPublic,
			CreatedAt: pl.CreatedAt.Unix(),
		})
		for _, a := range pl.Activities {
			batch.Activities = append(batch.Activities, ActivityDocument{
				ID:         a.ID.String(),
				ProjectID:  project.ID.String(),
				PlaylistID: pl.ID.String(),
				Title:      a.Title,
				Type:       string(a.Type),
				IsPublic:   a.IsPublic,
				CreatedAt:  a.CreatedAt.Unix(),
			})
		}
	}
	return batch
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
