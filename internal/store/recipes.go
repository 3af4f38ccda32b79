// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

// Package store provides access to the upstream relational metadata store.
// The canonical user/recipe/interaction data is owned by a separate backend;
// this package only reads recipe rows in bulk to enrich recommendation
// responses.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forkcast/forkcast/internal/recsys"
)

// RecipeStore reads recipe metadata from Postgres.
type RecipeStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewRecipeStore connects a pgx pool to the metadata database and verifies
// the connection.
func NewRecipeStore(ctx context.Context, dsn string, queryTimeout time.Duration) (*RecipeStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging metadata store: %w", err)
	}
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &RecipeStore{pool: pool, queryTimeout: queryTimeout}, nil
}

// GetRecipes fetches metadata rows for the given recipe IDs in one query.
// IDs with no row are simply absent from the result map.
func (s *RecipeStore) GetRecipes(ctx context.Context, ids []int) (map[int]recsys.RecipeMetadata, error) {
	if len(ids) == 0 {
		return map[int]recsys.RecipeMetadata{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT recipe_id, title,
		       COALESCE(cuisine, ''), COALESCE(dietary_type, ''),
		       COALESCE(cook_time, 0), COALESCE(difficulty, ''),
		       COALESCE(calories_per_serving, 0), COALESCE(avg_rating, 0),
		       COALESCE(chef_name, ''), COALESCE(like_count, 0),
		       COALESCE(comment_count, 0), COALESCE(image_url, '')
		FROM recipes
		WHERE recipe_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying recipes: %w", err)
	}
	defer rows.Close()

	result := make(map[int]recsys.RecipeMetadata, len(ids))
	for rows.Next() {
		var m recsys.RecipeMetadata
		if err := rows.Scan(&m.ID, &m.Title, &m.Cuisine, &m.DietaryType,
			&m.CookTime, &m.Difficulty, &m.CaloriesPerServing, &m.AvgRating,
			&m.Chef, &m.Likes, &m.Comments, &m.ImageURL); err != nil {
			return nil, fmt.Errorf("scanning recipe row: %w", err)
		}
		result[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading recipe rows: %w", err)
	}
	return result, nil
}

// Close releases the connection pool.
func (s *RecipeStore) Close() {
	s.pool.Close()
}

var _ recsys.MetadataStore = (*RecipeStore)(nil)
