package topics

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"inkpress/internal/db"
)

// Topic groups related articles.
type Topic struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Description  string `json:"description,omitempty"`
	ArticleCount int    `json:"article_count"`
}

// Store manages topic persistence.
type Store struct {
	db *db.DB
}

// NewStore creates a new topic store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonSlugChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// List returns all topics with their article counts, by name.
func (s *Store) List(ctx context.Context) ([]Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.slug, t.description, COUNT(a.id)
		 FROM topics t LEFT JOIN articles a ON a.topic_id = t.id
		 GROUP BY t.id ORDER BY t.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Description, &t.ArticleCount); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// GetByName finds a topic by its exact name.
func (s *Store) GetByName(ctx context.Context, name string) (*Topic, error) {
	var t Topic
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, description FROM topics WHERE name = ?`, name,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting topic: %w", err)
	}
	return &t, nil
}

// Create inserts a topic. Duplicate names return the existing topic.
func (s *Store) Create(ctx context.Context, name string) (*Topic, error) {
	if existing, err := s.GetByName(ctx, name); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	t := Topic{Name: name, Slug: slugify(name)}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO topics (name, slug, created_at) VALUES (?, ?, ?)`,
		t.Name, t.Slug, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting topic: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading topic id: %w", err)
	}
	return &t, nil
}

// AssignToArticle creates the topic if needed and sets it on the article.
func (s *Store) AssignToArticle(ctx context.Context, articleID int64, name string) (*Topic, error) {
	t, err := s.Create(ctx, name)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET topic_id = ?, updated_at = ? WHERE id = ?`,
		t.ID, time.Now().UTC(), articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("assigning topic: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("article %d not found", articleID)
	}
	return t, nil
}
