package articles

import "time"

// Status represents the publication lifecycle stage of an article.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

// Article is a stored blog post.
type Article struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Content     string     `json:"content"`
	Excerpt     string     `json:"excerpt"`
	Status      Status     `json:"status"`
	TopicID     *int64     `json:"topic_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// IsPublished reports whether the article is publicly visible: it must
// have published status and a publication time not in the future.
func (a *Article) IsPublished() bool {
	return a.Status == StatusPublished && a.PublishedAt != nil && !a.PublishedAt.After(time.Now())
}

// SearchResult is the minimal projection returned by title search.
type SearchResult struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// ListFilter controls which articles List returns.
type ListFilter struct {
	Status   Status
	TopicID  int64
	Page     int
	PageSize int
}

// PublishParams is the full submission of an article for publishing.
type PublishParams struct {
	Title       string
	Content     string
	Excerpt     string
	TopicID     *int64
	PublishedAt *time.Time // nil means publish now; future means schedule
}
