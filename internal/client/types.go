package client

import "time"

// SearchResult is one title-search match.
type SearchResult struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// Article mirrors the server's article representation.
type Article struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Content     string     `json:"content"`
	Excerpt     string     `json:"excerpt"`
	Status      string     `json:"status"`
	TopicID     *int64     `json:"topic_id,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ArticleDraft is the payload of an autosave call.
type ArticleDraft struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
}

// AutosaveResult is the decoded autosave response. Error carries a
// server-reported logical failure; deciding how to surface it is the
// caller's job.
type AutosaveResult struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	SavedAt string `json:"saved_at"`
}

// ImageUpload is the payload of an image upload call.
type ImageUpload struct {
	ArticleID   int64
	Filename    string
	ContentType string
	Data        []byte
}

// UploadedImage is the server's record of a stored image.
type UploadedImage struct {
	URL string `json:"url"`
	ID  int64  `json:"id"`
}

// Topic mirrors the server's topic representation.
type Topic struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ArticleSubmission is the payload of a publish call.
type ArticleSubmission struct {
	ID          int64      `json:"-"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Excerpt     string     `json:"excerpt"`
	ImageIDs    []int64    `json:"image_ids"`
	TopicID     *int64     `json:"topic_id,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ListOptions filters article listings.
type ListOptions struct {
	Status   string
	TopicID  int64
	Page     int
	PageSize int
}
