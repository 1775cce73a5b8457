package domain

import (
	"encoding/json"
	"time"
)

type PostStatus string

const (
	StatusGeneratingContent PostStatus = "generating_content"
	StatusGenerated         PostStatus = "generated"
	StatusPosting           PostStatus = "posting"
	StatusPosted            PostStatus = "posted"
	StatusError             PostStatus = "error"
)

// PostStatuses lists every status a post record can carry.
var PostStatuses = []PostStatus{
	StatusGeneratingContent,
	StatusGenerated,
	StatusPosting,
	StatusPosted,
	StatusError,
}

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformThreads   Platform = "threads"
)

// SocialAccount is a platform target copied from the template when the post is created.
type SocialAccount struct {
	Platform       Platform `json:"platform"`
	CredentialsRef string   `json:"credentialsRef,omitempty"`
}

type PlatformResult struct {
	Platform Platform `json:"platform"`
	Success  bool     `json:"success"`
	Skipped  bool     `json:"skipped,omitempty"`
	Message  string   `json:"message"`
	MediaID  string   `json:"mediaId,omitempty"`
}

type PostResult struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	Platforms []PlatformResult `json:"platforms,omitempty"`
}

// PostRecord tracks one orchestration run. Every transition replaces the whole record.
type PostRecord struct {
	ID              string          `json:"id"`
	BrandID         string          `json:"brandId"`
	TemplateID      string          `json:"templateId"`
	Status          PostStatus      `json:"status"`
	SocialAccounts  []SocialAccount `json:"socialAccounts"`
	ContentResponse json.RawMessage `json:"contentResponse,omitempty"`
	ImageURLs       []string        `json:"imageUrls,omitempty"`
	PostResult      *PostResult     `json:"postResult,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ImageQuote is one per-image text item of multi-image content.
type ImageQuote struct {
	Quote string `json:"quote"`
}

// GeneratedContent is the typed view over a completion document.
// Raw keeps the document exactly as the model produced it.
type GeneratedContent struct {
	Quote    string
	Comment  string
	Hashtags []string
	Images   []ImageQuote
	Raw      json.RawMessage
}
