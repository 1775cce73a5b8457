package social

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"autogensocial/pkg/domain"
)

const (
	DefaultInstagramBaseURL = "https://graph.facebook.com/v19.0"
	DefaultThreadsBaseURL   = "https://graph.threads.net/v1.0"
)

// Credentials identify the publishing account on one platform.
type Credentials struct {
	AccessToken string
	AccountID   string
	Username    string
}

// MediaRequest describes one media container. Children set means a carousel
// container; CarouselItem marks a child that carries no caption.
type MediaRequest struct {
	ImageURL     string
	Caption      string
	CarouselItem bool
	Children     []string
}

// MediaAPI is the two-step create-then-publish capability of a platform.
type MediaAPI interface {
	CreateMedia(ctx context.Context, creds Credentials, req MediaRequest) (string, error)
	PublishMedia(ctx context.Context, creds Credentials, creationID string) (string, error)
}

// Platform binds a platform identifier to its API.
type Platform struct {
	Name  domain.Platform
	Label string
	API   MediaAPI
}

// InstagramAPI implements MediaAPI on the Instagram Graph API.
type InstagramAPI struct {
	graph graphClient
}

func NewInstagramAPI(baseURL string, httpClient *http.Client) *InstagramAPI {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultInstagramBaseURL
	}
	return &InstagramAPI{graph: newGraphClient(baseURL, httpClient)}
}

func (a *InstagramAPI) CreateMedia(ctx context.Context, creds Credentials, req MediaRequest) (string, error) {
	body := map[string]any{"access_token": creds.AccessToken}
	switch {
	case len(req.Children) > 0:
		body["media_type"] = "CAROUSEL"
		body["children"] = req.Children
		body["caption"] = req.Caption
	case req.CarouselItem:
		body["image_url"] = req.ImageURL
		body["is_carousel_item"] = true
	default:
		body["image_url"] = req.ImageURL
		body["caption"] = req.Caption
	}
	return a.graph.post(ctx, "/"+url.PathEscape(creds.AccountID)+"/media", body)
}

func (a *InstagramAPI) PublishMedia(ctx context.Context, creds Credentials, creationID string) (string, error) {
	return a.graph.post(ctx, "/"+url.PathEscape(creds.AccountID)+"/media_publish", map[string]any{
		"creation_id":  creationID,
		"access_token": creds.AccessToken,
	})
}

// ThreadsAPI implements MediaAPI on the Threads API.
type ThreadsAPI struct {
	graph graphClient
}

func NewThreadsAPI(baseURL string, httpClient *http.Client) *ThreadsAPI {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultThreadsBaseURL
	}
	return &ThreadsAPI{graph: newGraphClient(baseURL, httpClient)}
}

func (a *ThreadsAPI) CreateMedia(ctx context.Context, creds Credentials, req MediaRequest) (string, error) {
	body := map[string]any{"access_token": creds.AccessToken}
	switch {
	case len(req.Children) > 0:
		body["media_type"] = "CAROUSEL"
		body["children"] = strings.Join(req.Children, ",")
		body["text"] = req.Caption
	case req.CarouselItem:
		body["media_type"] = "IMAGE"
		body["image_url"] = req.ImageURL
		body["is_carousel_item"] = true
	default:
		body["media_type"] = "IMAGE"
		body["image_url"] = req.ImageURL
		body["text"] = req.Caption
	}
	return a.graph.post(ctx, "/"+url.PathEscape(creds.AccountID)+"/threads", body)
}

func (a *ThreadsAPI) PublishMedia(ctx context.Context, creds Credentials, creationID string) (string, error) {
	return a.graph.post(ctx, "/"+url.PathEscape(creds.AccountID)+"/threads_publish", map[string]any{
		"creation_id":  creationID,
		"access_token": creds.AccessToken,
	})
}

// DefaultPlatforms returns Instagram and Threads bound to the given base URLs.
// Empty base URLs use the public endpoints.
func DefaultPlatforms(instagramBaseURL, threadsBaseURL string, httpClient *http.Client) []Platform {
	return []Platform{
		{Name: domain.PlatformInstagram, Label: "Instagram", API: NewInstagramAPI(instagramBaseURL, httpClient)},
		{Name: domain.PlatformThreads, Label: "Threads", API: NewThreadsAPI(threadsBaseURL, httpClient)},
	}
}
