package social

import (
	"context"
	"fmt"
	"strings"

	"autogensocial/internal/util"
	"autogensocial/pkg/domain"
)

const (
	msgNoAccounts  = "No social accounts specified."
	msgNoSupported = "No supported social platforms configured."
	msgUnknown     = "skipped: unknown platform"
	MsgNoAssets    = "no assets to publish"
)

// Outcome is the result of one Publish call. Result is nil when nothing was
// published because there were no assets.
type Outcome struct {
	Attempted bool
	Message   string
	Result    *domain.PostResult
}

// Publisher posts assets to every configured platform account in order.
type Publisher struct {
	platforms map[domain.Platform]Platform
	fallback  map[domain.Platform]Credentials
}

// NewPublisher builds a Publisher. fallback supplies per-field credentials when
// the brand document does not.
func NewPublisher(fallback map[domain.Platform]Credentials, platforms ...Platform) *Publisher {
	p := &Publisher{
		platforms: make(map[domain.Platform]Platform, len(platforms)),
		fallback:  make(map[domain.Platform]Credentials, len(fallback)),
	}
	for _, pl := range platforms {
		p.platforms[pl.Name] = pl
	}
	for k, v := range fallback {
		p.fallback[domain.NormalizePlatform(string(k))] = v
	}
	return p
}

// Publish sends imageURLs with caption to every account. One asset uses the
// single-media flow, more than one the carousel flow, none skips publishing.
// Platform failures are reported in the result, never returned as errors.
func (p *Publisher) Publish(ctx context.Context, accounts []domain.SocialAccount, brand domain.Brand, imageURLs []string, caption string) Outcome {
	if len(imageURLs) == 0 {
		return Outcome{Message: MsgNoAssets}
	}
	logger := util.LoggerFromContext(ctx)
	result := &domain.PostResult{Message: msgNoAccounts}
	if len(accounts) == 0 {
		return Outcome{Attempted: true, Message: result.Message, Result: result}
	}

	attempted := 0
	succeeded := 0
	messages := make([]string, 0, len(accounts))
	for _, account := range accounts {
		name := domain.NormalizePlatform(string(account.Platform))
		platform, ok := p.platforms[name]
		if !ok {
			logger.Warn("skipping unknown platform", "platform", account.Platform)
			result.Platforms = append(result.Platforms, domain.PlatformResult{Platform: account.Platform, Skipped: true, Message: msgUnknown})
			continue
		}
		attempted++
		pr := p.publishTo(ctx, platform, p.credentials(name, brand), imageURLs, caption)
		if pr.Success {
			succeeded++
			logger.Info("published post", "platform", name, "media_id", pr.MediaID)
		} else {
			logger.Warn("publish failed", "platform", name, "message", pr.Message)
		}
		result.Platforms = append(result.Platforms, pr)
		messages = append(messages, pr.Message)
	}

	if attempted == 0 {
		result.Message = msgNoSupported
		return Outcome{Attempted: true, Message: result.Message, Result: result}
	}
	result.Success = succeeded == attempted
	result.Message = strings.Join(messages, " ")
	return Outcome{Attempted: true, Message: result.Message, Result: result}
}

func (p *Publisher) credentials(platform domain.Platform, brand domain.Brand) Credentials {
	fallback := p.fallback[platform]
	stored, _ := brand.Credentials(platform)
	return Credentials{
		AccessToken: firstNonEmpty(stored.AccessToken, fallback.AccessToken),
		AccountID:   firstNonEmpty(stored.AccountID, fallback.AccountID),
		Username:    firstNonEmpty(stored.Username, fallback.Username),
	}
}

func (p *Publisher) publishTo(ctx context.Context, platform Platform, creds Credentials, imageURLs []string, caption string) domain.PlatformResult {
	res := domain.PlatformResult{Platform: platform.Name}
	label := platform.Label
	if strings.TrimSpace(creds.AccessToken) == "" || strings.TrimSpace(creds.AccountID) == "" {
		res.Message = fmt.Sprintf("Missing %s credentials.", label)
		return res
	}
	api := platform.API

	if len(imageURLs) == 1 {
		creationID, err := api.CreateMedia(ctx, creds, MediaRequest{ImageURL: imageURLs[0], Caption: caption})
		if err != nil {
			res.Message = fmt.Sprintf("Failed to create %s media object: %v", label, err)
			return res
		}
		mediaID, err := api.PublishMedia(ctx, creds, creationID)
		if err != nil {
			res.Message = fmt.Sprintf("Failed to publish %s post: %v", label, err)
			return res
		}
		res.Success, res.MediaID = true, mediaID
		res.Message = fmt.Sprintf("Posted single image to %s.", label)
		return res
	}

	children := make([]string, 0, len(imageURLs))
	for i, u := range imageURLs {
		childID, err := api.CreateMedia(ctx, creds, MediaRequest{ImageURL: u, CarouselItem: true})
		if err != nil {
			res.Message = fmt.Sprintf("Failed to create %s carousel item %d of %d: %v", label, i+1, len(imageURLs), err)
			return res
		}
		children = append(children, childID)
	}
	containerID, err := api.CreateMedia(ctx, creds, MediaRequest{Caption: caption, Children: children})
	if err != nil {
		res.Message = fmt.Sprintf("Failed to create %s carousel container: %v", label, err)
		return res
	}
	mediaID, err := api.PublishMedia(ctx, creds, containerID)
	if err != nil {
		res.Message = fmt.Sprintf("Failed to publish %s carousel: %v", label, err)
		return res
	}
	res.Success, res.MediaID = true, mediaID
	res.Message = fmt.Sprintf("Posted carousel to %s.", label)
	return res
}

// Caption joins comment and hashtags with single spaces. Each hashtag gets a
// leading '#'; empty parts are dropped.
func Caption(comment string, hashtags []string) string {
	parts := make([]string, 0, len(hashtags)+1)
	if c := strings.TrimSpace(comment); c != "" {
		parts = append(parts, c)
	}
	for _, tag := range hashtags {
		tag = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tag), "#"))
		if tag == "" {
			continue
		}
		parts = append(parts, "#"+tag)
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
