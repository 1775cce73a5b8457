package app

import (
	"context"
	"fmt"
	"strings"

	"autogensocial/internal/util"
	"autogensocial/pkg/domain"
)

const (
	maxAssets        = 20
	assetContainer   = "images"
	assetContentType = "image/png"
	unknownUser      = "unknownUser"
)

// Renderer draws one image for a style template and a text.
type Renderer interface {
	Render(ctx context.Context, tpl domain.ImageTemplate, text string) ([]byte, error)
}

// assetPlan pairs generated text items with style templates. A single image
// template is a plan of one.
type assetPlan struct {
	quotes []string
	styles []*domain.ImageTemplate
}

func planAssets(contentType domain.ContentType, item *domain.ContentItem, content domain.GeneratedContent) (assetPlan, bool) {
	if item == nil {
		return assetPlan{}, false
	}
	switch contentType {
	case domain.ContentImage:
		return assetPlan{
			quotes: []string{content.Quote},
			styles: []*domain.ImageTemplate{item.ImageTemplate},
		}, true
	case domain.ContentImages:
		plan := assetPlan{quotes: make([]string, 0, len(content.Images))}
		for _, img := range content.Images {
			plan.quotes = append(plan.quotes, img.Quote)
		}
		if item.ImagesTemplate != nil {
			plan.styles = item.ImagesTemplate.ImageTemplates
		}
		return plan, true
	default:
		return assetPlan{}, false
	}
}

// size is the number of loop iterations: min(items, styles, 20).
func (p assetPlan) size() int {
	return min(len(p.quotes), len(p.styles), maxAssets)
}

// style returns the style for index i, falling back to the first style.
func (p assetPlan) style(i int) *domain.ImageTemplate {
	if i < len(p.styles) && p.styles[i] != nil {
		return p.styles[i]
	}
	if len(p.styles) > 0 {
		return p.styles[0]
	}
	return nil
}

func blobName(userID, brandID, postID string, seq int) string {
	if strings.TrimSpace(userID) == "" {
		userID = unknownUser
	}
	return fmt.Sprintf("%s/%s/%s/%s-%d.png", userID, brandID, postID, postID, seq)
}

// generateAssets renders and uploads each planned image in order. Any render
// or upload failure fails the whole stage.
func (a *App) generateAssets(ctx context.Context, plan assetPlan, userID string, post domain.PostRecord) ([]string, error) {
	logger := util.LoggerFromContext(ctx)
	n := plan.size()
	urls := make([]string, 0, n)
	for i := 0; i < n; i++ {
		quote := plan.quotes[i]
		style := plan.style(i)
		if strings.TrimSpace(quote) == "" || style == nil {
			logger.Info("skipping image with missing quote or style", "index", i)
			continue
		}
		data, err := a.renderer.Render(ctx, *style, quote)
		if err != nil {
			return nil, fmt.Errorf("%w: render image %d: %v", ErrAssetGeneration, i+1, err)
		}
		name := blobName(userID, post.BrandID, post.ID, i+1)
		url, err := a.objects.Upload(ctx, assetContainer, name, data, assetContentType)
		if err != nil {
			return nil, fmt.Errorf("%w: upload image %d: %v", ErrAssetGeneration, i+1, err)
		}
		logger.Info("uploaded image", "index", i, "blob", name)
		urls = append(urls, url)
	}
	a.metrics.AssetsUploaded(len(urls))
	return urls, nil
}
