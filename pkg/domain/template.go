package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type ContentType string

const (
	ContentText   ContentType = "text"
	ContentImage  ContentType = "image"
	ContentImages ContentType = "images"
)

// Template is a stored content generation template.
type Template struct {
	ID       string           `json:"id"`
	BrandID  string           `json:"brandId"`
	Info     TemplateInfo     `json:"templateInfo"`
	Settings TemplateSettings `json:"templateSettings"`
}

type TemplateInfo struct {
	Name           string                  `json:"name,omitempty"`
	Description    string                  `json:"description,omitempty"`
	SocialAccounts []TemplateSocialAccount `json:"socialAccounts,omitempty"`
}

type TemplateSocialAccount struct {
	Platform Platform `json:"platform"`
}

type TemplateSettings struct {
	PromptTemplate *PromptTemplate `json:"promptTemplate,omitempty"`
	ContentItem    *ContentItem    `json:"contentItem,omitempty"`
}

// ContentTypeOrDefault returns the declared content type, or text when none is set.
func (s TemplateSettings) ContentTypeOrDefault() ContentType {
	if s.ContentItem == nil || strings.TrimSpace(string(s.ContentItem.ContentType)) == "" {
		return ContentText
	}
	return s.ContentItem.ContentType
}

type PromptTemplate struct {
	SystemPrompt string           `json:"systemPrompt,omitempty"`
	UserPrompt   string           `json:"userPrompt"`
	Model        string           `json:"model,omitempty"`
	Temperature  *float64         `json:"temperature,omitempty"`
	MaxTokens    *int             `json:"maxTokens,omitempty"`
	Variables    []PromptVariable `json:"variables,omitempty"`
}

type PromptVariable struct {
	Name   string   `json:"name"`
	Values []string `json:"values,omitempty"`
}

type ContentItem struct {
	ContentType    ContentType     `json:"contentType"`
	ImageTemplate  *ImageTemplate  `json:"imageTemplate,omitempty"`
	ImagesTemplate *ImagesTemplate `json:"imagesTemplate,omitempty"`
}

type ImagesTemplate struct {
	// Entries may be null in stored documents.
	ImageTemplates []*ImageTemplate `json:"imageTemplates"`
}

// ImageTemplate is the per-image style definition used by the compositor.
type ImageTemplate struct {
	AspectRatio string       `json:"aspectRatio,omitempty"`
	MediaType   string       `json:"mediaType,omitempty"`
	SetURL      string       `json:"setUrl,omitempty"`
	VisualStyle *VisualStyle `json:"visualStyleObj,omitempty"`
}

// Theme returns the first declared theme, or nil.
func (t ImageTemplate) Theme() *Theme {
	if t.VisualStyle == nil || len(t.VisualStyle.Themes) == 0 {
		return nil
	}
	return &t.VisualStyle.Themes[0]
}

type VisualStyle struct {
	Themes []Theme `json:"themes"`
}

type Theme struct {
	BackgroundColor string      `json:"backgroundColor,omitempty"`
	TextStyle       *TextStyle  `json:"textStyle,omitempty"`
	OverlayBox      *OverlayBox `json:"overlayBox,omitempty"`
}

type OverlayBox struct {
	Color            string   `json:"color,omitempty"`
	Transparency     *float64 `json:"transparency,omitempty"`
	VerticalLocation string   `json:"verticalLocation,omitempty"`
}

type TextStyle struct {
	Font         *Font    `json:"font,omitempty"`
	Alignment    string   `json:"alignment,omitempty"`
	Transparency *float64 `json:"transparency,omitempty"`
	Outline      *Outline `json:"outline,omitempty"`
}

type Font struct {
	Family string   `json:"family,omitempty"`
	Size   FontSize `json:"size,omitempty"`
	Weight string   `json:"weight,omitempty"`
	Style  string   `json:"style,omitempty"`
	Color  string   `json:"color,omitempty"`
}

type Outline struct {
	Color string  `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
}

// FontSize accepts 48, "48" or "48px" and stores the leading integer in pixels.
type FontSize int

func (f *FontSize) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FontSize(leadingInt(s))
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("font size: %w", err)
	}
	*f = FontSize(int(n))
	return nil
}

func (f FontSize) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(f))), nil
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
