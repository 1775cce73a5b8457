package domain

import (
	"encoding/json"
	"testing"
)

func TestBrandSocialAccountsShapes(t *testing.T) {
	cases := map[string]string{
		"object": `{"id":"b","socialAccounts":{"instagram":{"accessToken":"tok","username":"acme"}}}`,
		"array":  `{"id":"b","socialAccounts":[{"platform":"INSTAGRAM","account":{"accessToken":"tok","username":"acme"}}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var b Brand
			if err := json.Unmarshal([]byte(raw), &b); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			creds, ok := b.Credentials(PlatformInstagram)
			if !ok || creds.AccessToken != "tok" || creds.Username != "acme" {
				t.Fatalf("credentials = %+v ok=%v", creds, ok)
			}
			if _, ok := b.Credentials(PlatformThreads); ok {
				t.Fatalf("unexpected threads credentials")
			}
		})
	}
}

func TestBrandSocialAccountsRejectsScalar(t *testing.T) {
	var b Brand
	if err := json.Unmarshal([]byte(`{"socialAccounts":"nope"}`), &b); err == nil {
		t.Fatalf("expected error for scalar socialAccounts")
	}
}

func TestEmptyCredentialsAreMissing(t *testing.T) {
	b := Brand{SocialAccounts: BrandSocialAccounts{PlatformInstagram: {}}}
	if _, ok := b.Credentials(PlatformInstagram); ok {
		t.Fatalf("empty credentials must count as missing")
	}
}

func TestFontSize(t *testing.T) {
	cases := map[string]FontSize{`48`: 48, `"48px"`: 48, `"36"`: 36, `null`: 0, `"large"`: 0, `52.7`: 52}
	for raw, want := range cases {
		var f Font
		if err := json.Unmarshal([]byte(`{"size":`+raw+`}`), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if f.Size != want {
			t.Fatalf("size(%s) = %d, want %d", raw, f.Size, want)
		}
	}
}

func TestContentTypeDefault(t *testing.T) {
	if got := (TemplateSettings{}).ContentTypeOrDefault(); got != ContentText {
		t.Fatalf("default content type = %s", got)
	}
	s := TemplateSettings{ContentItem: &ContentItem{ContentType: ContentImages}}
	if got := s.ContentTypeOrDefault(); got != ContentImages {
		t.Fatalf("content type = %s", got)
	}
}

func TestImagesTemplateAllowsNullEntries(t *testing.T) {
	raw := `{"imageTemplates":[{"aspectRatio":"portrait"},null]}`
	var it ImagesTemplate
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(it.ImageTemplates) != 2 || it.ImageTemplates[1] != nil {
		t.Fatalf("unexpected templates: %+v", it.ImageTemplates)
	}
}

func TestImageQuotesAreSeparateFromContentType(t *testing.T) {
	content := GeneratedContent{Images: []ImageQuote{{Quote: "one"}, {}}}
	if len(content.Images) != 2 || content.Images[0].Quote != "one" {
		t.Fatalf("images = %+v", content.Images)
	}
	if ContentImage != "image" {
		t.Fatalf("ContentImage = %q", ContentImage)
	}
}
