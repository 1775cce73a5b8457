package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Brand owns templates and carries the credentials used for publishing.
type Brand struct {
	ID             string              `json:"id"`
	UserID         string              `json:"userId,omitempty"`
	Name           string              `json:"name,omitempty"`
	SocialAccounts BrandSocialAccounts `json:"socialAccounts,omitempty"`
}

// PlatformCredentials are the per-platform values a brand stores for publishing.
type PlatformCredentials struct {
	AccessToken string `json:"accessToken,omitempty"`
	Username    string `json:"username,omitempty"`
	AccountID   string `json:"accountId,omitempty"`
}

func (c PlatformCredentials) Empty() bool {
	return strings.TrimSpace(c.AccessToken) == "" && strings.TrimSpace(c.AccountID) == "" && strings.TrimSpace(c.Username) == ""
}

// BrandSocialAccounts is keyed by platform. Stored documents use either
// {"instagram": {...}} or the legacy [{"platform": "instagram", "account": {...}}].
type BrandSocialAccounts map[Platform]PlatformCredentials

type legacyBrandAccount struct {
	Platform Platform            `json:"platform"`
	Account  PlatformCredentials `json:"account"`
}

func (b *BrandSocialAccounts) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}
	out := BrandSocialAccounts{}
	switch data[0] {
	case '[':
		var items []legacyBrandAccount
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("brand social accounts: %w", err)
		}
		for _, item := range items {
			p := NormalizePlatform(string(item.Platform))
			if p == "" {
				continue
			}
			if _, ok := out[p]; ok {
				continue
			}
			out[p] = item.Account
		}
	case '{':
		var m map[string]PlatformCredentials
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("brand social accounts: %w", err)
		}
		for k, v := range m {
			p := NormalizePlatform(k)
			if p == "" {
				continue
			}
			out[p] = v
		}
	default:
		return fmt.Errorf("brand social accounts: unexpected json %q", string(data[:1]))
	}
	*b = out
	return nil
}

// Credentials returns the stored credentials for platform, if any.
func (b Brand) Credentials(platform Platform) (PlatformCredentials, bool) {
	if b.SocialAccounts == nil {
		return PlatformCredentials{}, false
	}
	c, ok := b.SocialAccounts[NormalizePlatform(string(platform))]
	if !ok || c.Empty() {
		return PlatformCredentials{}, false
	}
	return c, true
}

func NormalizePlatform(v string) Platform {
	return Platform(strings.ToLower(strings.TrimSpace(v)))
}
