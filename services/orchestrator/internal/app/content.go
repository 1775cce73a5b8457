package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"autogensocial/pkg/domain"
)

// parseContent requires the completion to be a single JSON object.
// Field types are read leniently; only the object shape is enforced.
func parseContent(raw string) (domain.GeneratedContent, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 || data[0] != '{' {
		return domain.GeneratedContent{}, fmt.Errorf("%w: completion is not a JSON object", ErrMalformedContent)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return domain.GeneratedContent{}, fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}
	out := domain.GeneratedContent{Raw: json.RawMessage(data)}
	out.Quote = stringField(fields["quote"])
	out.Comment = stringField(fields["comment"])
	out.Hashtags = hashtags(fields["hashtags"])
	if rawImages, ok := fields["images"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(rawImages, &items); err == nil {
			out.Images = make([]domain.ImageQuote, 0, len(items))
			for _, item := range items {
				var obj map[string]json.RawMessage
				if json.Unmarshal(item, &obj) != nil {
					out.Images = append(out.Images, domain.ImageQuote{})
					continue
				}
				out.Images = append(out.Images, domain.ImageQuote{Quote: stringField(obj["quote"])})
			}
		}
	}
	return out, nil
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// hashtags accepts a list of strings or a single space separated string.
func hashtags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.Fields(s)
	}
	return nil
}
