package main

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func repoDoc(t *testing.T) openAPIDoc {
	t.Helper()
	_, file, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(file), "..", "..", "api", "orchestrator-openapi.yaml")
	doc, err := loadDoc(path)
	if err != nil {
		t.Fatalf("load doc: %v", err)
	}
	return doc
}

func TestRepositorySpecPasses(t *testing.T) {
	if err := checkDoc(repoDoc(t)); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestPostStatusEnumMustMatchDomain(t *testing.T) {
	doc := repoDoc(t)
	status := doc.Components.Schemas["PostStatus"]
	status.Enum = []string{"generated", "posted"}
	doc.Components.Schemas["PostStatus"] = status
	err := checkDoc(doc)
	if err == nil || !strings.Contains(err.Error(), "PostStatus enum mismatch") {
		t.Fatalf("expected enum mismatch, got %v", err)
	}
}

func TestMissingPathFails(t *testing.T) {
	doc := repoDoc(t)
	delete(doc.Paths, "/api/posts/{postId}")
	err := checkDoc(doc)
	if err == nil || !strings.Contains(err.Error(), "/api/posts/{postId}") {
		t.Fatalf("expected missing path error, got %v", err)
	}
}

func TestErrorResponseRequiresCode(t *testing.T) {
	doc := repoDoc(t)
	errResp := doc.Components.Schemas["ErrorResponse"]
	errResp.Required = []string{"error"}
	doc.Components.Schemas["ErrorResponse"] = errResp
	if err := checkDoc(doc); err == nil {
		t.Fatalf("expected error for missing required code")
	}
}
