package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"autogensocial/pkg/domain"
)

type openAPIDoc struct {
	Paths      map[string]map[string]any `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Enum       []string          `yaml:"enum"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

// requiredOperations maps each path to the methods the orchestrator serves.
var requiredOperations = map[string][]string{
	"/api/orchestrate-content":              {"post"},
	"/api/orchestrateContent":               {"post"},
	"/api/orchestrate-content/jobs":         {"post"},
	"/api/orchestrate-content/jobs/{jobId}": {"get"},
	"/api/posts":                            {"get"},
	"/api/posts/{postId}":                   {"get"},
	"/healthz":                              {"get"},
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <orchestrator-openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	doc, err := loadDoc(os.Args[1])
	if err != nil {
		exitErr(err)
	}
	if err := checkDoc(doc); err != nil {
		exitErr(err)
	}
	fmt.Println("OpenAPI consistency check passed.")
}

func checkDoc(doc openAPIDoc) error {
	if err := validatePaths(doc); err != nil {
		return err
	}
	errResp, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		return err
	}
	if err := validateErrorResponse(errResp); err != nil {
		return err
	}
	status, err := getSchema(doc, "PostStatus")
	if err != nil {
		return err
	}
	if err := validatePostStatus(status); err != nil {
		return err
	}
	orchestrate, err := getSchema(doc, "OrchestrateResponse")
	if err != nil {
		return err
	}
	if err := validateOrchestrateResponse(orchestrate); err != nil {
		return err
	}
	post, err := getSchema(doc, "PostRecord")
	if err != nil {
		return err
	}
	return requireFields("PostRecord", post, "id", "brandId", "templateId", "status", "socialAccounts", "createdAt", "updatedAt")
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validatePaths(doc openAPIDoc) error {
	paths := make([]string, 0, len(requiredOperations))
	for p := range requiredOperations {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		ops, ok := doc.Paths[p]
		if !ok {
			return fmt.Errorf("path %q missing", p)
		}
		for _, method := range requiredOperations[p] {
			if _, ok := ops[method]; !ok {
				return fmt.Errorf("path %q missing %s operation", p, method)
			}
		}
	}
	return nil
}

func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	if err := requireFields("ErrorResponse", s, "error", "code"); err != nil {
		return err
	}
	for _, field := range []string{"error", "code", "requestId", "postId"} {
		prop, ok := s.Properties[field]
		if !ok || prop.Type != "string" {
			return fmt.Errorf("ErrorResponse.%s must be string", field)
		}
	}
	return nil
}

func validatePostStatus(s schema) error {
	if s.Type != "string" {
		return errors.New("PostStatus must be string")
	}
	want := make([]string, 0, len(domain.PostStatuses))
	for _, st := range domain.PostStatuses {
		want = append(want, string(st))
	}
	got := append([]string(nil), s.Enum...)
	sort.Strings(want)
	sort.Strings(got)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("PostStatus enum mismatch: %v vs %v", got, want)
	}
	return nil
}

func validateOrchestrateResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("OrchestrateResponse must be object")
	}
	if err := requireFields("OrchestrateResponse", s, "postId", "status"); err != nil {
		return err
	}
	if ref := strings.TrimSpace(s.Properties["status"].Ref); ref != "#/components/schemas/PostStatus" {
		return errors.New("OrchestrateResponse.status must reference PostStatus")
	}
	images, ok := s.Properties["imageUrls"]
	if !ok || images.Type != "array" || images.Items == nil || images.Items.Type != "string" {
		return errors.New("OrchestrateResponse.imageUrls must be array of string")
	}
	if ref := strings.TrimSpace(s.Properties["postResult"].Ref); ref != "#/components/schemas/PostResult" {
		return errors.New("OrchestrateResponse.postResult must reference PostResult")
	}
	return nil
}

func requireFields(name string, s schema, fields ...string) error {
	required := makeSet(s.Required)
	for _, field := range fields {
		if !required[field] {
			return fmt.Errorf("%s.required must include %q", name, field)
		}
		if _, ok := s.Properties[field]; !ok {
			return fmt.Errorf("%s.properties missing %q", name, field)
		}
	}
	return nil
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
