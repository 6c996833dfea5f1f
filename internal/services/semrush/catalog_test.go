package semrush

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"testing"
)

func TestFetchIssueCatalog_ResponseShapes(t *testing.T) {
	entry := func(id int, title string) map[string]interface{} {
		return map[string]interface{}{
			"id":             id,
			"title":          title,
			"description":    "What the issue means",
			"group":          "crawlability",
			"type":           "page",
			"recommendation": "How to fix it",
		}
	}

	tests := []struct {
		name    string
		payload interface{}
		wantIDs []int
	}{
		{
			"list under issues key",
			map[string]interface{}{"issues": []interface{}{entry(1, "Broken links"), entry(102, "Missing meta descriptions")}},
			[]int{1, 102},
		},
		{
			"bare list",
			[]interface{}{entry(1, "Broken links"), entry(216, "Missing H1")},
			[]int{1, 216},
		},
		{
			"id keyed map skips non-numeric keys",
			map[string]interface{}{
				"104":   map[string]interface{}{"title": "Missing title tags"},
				"bogus": map[string]interface{}{"title": "Not an issue"},
			},
			[]int{104},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/reports/v1/projects/12345/siteaudit/meta/issues" {
					t.Errorf("Unexpected path %s", r.URL.Path)
				}
				json.NewEncoder(w).Encode(tt.payload)
			}))

			defs, err := client.FetchIssueCatalog(context.Background(), "12345")
			if err != nil {
				t.Fatalf("FetchIssueCatalog failed: %v", err)
			}

			gotIDs := make([]int, 0, len(defs))
			for _, def := range defs {
				gotIDs = append(gotIDs, def.ID)
			}
			sort.Ints(gotIDs)
			if len(gotIDs) != len(tt.wantIDs) {
				t.Fatalf("Expected ids %v, got %v", tt.wantIDs, gotIDs)
			}
			for i, id := range tt.wantIDs {
				if gotIDs[i] != id {
					t.Fatalf("Expected ids %v, got %v", tt.wantIDs, gotIDs)
				}
			}
		})
	}
}

func TestFetchIssueCatalog_FieldMapping(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"issues": []interface{}{
				map[string]interface{}{
					"id":             1,
					"title":          "Broken internal links",
					"description":    "Links that lead to unreachable pages",
					"group":          "links",
					"type":           "page",
					"recommendation": "Fix or remove the link",
				},
			},
		})
	}))

	defs, err := client.FetchIssueCatalog(context.Background(), "12345")
	if err != nil {
		t.Fatalf("FetchIssueCatalog failed: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("Expected one definition, got %d", len(defs))
	}

	def := defs[0]
	if def.Title != "Broken internal links" {
		t.Errorf("Unexpected title %q", def.Title)
	}
	if def.Description != "Links that lead to unreachable pages" {
		t.Errorf("Unexpected description %q", def.Description)
	}
	if def.Group != "links" || def.IssueType != "page" {
		t.Errorf("Unexpected group/type: %q/%q", def.Group, def.IssueType)
	}
	if def.Recommendation != "Fix or remove the link" {
		t.Errorf("Unexpected recommendation %q", def.Recommendation)
	}
}

func TestFetchIssueCatalog_NoParsableIssues(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{})
	}))

	if _, err := client.FetchIssueCatalog(context.Background(), "12345"); err == nil {
		t.Error("Expected error for a catalog without parsable issues")
	}
}
