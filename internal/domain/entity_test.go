package domain

import "testing"

func TestDedupeByIdentityKeepsFirst(t *testing.T) {
	draft := Entity{"id": 1, "documentId": "doc-1"}
	published := Entity{"id": 2, "documentId": "doc-1", "publishedAt": "2024-01-01T00:00:00Z"}
	other := Entity{"id": 3, "documentId": "doc-2"}
	anonymousA := Entity{"id": 4}
	anonymousB := Entity{"id": 4}

	got := DedupeByIdentity([]Entity{draft, published, other, anonymousA, anonymousB})
	if len(got) != 4 {
		t.Fatalf("expected 4 entities after dedupe, got %d: %v", len(got), got)
	}
	if got[0]["id"] != 1 {
		t.Fatalf("expected first occurrence of doc-1 to survive, got %v", got[0])
	}
	if got[2]["id"] != 4 || got[3]["id"] != 4 {
		t.Fatalf("expected entities without documentId to be kept, got %v", got)
	}
}

func TestLookupIDFallsBackToRowKey(t *testing.T) {
	if id, ok := LookupID(Entity{"id": float64(7)}); !ok || id != "7" {
		t.Fatalf("expected row key fallback 7, got %q (%v)", id, ok)
	}
	if id, ok := LookupID(Entity{"id": 7, "documentId": "abc"}); !ok || id != "abc" {
		t.Fatalf("expected documentId to win, got %q", id)
	}
	if _, ok := LookupID(Entity{"name": "x"}); ok {
		t.Fatalf("expected no identity for entity without keys")
	}
}

func TestIdentityStub(t *testing.T) {
	stub := IdentityStub(Entity{"id": 9, "documentId": "doc-9", "title": "x"})
	if len(stub) != 1 || stub["id"] != "doc-9" {
		t.Fatalf("unexpected stub %v", stub)
	}
}

func TestStringifyNumbers(t *testing.T) {
	cases := map[any]string{
		float64(1000000): "1000000",
		float64(1.5):     "1.5",
		int64(42):        "42",
		"x":              "x",
		nil:              "",
		true:             "true",
	}
	for in, want := range cases {
		if got := Stringify(in); got != want {
			t.Fatalf("Stringify(%#v) = %q, want %q", in, got, want)
		}
	}
}

func TestCloneEntityIsDeep(t *testing.T) {
	source := Entity{"nested": map[string]any{"x": 1}, "list": []any{map[string]any{"y": 2}}}
	clone := CloneEntity(source)

	clone["nested"].(map[string]any)["x"] = 100
	clone["list"].([]any)[0].(map[string]any)["y"] = 200

	if source["nested"].(map[string]any)["x"] != 1 {
		t.Fatalf("expected nested map to be copied")
	}
	if source["list"].([]any)[0].(map[string]any)["y"] != 2 {
		t.Fatalf("expected list elements to be copied")
	}
}
