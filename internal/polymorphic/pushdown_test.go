package polymorphic

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rpattn/polyrel/internal/domain"
)

func TestPushdownRewritesNestedPredicate(t *testing.T) {
	svc := newTestService(t, newFakeDocuments(fixtureRows()))

	got := svc.Pushdown(context.Background(), articleType, domain.FilterTree{
		"owner": map[string]any{"name": map[string]any{"$eq": "Ann"}},
	})

	want := PushdownResult{
		Filters:   domain.FilterTree{"documentId": map[string]any{"$in": []any{"e1", "e3"}}},
		Rewritten: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("pushdown mismatch (-want +got):\n%s", diff)
	}
}

func TestPushdownKeepsOrdinaryPredicates(t *testing.T) {
	svc := newTestService(t, newFakeDocuments(fixtureRows()))

	got := svc.Pushdown(context.Background(), articleType, domain.FilterTree{
		"owner": map[string]any{"name": map[string]any{"$eq": "Ann"}},
		"title": map[string]any{"$ne": "Again"},
	})

	want := domain.FilterTree{
		"title":      map[string]any{"$ne": "Again"},
		"documentId": map[string]any{"$in": []any{"e1"}},
	}
	if diff := cmp.Diff(want, got.Filters); diff != "" {
		t.Fatalf("rewritten filter mismatch (-want +got):\n%s", diff)
	}
}

func TestPushdownPassesThroughOrdinaryFilters(t *testing.T) {
	store := newFakeDocuments(fixtureRows())
	svc := newTestService(t, store)

	filters := domain.FilterTree{"title": "Hello"}
	got := svc.Pushdown(context.Background(), articleType, filters)
	if got.Rewritten || got.Empty {
		t.Fatalf("expected pass-through, got %+v", got)
	}
	if diff := cmp.Diff(filters, got.Filters); diff != "" {
		t.Fatalf("filter changed (-want +got):\n%s", diff)
	}
	if store.calls(articleType) != 0 {
		t.Fatalf("expected no scan for ordinary filters")
	}
}

func TestPushdownEmptyShortCircuit(t *testing.T) {
	svc := newTestService(t, newFakeDocuments(fixtureRows()))

	got := svc.Pushdown(context.Background(), articleType, domain.FilterTree{
		"owner": map[string]any{"name": map[string]any{"$eq": "Zed"}},
	})
	if !got.Empty {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestPushdownFailsOpen(t *testing.T) {
	store := newFakeDocuments(fixtureRows())
	store.failMany[articleType] = errors.New("connection refused")
	svc := newTestService(t, store)

	filters := domain.FilterTree{"owner": map[string]any{"name": "Ann"}}
	got := svc.Pushdown(context.Background(), articleType, filters)
	if got.Empty || got.Rewritten {
		t.Fatalf("expected fail-open result, got %+v", got)
	}
	if diff := cmp.Diff(filters, got.Filters); diff != "" {
		t.Fatalf("expected original filter (-want +got):\n%s", diff)
	}

	store.failMany = map[string]error{}
	store.failOne = errors.New("connection refused")
	got = svc.Pushdown(context.Background(), articleType, filters)
	if got.Rewritten || got.Empty {
		t.Fatalf("expected target resolution failure to fail open, got %+v", got)
	}
}

func TestPushdownIntersectsIdentityConstraint(t *testing.T) {
	svc := newTestService(t, newFakeDocuments(fixtureRows()))
	ctx := context.Background()
	ann := map[string]any{"name": map[string]any{"$eq": "Ann"}}

	got := svc.Pushdown(ctx, articleType, domain.FilterTree{
		"owner":      ann,
		"documentId": map[string]any{"$in": []any{"e3", "e2"}},
	})
	want := domain.FilterTree{"documentId": map[string]any{"$in": []any{"e3"}}}
	if diff := cmp.Diff(want, got.Filters); diff != "" {
		t.Fatalf("intersection mismatch (-want +got):\n%s", diff)
	}

	got = svc.Pushdown(ctx, articleType, domain.FilterTree{"owner": ann, "documentId": "e2"})
	if !got.Empty {
		t.Fatalf("expected disjoint identity constraint to yield an empty result, got %+v", got)
	}
}

func TestPushdownOperatorAndLiteralPredicates(t *testing.T) {
	rows := fixtureRows()
	rows[articleType][0]["sources"] = []any{pointerTo(authorType, "a2")}
	rows[articleType] = append(rows[articleType], domain.Entity{"id": float64(4), "documentId": "e4", "title": "Orphan"})
	svc := newTestService(t, newFakeDocuments(rows))
	ctx := context.Background()

	cases := []struct {
		name    string
		filters domain.FilterTree
		want    []any
	}{
		{"not null", domain.FilterTree{"owner": map[string]any{"$notNull": true}}, []any{"e1", "e2", "e3"}},
		{"literal id", domain.FilterTree{"owner": "a2"}, []any{"e2"}},
		{"and across fields", domain.FilterTree{
			"owner":   map[string]any{"name": "Ann"},
			"sources": "a2",
		}, []any{"e1"}},
	}
	for _, tc := range cases {
		got := svc.Pushdown(ctx, articleType, tc.filters)
		want := domain.FilterTree{"documentId": map[string]any{"$in": tc.want}}
		if diff := cmp.Diff(want, got.Filters); diff != "" {
			t.Fatalf("%s: filter mismatch (-want +got):\n%s", tc.name, diff)
		}
	}
}

func TestPushdownAbsentPointerFailsPredicate(t *testing.T) {
	rows := fixtureRows()
	rows[articleType] = append(rows[articleType], domain.Entity{"id": float64(4), "documentId": "e4", "title": "Orphan"})
	rows[authorType] = append(rows[authorType], domain.Entity{"id": "a3", "documentId": "a3", "name": "Cy"})
	svc := newTestService(t, newFakeDocuments(rows))
	ctx := context.Background()

	for _, filters := range []domain.FilterTree{
		{"owner": map[string]any{"$null": true}},
		{"sources": map[string]any{"$null": true}},
		{"sources": map[string]any{"name": map[string]any{"$null": true}}},
	} {
		if got := svc.Pushdown(ctx, articleType, filters); !got.Empty {
			t.Fatalf("expected %v to match no entry, got %+v", filters, got)
		}
	}

	// an author without articles fails every predicate on the inverse field
	got := svc.Pushdown(ctx, authorType, domain.FilterTree{"articles": map[string]any{"$null": true}})
	if !got.Empty {
		t.Fatalf("expected no author to qualify, got %+v", got)
	}
}

func TestPushdownInverseField(t *testing.T) {
	svc := newTestService(t, newFakeDocuments(fixtureRows()))

	got := svc.Pushdown(context.Background(), authorType, domain.FilterTree{
		"articles": map[string]any{"title": map[string]any{"$containsi": "world"}},
	})
	want := domain.FilterTree{"documentId": map[string]any{"$in": []any{"a2"}}}
	if diff := cmp.Diff(want, got.Filters); diff != "" {
		t.Fatalf("inverse pushdown mismatch (-want +got):\n%s", diff)
	}
}
