package polymorphic

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rpattn/polyrel/internal/domain"
)

func TestFindReverseDeduplicatesByIdentity(t *testing.T) {
	store := newFakeDocuments(map[string][]domain.Entity{
		articleType: {
			{"id": float64(1), "documentId": "doc-1", "title": "draft", "owner": pointerTo(authorType, "a1")},
			{"id": float64(2), "documentId": "doc-1", "title": "published", "owner": []any{pointerTo(authorType, "a1")}},
			{"id": float64(3), "title": "no identity", "owner": `[{"contentType":"t.author","id":"a1"}]`},
			{"id": float64(4), "documentId": "doc-2", "title": "other", "owner": pointerTo(authorType, "a2")},
			{"id": float64(5), "documentId": "doc-3", "title": "other type", "owner": pointerTo(orgType, "a1")},
		},
	})
	svc := newTestService(t, store)

	got := svc.FindReverse(context.Background(), domain.ReverseQuery{
		TargetModel:  articleType,
		TargetField:  "owner",
		LookupType:   authorType,
		LookupID:     "a1",
		DisplayField: "title",
	})

	var titles []string
	for _, entity := range got {
		titles = append(titles, entity["title"].(string))
	}
	want := []string{"draft", "no identity"}
	if diff := cmp.Diff(want, titles); diff != "" {
		t.Fatalf("reverse relations mismatch (-want +got):\n%s", diff)
	}
}

func TestFindReverseComparesIDsLoosely(t *testing.T) {
	store := newFakeDocuments(map[string][]domain.Entity{
		articleType: {
			{"id": float64(1), "documentId": "e1", "owner": map[string]any{"contentType": authorType, "id": float64(7)}},
		},
	})
	svc := newTestService(t, store)

	got := svc.FindReverse(context.Background(), domain.ReverseQuery{
		TargetModel: articleType,
		TargetField: "owner",
		LookupType:  authorType,
		LookupID:    "7",
	})
	if len(got) != 1 {
		t.Fatalf("expected numeric pointer id to match, got %v", got)
	}
}

func TestFindReverseProjection(t *testing.T) {
	store := newFakeDocuments(fixtureRows())
	svc := newTestService(t, store)
	ctx := context.Background()

	svc.FindReverse(ctx, domain.ReverseQuery{
		TargetModel: articleType, TargetField: "owner", LookupType: authorType, LookupID: "a1", DisplayField: "title",
	})
	want := []string{"id", "documentId", "owner", "title"}
	if diff := cmp.Diff(want, store.lastSelect[articleType]); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}

	svc.FindReverse(ctx, domain.ReverseQuery{
		TargetModel: articleType, TargetField: "owner", LookupType: authorType, LookupID: "a1", DisplayField: "headline",
	})
	want = []string{"id", "documentId", "owner"}
	if diff := cmp.Diff(want, store.lastSelect[articleType]); diff != "" {
		t.Fatalf("unknown display field must not be selected (-want +got):\n%s", diff)
	}
}

func TestFindReverseDegradesToEmpty(t *testing.T) {
	store := newFakeDocuments(fixtureRows())
	store.failMany[articleType] = errors.New("timeout")
	svc := newTestService(t, store)
	ctx := context.Background()

	got := svc.FindReverse(ctx, domain.ReverseQuery{TargetModel: articleType, TargetField: "owner", LookupType: authorType, LookupID: "a1"})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty result on store failure, got %v", got)
	}

	got = svc.FindReverse(ctx, domain.ReverseQuery{TargetModel: "t.unknown", TargetField: "owner", LookupType: authorType, LookupID: "a1"})
	if len(got) != 0 {
		t.Fatalf("expected empty result for unknown model, got %v", got)
	}
}
