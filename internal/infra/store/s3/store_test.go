package s3

import (
	"context"
	"strings"
	"testing"

	"taskbridge/internal/store/core"
	"taskbridge/internal/store/storetest"
	"taskbridge/pkg/domain"
)

func TestS3StoreContract(t *testing.T) {
	storetest.Run(t, core.DriverS3, func(t *testing.T) core.Store {
		return NewMockForTests()
	})
}

func TestS3StoreObjectLayout(t *testing.T) {
	st, fake := newMock()
	if err := st.Put(context.Background(), domain.Record{ID: "a1", Task: "buy milk"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	body, ok := fake.get("tasks/a1.json")
	if !ok {
		t.Fatalf("expected object at tasks/a1.json, have %v", fake.objects)
	}
	if !strings.Contains(string(body), `"task":"buy milk"`) {
		t.Fatalf("unexpected object body %s", body)
	}
}

func TestS3StoreListSkipsForeignKeysAndPaginates(t *testing.T) {
	st, fake := newMock()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b", "d"} {
		if err := st.Put(ctx, domain.Record{ID: id, Task: "t-" + id}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	fake.put("tasks/README.txt", []byte("not a record"))
	fake.put("other/x.json", []byte(`{"task":"elsewhere"}`))
	got, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 records, got %+v", got)
	}
	for i, id := range []string{"a", "b", "c", "d"} {
		if got[i].ID != id || got[i].Task != "t-"+id {
			t.Fatalf("unexpected record at %d: %+v", i, got[i])
		}
	}
}

func TestS3StoreKeepsIdsUnderPrefix(t *testing.T) {
	st, fake := newMock()
	ctx := context.Background()
	fake.put("tasks/sub/x.json", []byte(`{"task":"nested"}`))
	fake.put("other/x.json", []byte(`{"task":"elsewhere"}`))

	for _, id := range []string{"sub/x", "../other/x"} {
		existed, err := st.Delete(ctx, id)
		if err != nil {
			t.Fatalf("delete %q: %v", id, err)
		}
		if existed {
			t.Fatalf("delete %q reached an object outside the record set", id)
		}
	}
	if _, ok := fake.get("tasks/sub/x.json"); !ok {
		t.Fatalf("nested object was deleted")
	}
	if _, ok := fake.get("other/x.json"); !ok {
		t.Fatalf("foreign object was deleted")
	}

	if err := st.Put(ctx, domain.Record{ID: "a/b", Task: "slash"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := fake.get("tasks/a%2Fb.json"); !ok {
		t.Fatalf("expected escaped key, have %v", fake.objects)
	}
	got, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a/b" || got[0].Task != "slash" {
		t.Fatalf("unexpected records: %+v", got)
	}
	existed, err := st.Delete(ctx, "a/b")
	if err != nil || !existed {
		t.Fatalf("delete escaped id: existed=%v err=%v", existed, err)
	}
}

func TestS3StoreDeniedIsUnavailable(t *testing.T) {
	st, fake := newMock()
	fake.denied = true
	err := st.Put(context.Background(), domain.Record{ID: "a1", Task: "x"})
	if !core.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if _, err := st.Delete(context.Background(), "a1"); !core.IsUnavailable(err) {
		t.Fatalf("expected unavailable delete error, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
}
