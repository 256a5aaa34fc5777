package dynamodb

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"taskbridge/internal/store/core"
	"taskbridge/internal/store/storetest"
	"taskbridge/pkg/domain"
)

func TestDynamoDBStoreContract(t *testing.T) {
	storetest.Run(t, core.DriverDynamoDB, func(_ *testing.T) core.Store { return NewMockForTests() })
}

func TestDynamoDBStoreItemLayout(t *testing.T) {
	api := NewFakeAPI()
	s, err := NewWithClient(api, "todos")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Put(context.Background(), domain.Record{ID: "a1", Task: "buy milk"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	item := api.items["a1"]
	if v, ok := item["task"].(*types.AttributeValueMemberS); !ok || v.Value != "buy milk" {
		t.Fatalf("unexpected task attribute: %#v", item["task"])
	}
	if v, ok := item["done"].(*types.AttributeValueMemberBOOL); !ok || v.Value {
		t.Fatalf("unexpected done attribute: %#v", item["done"])
	}
	if len(item) != 3 {
		t.Fatalf("expected exactly id/task/done, got %d attributes", len(item))
	}
}

func TestDynamoDBStoreReadsStringDone(t *testing.T) {
	api := NewFakeAPI()
	api.Seed(map[string]types.AttributeValue{
		"id":   &types.AttributeValueMemberS{Value: "legacy"},
		"task": &types.AttributeValueMemberS{Value: "old row"},
		"done": &types.AttributeValueMemberS{Value: "true"},
	})
	s, _ := NewWithClient(api, "todos")
	recs, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || !recs[0].Done || recs[0].Task != "old row" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestDynamoDBStoreListPaginates(t *testing.T) {
	api := NewFakeAPI()
	api.PageSize = 1
	s, _ := NewWithClient(api, "todos")
	for _, id := range []string{"c", "a", "b"} {
		if err := s.Put(context.Background(), domain.Record{ID: id, Task: id}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	recs, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 3 || recs[0].ID != "a" || recs[2].ID != "c" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	scans := 0
	for _, c := range api.Calls {
		if c == "Scan" {
			scans++
		}
	}
	if scans < 3 {
		t.Fatalf("expected paginated scans, got %d", scans)
	}
}

func TestDynamoDBStoreThrottlingIsUnavailable(t *testing.T) {
	api := NewFakeAPI()
	api.Err = &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException", Message: "slow down"}
	s, _ := NewWithClient(api, "todos")
	err := s.Put(context.Background(), domain.Record{ID: "a1", Task: "x"})
	if !core.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if !strings.Contains(err.Error(), "ProvisionedThroughputExceededException") {
		t.Fatalf("expected error code in message: %v", err)
	}
	if _, err := s.Delete(context.Background(), "a1"); !core.IsUnavailable(err) {
		t.Fatalf("expected unavailable delete, got %v", err)
	}
}

func TestNewRequiresTable(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty table")
	}
	if _, err := NewWithClient(nil, "todos"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
