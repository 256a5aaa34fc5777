package dynamodb

import (
	"context"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/juju/errors"
)

// NewMockForTests returns a Store backed by an in-memory fake of the DynamoDB
// API. Only PutItem, DeleteItem and Scan are modelled.
func NewMockForTests() *Store {
	s, _ := NewWithClient(NewFakeAPI(), "mock-table")
	return s
}

// FakeAPI is an in-memory stand-in for the DynamoDB client. Scan pages are
// PageSize items long to exercise pagination.
type FakeAPI struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	PageSize int
	// Err, when set, is returned by every call.
	Err   error
	Calls []string
}

// NewFakeAPI returns an empty fake table.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{items: make(map[string]map[string]types.AttributeValue), PageSize: 2}
}

// Seed stores a raw item, bypassing the Store encoder.
func (f *FakeAPI) Seed(av map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[keyOf(av)] = av
}

// PutItem implements API.
func (f *FakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "PutItem")
	if f.Err != nil {
		return nil, f.Err
	}
	key := keyOf(in.Item)
	if key == "" {
		return nil, errors.NotValidf("item without string id")
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem implements API.
func (f *FakeAPI) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "DeleteItem")
	if f.Err != nil {
		return nil, f.Err
	}
	key := keyOf(in.Key)
	old, ok := f.items[key]
	delete(f.items, key)
	out := &dynamodb.DeleteItemOutput{}
	if ok && in.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = old
	}
	return out, nil
}

// Scan implements API, paging by sorted key.
func (f *FakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "Scan")
	if f.Err != nil {
		return nil, f.Err
	}
	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	start := 0
	if in.ExclusiveStartKey != nil {
		last := keyOf(in.ExclusiveStartKey)
		start = sort.SearchStrings(keys, last)
		if start < len(keys) && keys[start] == last {
			start++
		}
	}
	size := f.PageSize
	if size <= 0 {
		size = len(keys)
	}
	end := start + size
	if end > len(keys) {
		end = len(keys)
	}
	out := &dynamodb.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, f.items[k])
	}
	out.Count = int32(len(out.Items))
	out.ScannedCount = out.Count
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: keys[end-1]}}
	}
	return out, nil
}

func keyOf(av map[string]types.AttributeValue) string {
	if v, ok := av["id"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
