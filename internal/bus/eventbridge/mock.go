package eventbridge

import (
	"context"
	"fmt"
	"sync"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

// FakeAPI records PutEvents calls. Each call pops one scripted failure from
// Errs or FailEntries before succeeding.
type FakeAPI struct {
	mu          sync.Mutex
	Entries     []types.PutEventsRequestEntry
	Calls       int
	Errs        []error
	FailEntries []string
}

// NewMockForTests returns a Publisher backed by a FakeAPI.
func NewMockForTests(busName string) (*Publisher, *FakeAPI) {
	fake := &FakeAPI{}
	p, err := NewWithClient(fake, Config{BusName: busName})
	if err != nil {
		panic(err)
	}
	return p, fake
}

// PutEvents implements API.
func (f *FakeAPI) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if len(f.Errs) > 0 {
		err := f.Errs[0]
		f.Errs = f.Errs[1:]
		return nil, err
	}
	if len(f.FailEntries) > 0 {
		code := f.FailEntries[0]
		f.FailEntries = f.FailEntries[1:]
		out := &eventbridge.PutEventsOutput{FailedEntryCount: int32(len(in.Entries))}
		for range in.Entries {
			out.Entries = append(out.Entries, types.PutEventsResultEntry{
				ErrorCode:    aws.String(code),
				ErrorMessage: aws.String("scripted failure"),
			})
		}
		return out, nil
	}
	out := &eventbridge.PutEventsOutput{}
	for _, entry := range in.Entries {
		f.Entries = append(f.Entries, entry)
		out.Entries = append(out.Entries, types.PutEventsResultEntry{EventId: aws.String(fmt.Sprintf("evt-%d", len(f.Entries)))})
	}
	return out, nil
}

// Published returns a copy of the accepted entries.
func (f *FakeAPI) Published() []types.PutEventsRequestEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.PutEventsRequestEntry, len(f.Entries))
	copy(out, f.Entries)
	return out
}
