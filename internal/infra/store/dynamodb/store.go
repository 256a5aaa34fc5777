// Package dynamodb implements core.Store on an Amazon DynamoDB table whose
// partition key is the string attribute "id".
package dynamodb

import (
	"context"
	"sort"
	"strconv"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/juju/errors"

	"taskbridge/internal/infra/awsutil"
	"taskbridge/internal/store/core"
	"taskbridge/pkg/domain"
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Config binds the store to a table.
type Config struct {
	Table string
	AWS   awsutil.Config
}

// Store implements core.Store against a single DynamoDB table.
type Store struct {
	client API
	table  string
}

// New loads AWS configuration and binds a client to cfg.Table.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		return nil, errors.NotValidf("empty dynamodb table name")
	}
	awsCfg, err := awsutil.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if ep := cfg.AWS.BaseEndpoint(); ep != nil {
			o.BaseEndpoint = ep
		}
	})
	return NewWithClient(client, cfg.Table)
}

// NewWithClient binds an existing client to table.
func NewWithClient(client API, table string) (*Store, error) {
	if client == nil {
		return nil, errors.NotValidf("nil dynamodb client")
	}
	if table == "" {
		return nil, errors.NotValidf("empty dynamodb table name")
	}
	return &Store{client: client, table: table}, nil
}

// item is the attribute layout of a record in the table.
type item struct {
	ID   string   `dynamodbav:"id"`
	Task string   `dynamodbav:"task"`
	Done flexBool `dynamodbav:"done"`
}

// flexBool reads done stored either as BOOL or as a "true"/"false" string,
// which is how older writers of the table encoded it. It always writes BOOL.
type flexBool bool

func (b *flexBool) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberBOOL:
		*b = flexBool(v.Value)
	case *types.AttributeValueMemberS:
		parsed, err := strconv.ParseBool(v.Value)
		if err != nil {
			return errors.NotValidf("done value %q", v.Value)
		}
		*b = flexBool(parsed)
	case *types.AttributeValueMemberNULL:
		*b = false
	default:
		return errors.NotValidf("done attribute of type %T", av)
	}
	return nil
}

// Driver returns the store driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverDynamoDB }

// Table returns the bound table name.
func (s *Store) Table() string { return s.table }

// Put writes the full item, replacing any item with the same id.
func (s *Store) Put(ctx context.Context, rec domain.Record) error {
	if err := core.ValidateRecord(rec); err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item{ID: rec.ID, Task: rec.Task, Done: flexBool(rec.Done)})
	if err != nil {
		return core.Unavailable(core.DriverDynamoDB, "put", rec.ID, errors.Annotate(err, "marshal item"))
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	return core.Unavailable(core.DriverDynamoDB, "put", rec.ID, awsutil.Describe(err))
}

// Delete removes the item for id. ALL_OLD return values tell whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.table),
		Key:          map[string]types.AttributeValue{domain.FieldID: &types.AttributeValueMemberS{Value: id}},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, core.Unavailable(core.DriverDynamoDB, "delete", id, awsutil.Describe(err))
	}
	return len(out.Attributes) > 0, nil
}

// List performs a paginated full-table scan.
func (s *Store) List(ctx context.Context) ([]domain.Record, error) {
	pager := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{TableName: aws.String(s.table)})
	out := []domain.Record{}
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, core.Unavailable(core.DriverDynamoDB, "list", "", awsutil.Describe(err))
		}
		var items []item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, core.Unavailable(core.DriverDynamoDB, "list", "", errors.Annotate(err, "unmarshal items"))
		}
		for _, it := range items {
			out = append(out, domain.Record{ID: it.ID, Task: it.Task, Done: bool(it.Done)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error { return nil }
