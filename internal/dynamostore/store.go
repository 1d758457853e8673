// Package dynamostore keeps reminders in a DynamoDB table. Conditional
// writes carry the compare-and-swap precondition on status and version.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/notexe/reminderd/internal/reminder"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Options locate the table.
type Options struct {
	Table    string
	Region   string
	Endpoint string // e.g. http://localhost:8000 for DynamoDB Local
}

// Store implements reminder.Store on DynamoDB.
type Store struct {
	db        API
	tableName string
}

var _ reminder.Store = (*Store)(nil)

// New loads the default AWS configuration and connects to opts.Table.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Table == "" {
		return nil, fmt.Errorf("dynamodb table is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return NewWithClient(client, opts.Table), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(db API, table string) *Store {
	return &Store{db: db, tableName: table}
}

func (s *Store) Close() error { return nil }

// EnsureTable creates the table with on-demand capacity if it is missing.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.db.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("failed to create table %s: %w", s.tableName, err)
	}
	if err == nil {
		log.Printf("[dynamostore] Created table %s", s.tableName)
	}
	return nil
}

// Insert writes a new reminder. A successor's origin key is reserved in
// the same transaction so that a second successor for one completion is
// rejected even under a different id.
func (s *Store) Insert(ctx context.Context, r *reminder.Reminder) error {
	av, err := attributevalue.MarshalMap(toItem(r))
	if err != nil {
		return fmt.Errorf("failed to marshal reminder: %w", err)
	}

	if r.OriginKey == "" {
		_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                aws.String(s.tableName),
			Item:                     av,
			ConditionExpression:      aws.String("attribute_not_exists(#id)"),
			ExpressionAttributeNames: map[string]string{"#id": "id"},
		})
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return fmt.Errorf("%w: %s", reminder.ErrDuplicate, r.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert reminder: %w", err)
		}
		return nil
	}

	marker, err := attributevalue.MarshalMap(originMarker{
		ID:          originPrefix + r.OriginKey,
		Kind:        kindOrigin,
		SuccessorID: r.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal origin marker: %w", err)
	}

	_, err = s.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(s.tableName),
				Item:                     av,
				ConditionExpression:      aws.String("attribute_not_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": "id"},
			}},
			{Put: &types.Put{
				TableName:                aws.String(s.tableName),
				Item:                     marker,
				ConditionExpression:      aws.String("attribute_not_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": "id"},
			}},
		},
	})
	if isTransactionConflict(err) {
		return fmt.Errorf("%w: origin %s", reminder.ErrDuplicate, r.OriginKey)
	}
	if err != nil {
		return fmt.Errorf("failed to insert successor: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*reminder.Reminder, error) {
	it, err := s.getItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if it == nil || it.Kind != kindReminder || it.DeletedAt != nil {
		return nil, fmt.Errorf("%w: %s", reminder.ErrNotFound, id)
	}
	r := it.reminder()
	return &r, nil
}

func (s *Store) ConditionalUpdate(ctx context.Context, id string, expect reminder.Expect, next *reminder.Reminder) (*reminder.Reminder, error) {
	expr, err := conditionalUpdate(next, expect)
	if err != nil {
		return nil, fmt.Errorf("conditional update: %w", err)
	}

	out, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.tableName),
		Key:                                 key(id),
		UpdateExpression:                    aws.String(expr.update),
		ConditionExpression:                 aws.String(expr.condition),
		ExpressionAttributeNames:            expr.names,
		ExpressionAttributeValues:           expr.values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return nil, s.classifyConditionFailure(id, expect, cfe.Item)
		}
		return nil, fmt.Errorf("conditional update: %w", err)
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, fmt.Errorf("conditional update: unmarshal: %w", err)
	}
	r := it.reminder()
	return &r, nil
}

// classifyConditionFailure tells a missing record from a lost race using
// the item DynamoDB returns with the failed condition.
func (s *Store) classifyConditionFailure(id string, expect reminder.Expect, old map[string]types.AttributeValue) error {
	var it item
	if len(old) == 0 || attributevalue.UnmarshalMap(old, &it) != nil || it.Kind != kindReminder || it.DeletedAt != nil {
		return fmt.Errorf("%w: %s", reminder.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s expected %s/v%d, found %s/v%d",
		reminder.ErrPreconditionFailed, id, expect.Status, expect.Version, it.Status, it.Version)
}

func (s *Store) SoftDelete(ctx context.Context, id string, at time.Time) error {
	expr, err := softDelete(formatTime(at))
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}

	_, err = s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       key(id),
		UpdateExpression:          aws.String(expr.update),
		ConditionExpression:       aws.String(expr.condition),
		ExpressionAttributeNames:  expr.names,
		ExpressionAttributeValues: expr.values,
	})
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return fmt.Errorf("%w: %s", reminder.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return nil
}

// Query scans the table with f as a filter, then orders and pages the
// result in memory.
func (s *Store) Query(ctx context.Context, f reminder.Filter) ([]reminder.Reminder, error) {
	expr, err := scanFilter(f)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	p := dynamodb.NewScanPaginator(s.db, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          aws.String(expr.condition),
		ExpressionAttributeNames:  expr.names,
		ExpressionAttributeValues: expr.values,
		ConsistentRead:            aws.Bool(true),
	})

	var out []reminder.Reminder
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminders: %w", err)
		}

		var items []item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reminders: %w", err)
		}
		for _, it := range items {
			r := it.reminder()
			if f.Matches(&r) {
				out = append(out, r)
			}
		}
	}

	return f.Page(out), nil
}

func (s *Store) FindByOrigin(ctx context.Context, originKey string) (*reminder.Reminder, error) {
	marker, err := s.getRaw(ctx, originPrefix+originKey)
	if err != nil {
		return nil, err
	}
	if marker == nil {
		return nil, fmt.Errorf("%w: origin %s", reminder.ErrNotFound, originKey)
	}

	var m originMarker
	if err := attributevalue.UnmarshalMap(marker, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal origin marker: %w", err)
	}

	it, err := s.getItem(ctx, m.SuccessorID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, fmt.Errorf("%w: successor %s of origin %s", reminder.ErrNotFound, m.SuccessorID, originKey)
	}
	r := it.reminder()
	return &r, nil
}

func (s *Store) getItem(ctx context.Context, id string) (*item, error) {
	raw, err := s.getRaw(ctx, id)
	if err != nil || raw == nil {
		return nil, err
	}
	var it item
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reminder: %w", err)
	}
	return &it, nil
}

func (s *Store) getRaw(ctx context.Context, id string) (map[string]types.AttributeValue, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", id, err)
	}
	return out.Item, nil
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// isTransactionConflict reports whether a transaction was cancelled by a
// failed condition.
func isTransactionConflict(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
