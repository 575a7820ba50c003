package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoMovementStore stores stock movements in DynamoDB, partitioned
// by product with a per-product sequence number as the sort key.
type DynamoMovementStore struct {
	client    *dynamodb.Client
	tableName string
}

// dynamoMovement represents the DynamoDB item structure
type dynamoMovement struct {
	ProductID      string `dynamodbav:"product_id"`
	Seq            int    `dynamodbav:"seq"`
	ID             string `dynamodbav:"id"`
	Type           string `dynamodbav:"type"`
	Quantity       int    `dynamodbav:"quantity"`
	PreviousStock  int    `dynamodbav:"previous_stock"`
	ResultingStock int    `dynamodbav:"resulting_stock"`
	Reference      string `dynamodbav:"reference"`
	Notes          string `dynamodbav:"notes"`
	CreatedAt      string `dynamodbav:"created_at"`
}

func NewDynamoMovementStore(client *dynamodb.Client, tableName string) *DynamoMovementStore {
	return &DynamoMovementStore{
		client:    client,
		tableName: tableName,
	}
}

// InsertMovement appends a movement under the product's partition. A
// conditional write on (product_id, seq) rejects concurrent writers
// that raced to the same sequence number.
func (s *DynamoMovementStore) InsertMovement(ctx context.Context, m MovementRecord) error {
	seq, err := s.nextSeq(ctx, m.ProductID)
	if err != nil {
		return fmt.Errorf("failed to get next sequence: %w", err)
	}

	item := dynamoMovement{
		ProductID:      m.ProductID,
		Seq:            seq,
		ID:             m.ID,
		Type:           m.Type,
		Quantity:       m.Quantity,
		PreviousStock:  m.PreviousStock,
		ResultingStock: m.ResultingStock,
		Reference:      m.Reference,
		Notes:          m.Notes,
		CreatedAt:      m.CreatedAt.Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal movement: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(product_id) AND attribute_not_exists(seq)"),
	})
	if err != nil {
		return fmt.Errorf("failed to put movement: %w", err)
	}

	return nil
}

// nextSeq queries for the current max sequence and returns the next one
func (s *DynamoMovementStore) nextSeq(ctx context.Context, productID string) (int, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("product_id = :pid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid": &types.AttributeValueMemberS{Value: productID},
		},
		ScanIndexForward:     aws.Bool(false), // Descending order
		Limit:                aws.Int32(1),
		ProjectionExpression: aws.String("seq"),
	})
	if err != nil {
		return 0, err
	}

	if len(result.Items) == 0 {
		return 1, nil
	}

	var item struct {
		Seq int `dynamodbav:"seq"`
	}
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return 0, err
	}

	return item.Seq + 1, nil
}

// ListMovements returns all movements for a product in append order.
func (s *DynamoMovementStore) ListMovements(ctx context.Context, productID string) ([]MovementRecord, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("product_id = :pid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid": &types.AttributeValueMemberS{Value: productID},
		},
		ScanIndexForward: aws.Bool(true), // Ascending order by seq
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}

	movements := make([]MovementRecord, 0, len(result.Items))
	for _, raw := range result.Items {
		var dm dynamoMovement
		if err := attributevalue.UnmarshalMap(raw, &dm); err != nil {
			continue
		}

		createdAt, _ := time.Parse(time.RFC3339Nano, dm.CreatedAt)

		movements = append(movements, MovementRecord{
			ID:             dm.ID,
			ProductID:      dm.ProductID,
			Type:           dm.Type,
			Quantity:       dm.Quantity,
			PreviousStock:  dm.PreviousStock,
			ResultingStock: dm.ResultingStock,
			Reference:      dm.Reference,
			Notes:          dm.Notes,
			CreatedAt:      createdAt,
		})
	}

	return movements, nil
}
