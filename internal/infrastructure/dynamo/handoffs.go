package dynamo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/ynodev/empowerpwd-api/internal/domain"
)

// HandoffRepo stores cross-navigation pre-population slots. A slot is
// consumed exactly once: Consume deletes it as it reads. Unconsumed slots
// age out through the expires_at TTL attribute.
type HandoffRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewHandoffRepo(client *dynamodb.Client, tableName string) *HandoffRepo {
	return &HandoffRepo{client: client, tableName: tableName}
}

func (r *HandoffRepo) Put(ctx context.Context, h *domain.Handoff) error {
	item, err := attributevalue.MarshalMap(h)
	if err != nil {
		return fmt.Errorf("marshal handoff: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Consume reads and deletes the slot in one call. A second Consume for the
// same id returns ErrNotFound.
func (r *HandoffRepo) Consume(ctx context.Context, handoffID string) (*domain.Handoff, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          strKey("handoff_id", handoffID),
		ReturnValues: "ALL_OLD",
	})
	if err != nil {
		return nil, err
	}
	if out.Attributes == nil {
		return nil, fmt.Errorf("handoff not found: %w", domain.ErrNotFound)
	}
	var h domain.Handoff
	if err := attributevalue.UnmarshalMap(out.Attributes, &h); err != nil {
		slog.Warn("failed to unmarshal consumed handoff", "handoff_id", handoffID, "err", err)
		return nil, err
	}
	return &h, nil
}
