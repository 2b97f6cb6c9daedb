package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/ynodev/empowerpwd-api/internal/domain"
)

// WizardSessionRepo provides typed DynamoDB operations for the
// wizard_sessions table. Abandoned sessions age out through the expires_at
// TTL attribute.
type WizardSessionRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewWizardSessionRepo(client *dynamodb.Client, tableName string) *WizardSessionRepo {
	return &WizardSessionRepo{client: client, tableName: tableName}
}

func (r *WizardSessionRepo) Put(ctx context.Context, s *domain.WizardSession) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal wizard session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *WizardSessionRepo) Get(ctx context.Context, sessionID string) (*domain.WizardSession, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("session_id", sessionID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("wizard session not found: %w", domain.ErrNotFound)
	}
	var s domain.WizardSession
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Update applies a partial SET to the session item. Used by the assembler to
// flip the submitted flag without rewriting the whole record.
func (r *WizardSessionRepo) Update(ctx context.Context, sessionID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("session_id", sessionID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *WizardSessionRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("session_id", sessionID),
	})
	return err
}
