package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	interactionPK  = "INTERACTIONS"
	interactionTTL = 90 * 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// *dynamodb.Client satisfies it.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore keeps interactions in a DynamoDB table keyed by PK/SK. All
// interactions share one partition; the sort key is the creation time
// followed by the ID, so a reverse query yields the newest first.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
}

func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("store: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("store: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName}, nil
}

func interactionSK(in Interaction) string {
	return in.CreatedAt.UTC().Format(time.RFC3339Nano) + "#" + in.ID
}

func (d *DynamoStore) Record(ctx context.Context, in Interaction) error {
	if in.ID == "" {
		return errors.New("store: interaction id is required")
	}
	_, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                interactionItem(in),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("store: record interaction: %w", err)
	}
	return nil
}

// Recent pages through the partition newest first until limit interactions
// are collected or the partition is exhausted.
func (d *DynamoStore) Recent(ctx context.Context, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 100
	}
	p := dynamodb.NewQueryPaginator(d.api, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: interactionPK},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})

	var res []Interaction
	for p.HasMorePages() && len(res) < limit {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("store: recent interactions: %w", err)
		}
		for _, item := range page.Items {
			in, err := itemToInteraction(item)
			if err != nil {
				return nil, fmt.Errorf("store: recent interactions: %w", err)
			}
			res = append(res, in)
			if len(res) == limit {
				break
			}
		}
	}
	return res, nil
}

func interactionItem(in Interaction) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: interactionPK},
		"SK":        &types.AttributeValueMemberS{Value: interactionSK(in)},
		"id":        &types.AttributeValueMemberS{Value: in.ID},
		"query":     &types.AttributeValueMemberS{Value: in.Query},
		"action":    &types.AttributeValueMemberS{Value: in.Action},
		"index":     &types.AttributeValueMemberN{Value: strconv.Itoa(in.Index)},
		"variant":   &types.AttributeValueMemberS{Value: in.Variant},
		"createdAt": &types.AttributeValueMemberS{Value: in.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(in.CreatedAt.Add(interactionTTL).Unix(), 10)},
	}
	if in.Confidence != nil {
		item["confidence"] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(*in.Confidence, 'g', -1, 64)}
	}
	return item
}

func itemToInteraction(item map[string]types.AttributeValue) (Interaction, error) {
	var in Interaction
	var err error
	if in.ID, err = strAttr(item, "id"); err != nil {
		return Interaction{}, err
	}
	if in.Query, err = strAttr(item, "query"); err != nil {
		return Interaction{}, err
	}
	if in.Action, err = strAttr(item, "action"); err != nil {
		return Interaction{}, err
	}
	in.Variant, _ = strAttr(item, "variant") // allow empty
	idx, err := numAttr(item, "index")
	if err != nil {
		return Interaction{}, err
	}
	in.Index = int(idx)
	if _, ok := item["confidence"]; ok {
		c, err := numAttr(item, "confidence")
		if err != nil {
			return Interaction{}, err
		}
		in.Confidence = &c
	}
	ts, err := strAttr(item, "createdAt")
	if err != nil {
		return Interaction{}, err
	}
	if in.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return Interaction{}, fmt.Errorf("store: parse createdAt: %w", err)
	}
	return in, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("store: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("store: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func numAttr(item map[string]types.AttributeValue, key string) (float64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("store: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("store: attribute %q is not a number", key)
	}
	f, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("store: parse attribute %q: %w", key, err)
	}
	return f, nil
}
