package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

func conf(v float64) *float64 { return &v }

func TestMemoryStore_RecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(3)
	for _, q := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.Record(ctx, NewInteraction(q, "Send money", 2, conf(0.9), "classifier")))
	}
	require.Equal(t, 3, m.Len())

	got, err := m.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []string{"d", "c", "b"}, []string{got[0].Query, got[1].Query, got[2].Query})

	got, err = m.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "d", got[0].Query)

	// callers cannot mutate stored entries
	*got[0].Confidence = 0
	again, _ := m.Recent(ctx, 1)
	require.Equal(t, 0.9, *again[0].Confidence)
}

func TestNewInteraction(t *testing.T) {
	in := NewInteraction("q", "A", 0, nil, "generative")
	require.NotEmpty(t, in.ID)
	require.False(t, in.CreatedAt.IsZero())
	require.Nil(t, in.Confidence)
}

type fakeDynamo struct {
	putErr      error
	queryOut    *dynamodb.QueryOutput
	queryErr    error
	lastPut     *dynamodb.PutItemInput
	lastQueryIn *dynamodb.QueryInput

	// pages, when set, are served in order; each page but the last carries a
	// LastEvaluatedKey that the next request must echo back.
	pages   [][]map[string]types.AttributeValue
	queries int
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.pages == nil {
		if f.queryOut == nil {
			return &dynamodb.QueryOutput{}, nil
		}
		return f.queryOut, nil
	}
	page := 0
	if in.ExclusiveStartKey != nil {
		n, err := strconv.Atoi(in.ExclusiveStartKey["page"].(*types.AttributeValueMemberN).Value)
		if err != nil {
			return nil, err
		}
		page = n
	}
	out := &dynamodb.QueryOutput{Items: f.pages[page]}
	if page+1 < len(f.pages) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"page": &types.AttributeValueMemberN{Value: strconv.Itoa(page + 1)},
		}
	}
	return out, nil
}

func TestDynamoStore_RecordAndRecent(t *testing.T) {
	db := &fakeDynamo{}
	s, err := NewDynamoStore(db, "interactions")
	require.NoError(t, err)

	in := Interaction{
		ID: "id-1", Query: "Send 50 ZAR to John", Action: "Send money", Index: 5,
		Confidence: conf(0.75), Variant: "classifier",
		CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Record(context.Background(), in))
	require.Equal(t, "interactions", *db.lastPut.TableName)
	sk := db.lastPut.Item["SK"].(*types.AttributeValueMemberS).Value
	require.Equal(t, "2026-10-01T12:00:00Z#id-1", sk)

	db.queryOut = &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{db.lastPut.Item}}
	got, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []Interaction{in}, got)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.Equal(t, int32(10), *db.lastQueryIn.Limit)
}

func TestDynamoStore_RecentFollowsPages(t *testing.T) {
	item := func(i int) map[string]types.AttributeValue {
		return interactionItem(Interaction{
			ID: fmt.Sprintf("id-%d", i), Query: "q", Action: "Check balance", Variant: "classifier",
			CreatedAt: time.Date(2026, 10, 1, 12, 0, 100-i, 0, time.UTC),
		})
	}
	db := &fakeDynamo{pages: [][]map[string]types.AttributeValue{
		{item(0), item(1)},
		{},
		{item(2), item(3)},
		{item(4)},
	}}
	s, err := NewDynamoStore(db, "interactions")
	require.NoError(t, err)

	got, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 5)
	require.Equal(t, "id-4", got[4].ID)
	require.Equal(t, 4, db.queries)

	db.queries = 0
	got, err = s.Recent(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "id-2", got[2].ID)
	require.Equal(t, 3, db.queries, "paging stops once the limit is reached")
}

func TestDynamoStore_Errors(t *testing.T) {
	_, err := NewDynamoStore(nil, "t")
	require.Error(t, err)
	_, err = NewDynamoStore(&fakeDynamo{}, " ")
	require.Error(t, err)

	db := &fakeDynamo{putErr: errors.New("throttled"), queryErr: errors.New("down")}
	s, err := NewDynamoStore(db, "t")
	require.NoError(t, err)
	require.Error(t, s.Record(context.Background(), Interaction{}))
	require.ErrorContains(t, s.Record(context.Background(), NewInteraction("q", "A", 0, nil, "c")), "throttled")
	_, err = s.Recent(context.Background(), 1)
	require.ErrorContains(t, err, "down")

	db.queryErr = nil
	db.queryOut = &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{{
		"id": &types.AttributeValueMemberS{Value: "x"},
	}}}
	_, err = s.Recent(context.Background(), 1)
	require.Error(t, err)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "artifact.bin")
	f := NewFileStore(path)

	_, err := f.Read()
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Error(t, f.Write(nil))

	require.NoError(t, f.Write([]byte("v1")))
	require.NoError(t, f.Write([]byte("v2")))
	b, err := f.Read()
	require.NoError(t, err)
	require.Equal(t, "v2", string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear())
}
