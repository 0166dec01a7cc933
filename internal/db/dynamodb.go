package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/reelscore/internal/models"
)

const (
	MOVIES_TABLE_NAME   = "Movies"
	REVIEWS_TABLE_NAME  = "Reviews"
	COUNTERS_TABLE_NAME = "Counters"

	maxBatchSize     = 25
	maxBatchRetries  = 3
	initialBatchWait = 500 * time.Millisecond
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps movies and reviews in DynamoDB. Ids come from an atomic
// counter item per table in the Counters table.
type DynamoStore struct {
	client DynamoAPI
	now    func() time.Time
}

func NewDynamoStore(client DynamoAPI) *DynamoStore {
	return &DynamoStore{client: client, now: time.Now}
}

func idKey(id int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberN{Value: strconv.Itoa(id)},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (s *DynamoStore) nextID(ctx context.Context, table string) (int, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(COUNTERS_TABLE_NAME),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: table},
		},
		UpdateExpression:         aws.String("ADD #v :one"),
		ExpressionAttributeNames: map[string]string{"#v": "value"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("[DynamoDB] Failed to allocate %s id: %w", table, err)
	}

	var counter struct {
		Value int `dynamodbav:"value"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &counter); err != nil {
		return 0, fmt.Errorf("[DynamoDB] Unable to unmarshal %s counter: %w", table, err)
	}
	return counter.Value, nil
}

func (s *DynamoStore) scan(ctx context.Context, input *dynamodb.ScanInput, out any) error {
	var items []map[string]types.AttributeValue

	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("[DynamoDB] Scan of %s failed: %w", aws.ToString(input.TableName), err)
		}
		items = append(items, page.Items...)
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		slog.Error("[DynamoDB] Unable to unmarshal scan results",
			slog.String("table", aws.ToString(input.TableName)),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (s *DynamoStore) ListMovies(ctx context.Context) ([]models.Movie, error) {
	movies := make([]models.Movie, 0)
	err := s.scan(ctx, &dynamodb.ScanInput{TableName: aws.String(MOVIES_TABLE_NAME)}, &movies)
	return movies, err
}

func (s *DynamoStore) GetMovie(ctx context.Context, id int) (models.Movie, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(MOVIES_TABLE_NAME),
		Key:       idKey(id),
	})
	if err != nil {
		return models.Movie{}, fmt.Errorf("[DynamoDB] Failed to get movie %d: %w", id, err)
	}
	if len(out.Item) == 0 {
		return models.Movie{}, fmt.Errorf("movie %d: %w", id, ErrNotFound)
	}

	var movie models.Movie
	if err := attributevalue.UnmarshalMap(out.Item, &movie); err != nil {
		return models.Movie{}, fmt.Errorf("[DynamoDB] Unable to unmarshal movie %d: %w", id, err)
	}
	return movie, nil
}

func (s *DynamoStore) CreateMovie(ctx context.Context, movie models.Movie) (models.Movie, error) {
	if err := movie.Validate(); err != nil {
		return models.Movie{}, err
	}

	id, err := s.nextID(ctx, MOVIES_TABLE_NAME)
	if err != nil {
		return models.Movie{}, err
	}
	movie.ID = id

	if err := s.put(ctx, MOVIES_TABLE_NAME, movie, false); err != nil {
		return models.Movie{}, err
	}
	return movie, nil
}

func (s *DynamoStore) UpdateMovie(ctx context.Context, id int, movie models.Movie) (models.Movie, error) {
	if err := movie.Validate(); err != nil {
		return models.Movie{}, err
	}
	movie.ID = id

	if err := s.put(ctx, MOVIES_TABLE_NAME, movie, true); err != nil {
		if isConditionFailed(err) {
			return models.Movie{}, fmt.Errorf("movie %d: %w", id, ErrNotFound)
		}
		return models.Movie{}, err
	}
	return movie, nil
}

func (s *DynamoStore) DeleteMovie(ctx context.Context, id int) (int, error) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(MOVIES_TABLE_NAME),
		Key:                 idKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return 0, fmt.Errorf("movie %d: %w", id, ErrNotFound)
		}
		return 0, fmt.Errorf("[DynamoDB] Failed to delete movie %d: %w", id, err)
	}

	reviews, err := s.ReviewsByMovie(ctx, id)
	if err != nil {
		return 0, err
	}

	keys := make([]map[string]types.AttributeValue, 0, len(reviews))
	for _, r := range reviews {
		keys = append(keys, idKey(r.ID))
	}
	if err := s.batchDelete(ctx, REVIEWS_TABLE_NAME, keys); err != nil {
		return 0, err
	}

	slog.Info("[DynamoDB] Deleted movie",
		slog.Int("movie_id", id),
		slog.Int("deleted_reviews", len(keys)))
	return len(keys), nil
}

func (s *DynamoStore) ListReviews(ctx context.Context) ([]models.Review, error) {
	reviews := make([]models.Review, 0)
	err := s.scan(ctx, &dynamodb.ScanInput{TableName: aws.String(REVIEWS_TABLE_NAME)}, &reviews)
	return reviews, err
}

func (s *DynamoStore) ReviewsByMovie(ctx context.Context, movieID int) ([]models.Review, error) {
	reviews := make([]models.Review, 0)
	err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(REVIEWS_TABLE_NAME),
		FilterExpression: aws.String("movie_id = :m"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":m": &types.AttributeValueMemberN{Value: strconv.Itoa(movieID)},
		},
	}, &reviews)
	return reviews, err
}

func (s *DynamoStore) CreateReview(ctx context.Context, review models.Review) (models.Review, error) {
	if err := review.Validate(); err != nil {
		return models.Review{}, err
	}

	id, err := s.nextID(ctx, REVIEWS_TABLE_NAME)
	if err != nil {
		return models.Review{}, err
	}
	review.ID = id
	review.Stamp(s.now())

	item, err := attributevalue.MarshalMap(review)
	if err != nil {
		return models.Review{}, fmt.Errorf("[DynamoDB] Unable to marshal review: %w", err)
	}

	// The movie check and the put commit together, so a concurrent
	// DeleteMovie cannot leave the review orphaned.
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{ConditionCheck: &types.ConditionCheck{
				TableName:           aws.String(MOVIES_TABLE_NAME),
				Key:                 idKey(review.MovieID),
				ConditionExpression: aws.String("attribute_exists(id)"),
			}},
			{Put: &types.Put{
				TableName: aws.String(REVIEWS_TABLE_NAME),
				Item:      item,
			}},
		},
	})
	if err != nil {
		if isMovieCheckFailed(err) {
			return models.Review{}, fmt.Errorf("movie %d: %w", review.MovieID, ErrNotFound)
		}
		return models.Review{}, fmt.Errorf("[DynamoDB] Failed to write review: %w", err)
	}
	return review, nil
}

// isMovieCheckFailed reports whether a CreateReview transaction was
// cancelled by its movie existence check.
func isMovieCheckFailed(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || len(tce.CancellationReasons) == 0 {
		return false
	}
	return aws.ToString(tce.CancellationReasons[0].Code) == "ConditionalCheckFailed"
}

func (s *DynamoStore) DeleteReview(ctx context.Context, id int) (models.Review, error) {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(REVIEWS_TABLE_NAME),
		Key:                 idKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if err != nil {
		if isConditionFailed(err) {
			return models.Review{}, fmt.Errorf("review %d: %w", id, ErrNotFound)
		}
		return models.Review{}, fmt.Errorf("[DynamoDB] Failed to delete review %d: %w", id, err)
	}

	var review models.Review
	if err := attributevalue.UnmarshalMap(out.Attributes, &review); err != nil {
		return models.Review{}, fmt.Errorf("[DynamoDB] Unable to unmarshal deleted review %d: %w", id, err)
	}
	return review, nil
}

// put writes v to table. With mustExist the write only replaces an item
// that is already there.
func (s *DynamoStore) put(ctx context.Context, table string, v any, mustExist bool) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("[DynamoDB] Unable to marshal %s item: %w", table, err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	}
	if mustExist {
		input.ConditionExpression = aws.String("attribute_exists(id)")
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return err
		}
		return fmt.Errorf("[DynamoDB] Failed to put %s item: %w", table, err)
	}
	return nil
}

func (s *DynamoStore) batchDelete(ctx context.Context, table string, keys []map[string]types.AttributeValue) error {
	for i := 0; i < len(keys); i += maxBatchSize {
		end := min(i+maxBatchSize, len(keys))

		requests := make([]types.WriteRequest, 0, end-i)
		for _, key := range keys[i:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key},
			})
		}

		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{table: requests},
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Failed to batch delete from %s: %w", table, err)
		}

		retryCount := 0
		backoff := initialBatchWait
		for len(out.UnprocessedItems) > 0 && retryCount < maxBatchRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2

			slog.Warn("[DynamoDB] Retrying unprocessed deletes...",
				slog.Int("attempt", retryCount+1),
				slog.Int("remaining", len(out.UnprocessedItems[table])))

			out, err = s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: out.UnprocessedItems,
			})
			if err != nil {
				return fmt.Errorf("[DynamoDB] Retry error: %w", err)
			}
			retryCount++
		}

		if len(out.UnprocessedItems) > 0 {
			return fmt.Errorf("[DynamoDB] %d deletes from %s left unprocessed after retries",
				len(out.UnprocessedItems[table]), table)
		}
	}
	return nil
}
