package clients

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spacesedan/reelscore/internal/models"
	"github.com/valkey-io/valkey-go"
)

const (
	VALKEY_SUMMARY_KEY = "movie:%d:sentiment"
	SUMMARY_TTL        = time.Hour
	valkeyRetries      = 3
)

type ValkeyConfig struct {
	Address  string
	Password string
	TLS      bool
}

// ValkeyClient caches per-movie sentiment summaries.
type ValkeyClient struct {
	Client valkey.Client
	cfg    ValkeyConfig
	mu     sync.Mutex
}

func connectValkey(cfg ValkeyConfig) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress:      []string{cfg.Address},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}

	if cfg.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func NewValkeyClient(cfg ValkeyConfig) (*ValkeyClient, error) {
	client, err := connectValkey(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", cfg.Address))
	return &ValkeyClient{Client: client, cfg: cfg}, nil
}

func (vc *ValkeyClient) client() valkey.Client {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.Client
}

func (vc *ValkeyClient) recreateClient() {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := connectValkey(vc.cfg)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed", slog.String("error", err.Error()))
		return
	}

	vc.Client.Close()
	vc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyClient) Close() {
	vc.client().Close()
}

// Ping reports whether the server answers within the context deadline.
func (vc *ValkeyClient) Ping(ctx context.Context) bool {
	c := vc.client()
	err := c.Do(ctx, c.B().Ping().Build()).Error()
	if isConnectionError(err) {
		vc.recreateClient()
	}
	return err == nil
}

func summaryKey(movieID int) string {
	return fmt.Sprintf(VALKEY_SUMMARY_KEY, movieID)
}

// GetSummary returns the cached summary for a movie. ok is false on a miss.
func (vc *ValkeyClient) GetSummary(ctx context.Context, movieID int) (models.MovieSentiment, bool, error) {
	c := vc.client()
	res := vc.DoWithRetry(ctx, c.B().Get().Key(summaryKey(movieID)).Build(), valkeyRetries)

	raw, err := res.ToString()
	if valkey.IsValkeyNil(err) {
		return models.MovieSentiment{}, false, nil
	}
	if err != nil {
		return models.MovieSentiment{}, false, err
	}

	var summary models.MovieSentiment
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return models.MovieSentiment{}, false, fmt.Errorf("[ValkeyClient] corrupt summary for movie %d: %w", movieID, err)
	}
	return summary, true, nil
}

func (vc *ValkeyClient) SetSummary(ctx context.Context, summary models.MovieSentiment) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	c := vc.client()
	key := summaryKey(summary.MovieID)
	completed := []valkey.Completed{
		c.B().Set().Key(key).Value(string(data)).Build(),
		c.B().Expire().Key(key).Seconds(int64(SUMMARY_TTL.Seconds())).Build(),
	}

	for _, res := range vc.DoMultiWithRetry(ctx, completed, valkeyRetries) {
		if err := res.Error(); err != nil {
			return err
		}
	}

	slog.Debug("[ValkeyClient] Cached movie summary", slog.Int("movie_id", summary.MovieID))
	return nil
}

func (vc *ValkeyClient) Invalidate(ctx context.Context, movieID int) error {
	c := vc.client()
	return vc.DoWithRetry(ctx, c.B().Del().Key(summaryKey(movieID)).Build(), valkeyRetries).Error()
}

func (vc *ValkeyClient) DoMultiWithRetry(ctx context.Context, completed []valkey.Completed, retries int) []valkey.ValkeyResult {
	var results []valkey.ValkeyResult

	for i := 0; i < retries; i++ {
		results = vc.client().DoMulti(ctx, completed...)
		hasErr := false
		for _, r := range results {
			if r.Error() != nil {
				hasErr = true
				slog.Warn("[ValkeyClient] Do Multi failed",
					slog.Int("attempt", i+1),
					slog.String("error", r.Error().Error()))
				if isConnectionError(r.Error()) {
					vc.recreateClient()
				}
				break
			}
		}
		if !hasErr {
			break
		}
		time.Sleep(time.Millisecond * 250)
	}

	return results
}

// DoWithRetry retries failed commands. A nil reply is a result, not a failure.
func (vc *ValkeyClient) DoWithRetry(ctx context.Context, completed valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		result = vc.client().Do(ctx, completed)
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		if isConnectionError(err) {
			vc.recreateClient()
		}

		time.Sleep(250 * time.Millisecond)
	}

	return result
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
