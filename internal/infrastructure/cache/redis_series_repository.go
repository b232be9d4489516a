package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// maxUpdateAttempts bounds the WATCH retries of one Update call. Every failed
// attempt means another writer committed, so the bound only matters under
// pathological contention.
const maxUpdateAttempts = 100

// createSeriesScript claims the code index and stores the record in one step.
// KEYS: code index, record, tenant set. ARGV: id, payload.
var createSeriesScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2])
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

// RedisSeriesRepository keeps series counters in Redis so several processes can
// allocate from the same series. Each series is one JSON value; Update runs a
// WATCH/MULTI transaction on it and retries when another client got there first.
type RedisSeriesRepository struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisSeriesRepository creates a repository on an existing client.
// An empty keyPrefix selects "fiscal".
func NewRedisSeriesRepository(client redis.UniversalClient, keyPrefix string) *RedisSeriesRepository {
	if keyPrefix == "" {
		keyPrefix = "fiscal"
	}
	return &RedisSeriesRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisSeriesRepository) recordKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:series:%s", r.keyPrefix, id)
}

func (r *RedisSeriesRepository) codeKey(tenantID uuid.UUID, docType valueobject.DocumentType, code string) string {
	return fmt.Sprintf("%s:series:code:%s:%s:%s", r.keyPrefix, tenantID, docType, code)
}

func (r *RedisSeriesRepository) tenantKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("%s:series:tenant:%s", r.keyPrefix, tenantID)
}

// seriesRecord is the stored form of a Series
type seriesRecord struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	DocumentType  string     `json:"document_type"`
	Code          string     `json:"code"`
	CurrentNumber int64      `json:"current_number"`
	MaxNumber     int64      `json:"max_number"`
	Active        bool       `json:"active"`
	PointOfSale   string     `json:"point_of_sale,omitempty"`
	Description   string     `json:"description,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedBy     *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Version       int        `json:"version"`
}

func encodeSeries(s *numbering.Series) ([]byte, error) {
	return json.Marshal(seriesRecord{
		ID:            s.ID,
		TenantID:      s.TenantID,
		DocumentType:  string(s.DocumentType),
		Code:          s.Code,
		CurrentNumber: s.CurrentNumber,
		MaxNumber:     s.MaxNumber,
		Active:        s.Active,
		PointOfSale:   s.PointOfSale,
		Description:   s.Description,
		DeactivatedAt: s.DeactivatedAt,
		CreatedBy:     s.CreatedBy,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		Version:       s.Version,
	})
}

func decodeSeries(data []byte) (*numbering.Series, error) {
	var rec seriesRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode series record: %w", err)
	}
	return &numbering.Series{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{ID: rec.ID, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt},
				Version:    rec.Version,
			},
			TenantID:  rec.TenantID,
			CreatedBy: rec.CreatedBy,
		},
		DocumentType:  valueobject.DocumentType(rec.DocumentType),
		Code:          rec.Code,
		CurrentNumber: rec.CurrentNumber,
		MaxNumber:     rec.MaxNumber,
		Active:        rec.Active,
		PointOfSale:   rec.PointOfSale,
		Description:   rec.Description,
		DeactivatedAt: rec.DeactivatedAt,
	}, nil
}

// FindByID finds a series by ID
func (r *RedisSeriesRepository) FindByID(ctx context.Context, id uuid.UUID) (*numbering.Series, error) {
	data, err := r.client.Get(ctx, r.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	return decodeSeries(data)
}

// FindByCode resolves the code index and loads the series
func (r *RedisSeriesRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, docType valueobject.DocumentType, code string) (*numbering.Series, error) {
	raw, err := r.client.Get(ctx, r.codeKey(tenantID, docType, strings.ToUpper(code))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve series code: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt series code index %q: %w", raw, err)
	}
	return r.FindByID(ctx, id)
}

// FindAllForTenant lists the series of a tenant. Sorting honours code,
// document_type, current_number and created_at; anything else sorts by code.
func (r *RedisSeriesRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]numbering.Series, error) {
	ids, err := r.client.SMembers(ctx, r.tenantKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant series: %w", err)
	}
	if len(ids) == 0 {
		return []numbering.Series{}, nil
	}
	keys := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		keys = append(keys, r.recordKey(id))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant series: %w", err)
	}

	docType, _ := filter.Filters["document_type"].(string)
	active, hasActive := filter.Filters["active"].(bool)
	items := make([]numbering.Series, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		s, err := decodeSeries([]byte(str))
		if err != nil {
			return nil, err
		}
		if docType != "" && string(s.DocumentType) != docType {
			continue
		}
		if hasActive && s.Active != active {
			continue
		}
		items = append(items, *s)
	}

	var less func(a, b numbering.Series) bool
	switch filter.OrderBy {
	case "document_type":
		less = func(a, b numbering.Series) bool { return a.DocumentType < b.DocumentType }
	case "current_number":
		less = func(a, b numbering.Series) bool { return a.CurrentNumber < b.CurrentNumber }
	case "created_at":
		less = func(a, b numbering.Series) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		less = func(a, b numbering.Series) bool { return a.Code < b.Code }
	}
	desc := strings.EqualFold(filter.OrderDir, "desc")
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})

	if limit := filter.Limit(); limit > 0 {
		start := filter.Offset()
		if start >= len(items) {
			return []numbering.Series{}, nil
		}
		items = items[start:min(start+limit, len(items))]
	}
	return items, nil
}

// Create stores a new series and claims its code
func (r *RedisSeriesRepository) Create(ctx context.Context, series *numbering.Series) error {
	payload, err := encodeSeries(series)
	if err != nil {
		return err
	}
	keys := []string{
		r.codeKey(series.TenantID, series.DocumentType, series.Code),
		r.recordKey(series.ID),
		r.tenantKey(series.TenantID),
	}
	created, err := createSeriesScript.Run(ctx, r.client, keys, series.ID.String(), payload).Int()
	if err != nil {
		return fmt.Errorf("failed to create series: %w", err)
	}
	if created == 0 {
		return shared.NewDomainError(shared.ErrAlreadyExists.Code, fmt.Sprintf("Series %s already exists", series.Code))
	}
	return nil
}

// Update applies fn inside a WATCH/MULTI transaction on the series key.
// fn may run more than once when other clients write the same series; only
// the run whose write commits is returned.
func (r *RedisSeriesRepository) Update(ctx context.Context, id uuid.UUID, fn numbering.SeriesMutator) (*numbering.Series, error) {
	key := r.recordKey(id)
	var result *numbering.Series

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return shared.ErrNotFound
			}
			return err
		}
		s, err := decodeSeries(data)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		s.IncrementVersion()
		s.UpdatedAt = time.Now()
		payload, err := encodeSeries(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = s
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, shared.NewDomainError(shared.ErrConcurrencyConflict.Code, "The series is under heavy contention, retry later")
}

// Ensure RedisSeriesRepository implements SeriesRepository
var _ numbering.SeriesRepository = (*RedisSeriesRepository)(nil)
