package services

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"catalog-service/models"
	"catalog-service/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// memRepo is an in-memory ProductRepo with optional failure hooks.
type memRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*models.Product
	updates  []map[string]interface{}

	findFn   func(ctx context.Context, storeID, barcode string) error
	createFn func(p *models.Product) error
	updateFn func(id uuid.UUID) error
	listErr  error
}

func newMemRepo() *memRepo {
	return &memRepo{products: map[uuid.UUID]*models.Product{}}
}

func (r *memRepo) FindByBarcode(ctx context.Context, storeID, barcode string) (*models.Product, error) {
	if r.findFn != nil {
		if err := r.findFn(ctx, storeID, barcode); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.StoreID == storeID && p.Barcode != nil && *p.Barcode == barcode {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) Create(_ context.Context, p *models.Product) error {
	if r.createFn != nil {
		if err := r.createFn(p); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *memRepo) Update(_ context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if r.updateFn != nil {
		if err := r.updateFn(id); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.updates = append(r.updates, updates)
	for k, v := range updates {
		switch k {
		case "name":
			p.Name = v.(string)
		case "category":
			p.Category = v.(string)
		case "price":
			p.Price = v.(float64)
		case "list_price":
			p.ListPrice = v.(float64)
		case "stock":
			p.Stock = v.(int)
		case "active":
			p.Active = v.(bool)
		case "manufacturer":
			m := v.(string)
			p.Manufacturer = &m
		}
	}
	return nil
}

func (r *memRepo) List(_ context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Product
	for _, p := range r.products {
		if p.StoreID == filter.StoreID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (r *memRepo) EnsureSchema(context.Context) error { return nil }

func (r *memRepo) all() []models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out
}

func (r *memRepo) byName(name string) *models.Product {
	for _, p := range r.all() {
		if p.Name == name {
			cp := p
			return &cp
		}
	}
	return nil
}

type fakeCache struct {
	calls int
	err   error
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

type fakeSNS struct {
	topics   []string
	messages [][]byte
	err      error
}

func (f *fakeSNS) Publish(_ context.Context, topicArn string, message []byte) error {
	f.topics = append(f.topics, topicArn)
	f.messages = append(f.messages, message)
	return f.err
}

type fakeMetrics struct {
	counts    map[string]int
	latencies []string
}

func (m *fakeMetrics) RecordCountN(_ context.Context, name string, n int, _ map[string]string) error {
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[name] += n
	return nil
}

func (m *fakeMetrics) RecordLatency(_ context.Context, name string, _ time.Duration, _ map[string]string) error {
	m.latencies = append(m.latencies, name)
	return nil
}

// fakeRedis implements RedisAPI over maps.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	lists  map[string][]string
	ttls   map[string]time.Duration
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, lists: map[string][]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	default:
		return redis.NewStatusResult("", errors.New("unsupported value"))
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.lists[key] = append(f.lists[key], v.(string))
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeRedis) BLPop(ctx context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	if err := ctx.Err(); err != nil {
		return redis.NewStringSliceResult(nil, err)
	}
	f.mu.Lock()
	for _, k := range keys {
		if l := f.lists[k]; len(l) > 0 {
			f.lists[k] = l[1:]
			f.mu.Unlock()
			return redis.NewStringSliceResult([]string{k, l[0]}, nil)
		}
	}
	f.mu.Unlock()
	time.Sleep(time.Millisecond)
	return redis.NewStringSliceResult(nil, redis.Nil)
}

// xlsx builds a workbook whose first sheet holds rows starting at A1.
func xlsx(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		r := row
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf := new(bytes.Buffer)
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func upload(storeID string, data []byte) UploadInput {
	return UploadInput{
		StoreID:     storeID,
		FileName:    "catalogo.xlsx",
		ContentType: "application/octet-stream",
		Reader:      bytes.NewReader(data),
	}
}
