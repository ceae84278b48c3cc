package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"catalog-service/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// StoreBarcodeIndex is the GSI (store_id HASH, barcode RANGE) used for upsert lookups.
const StoreBarcodeIndex = "store_barcode-index"

// DynamoAPI is the subset of the DynamoDB client used by DynamoAdapter.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoAdapter is a DynamoDB-backed ProductRepo.
// Products live in a table with primary key `product_id` (string).
type DynamoAdapter struct {
	client DynamoAPI
	table  string
}

func NewDynamoAdapter(client DynamoAPI, table string) *DynamoAdapter {
	return &DynamoAdapter{client: client, table: table}
}

type ddbProduct struct {
	ProductID    string  `dynamodbav:"product_id"`
	StoreID      string  `dynamodbav:"store_id"`
	Name         string  `dynamodbav:"name"`
	Category     string  `dynamodbav:"category"`
	Price        float64 `dynamodbav:"price"`
	ListPrice    float64 `dynamodbav:"list_price"`
	Stock        int     `dynamodbav:"stock"`
	Barcode      *string `dynamodbav:"barcode,omitempty"`
	Manufacturer *string `dynamodbav:"manufacturer,omitempty"`
	Active       bool    `dynamodbav:"active"`
	CreatedAt    string  `dynamodbav:"created_at"`
	UpdatedAt    string  `dynamodbav:"updated_at"`
}

func toDDB(p *models.Product) ddbProduct {
	dp := ddbProduct{
		ProductID:    p.ID.String(),
		StoreID:      p.StoreID,
		Name:         p.Name,
		Category:     p.Category,
		Price:        p.Price,
		ListPrice:    p.ListPrice,
		Stock:        p.Stock,
		Manufacturer: p.Manufacturer,
		Active:       p.Active,
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	// An empty string cannot be a GSI key attribute.
	if p.Barcode != nil && *p.Barcode != "" {
		dp.Barcode = p.Barcode
	}
	return dp
}

func (dp ddbProduct) toModel() models.Product {
	p := models.Product{
		StoreID:      dp.StoreID,
		Name:         dp.Name,
		Category:     dp.Category,
		Price:        dp.Price,
		ListPrice:    dp.ListPrice,
		Stock:        dp.Stock,
		Barcode:      dp.Barcode,
		Manufacturer: dp.Manufacturer,
		Active:       dp.Active,
	}
	p.ID, _ = uuid.Parse(dp.ProductID)
	if t, err := time.Parse(time.RFC3339, dp.CreatedAt); err == nil {
		p.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, dp.UpdatedAt); err == nil {
		p.UpdatedAt = t
	}
	return p
}

func (d *DynamoAdapter) FindByBarcode(ctx context.Context, storeID, barcode string) (*models.Product, error) {
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &d.table,
		IndexName:              aws.String(StoreBarcodeIndex),
		KeyConditionExpression: aws.String("store_id = :s AND barcode = :b"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: storeID},
			":b": &types.AttributeValueMemberS{Value: barcode},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb Query failed: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrNotFound
	}
	var dp ddbProduct
	if err := attributevalue.UnmarshalMap(out.Items[0], &dp); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	p := dp.toModel()
	return &p, nil
}

func (d *DynamoAdapter) Create(ctx context.Context, product *models.Product) error {
	now := time.Now().UTC()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	item, err := attributevalue.MarshalMap(toDDB(product))
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &d.table, Item: item})
	if err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

// Update performs UpdateItem by setting the provided attributes. Attribute
// names go through placeholders since `name` is a reserved word.
func (d *DynamoAdapter) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		fields[k] = v
	}
	if _, ok := fields["updated_at"]; !ok {
		fields["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	names := make(map[string]string, len(keys))
	values := make(map[string]types.AttributeValue, len(keys))
	for i, k := range keys {
		np, vp := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(fields[k])
		if err != nil {
			return fmt.Errorf("marshal update value: %w", err)
		}
		sets = append(sets, fmt.Sprintf("%s = %s", np, vp))
		names[np] = k
		values[vp] = av
	}

	key, err := attributevalue.MarshalMap(map[string]string{"product_id": id.String()})
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &d.table,
		Key:                       key,
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(product_id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update item failed: %w", err)
	}
	return nil
}

// List scans the store's active products and pages in memory, newest first.
func (d *DynamoAdapter) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	input := &dynamodb.ScanInput{
		TableName:        &d.table,
		FilterExpression: aws.String("store_id = :s AND active = :a"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: filter.StoreID},
			":a": &types.AttributeValueMemberBOOL{Value: true},
		},
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var all []models.Product
	for {
		page, err := d.client.Scan(ctx, input)
		if err != nil {
			return nil, 0, fmt.Errorf("scan page failed: %w", err)
		}
		for _, it := range page.Items {
			var dp ddbProduct
			if err := attributevalue.UnmarshalMap(it, &dp); err != nil {
				return nil, 0, fmt.Errorf("unmarshal item: %w", err)
			}
			if filter.Category != "" && dp.Category != filter.Category {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(dp.Name), search) {
				continue
			}
			all = append(all, dp.toModel())
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	pageNum, perPage := normalizePage(filter.Page, filter.PerPage)
	start := (pageNum - 1) * perPage
	if start >= len(all) {
		return []models.Product{}, total, nil
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (d *DynamoAdapter) EnsureSchema(ctx context.Context) error {
	// Table and GSI creation is handled by infrastructure.
	return nil
}
