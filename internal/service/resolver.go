package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolution strategies
const (
	StrategyPrimary = "primary"
	StrategyTitle   = "title"
	// strategyUnresolved only labels metrics
	strategyUnresolved = "unresolved"
)

var productIDPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// ExtractProductID returns the first UUID embedded anywhere in ref, in
// canonical lowercase form.
func ExtractProductID(ref string) (string, bool) {
	match := productIDPattern.FindString(ref)
	if match == "" {
		return "", false
	}
	id, err := uuid.Parse(match)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// ResolvedAsset is a purchased digital item paired with its asset reference
type ResolvedAsset struct {
	ItemID   string `json:"item_id"`
	Title    string `json:"title"`
	AssetURL string `json:"asset_url"`
}

// Resolution is the outcome of resolving one item: Resolved or Unresolved
type Resolution interface {
	isResolution()
}

// Resolved carries the asset and the strategy that found it
type Resolved struct {
	ResolvedAsset
	Strategy string
}

// Unresolved records why an item has no deliverable asset
type Unresolved struct {
	ItemID string
	Title  string
	Reason string
}

func (Resolved) isResolution()   {}
func (Unresolved) isResolution() {}

// ResolveResult is the per-order resolution summary
type ResolveResult struct {
	OrderID      string
	DigitalItems int
	Assets       []ResolvedAsset
}

// Mismatch reports whether some purchased digital items did not resolve
func (r *ResolveResult) Mismatch() bool {
	return len(r.Assets) < r.DigitalItems
}

// DigitalAssetResolver maps purchased digital items to catalog assets
type DigitalAssetResolver struct {
	store   RecordStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewDigitalAssetResolver creates a new resolver
func NewDigitalAssetResolver(store RecordStore, timeout time.Duration) *DigitalAssetResolver {
	return &DigitalAssetResolver{
		store:   store,
		timeout: timeout,
		logger:  util.ComponentLogger("asset-resolver"),
	}
}

// Resolve resolves every digital item of the order. Items that cannot be
// resolved are dropped; only a failed item query is an error.
func (r *DigitalAssetResolver) Resolve(ctx context.Context, orderID string) (*ResolveResult, error) {
	ctx, span := util.StartSpan(ctx, "DigitalAssetResolver.Resolve")
	defer span.End()

	items, err := fetchWithTimeout(ctx, r.timeout, func(ctx context.Context) ([]models.OrderItem, error) {
		return r.store.GetOrderItemsByCategory(ctx, orderID, models.CategoryPDF)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to fetch digital items for order %s: %w", orderID, err)
	}

	result := &ResolveResult{
		OrderID:      orderID,
		DigitalItems: len(items),
		Assets:       make([]ResolvedAsset, 0, len(items)),
	}

	for _, item := range items {
		switch res := r.ResolveItem(ctx, item).(type) {
		case Resolved:
			util.AssetResolutionsTotal.WithLabelValues(res.Strategy).Inc()
			result.Assets = append(result.Assets, res.ResolvedAsset)
		case Unresolved:
			util.AssetResolutionsTotal.WithLabelValues(strategyUnresolved).Inc()
			r.logger.Info("Digital item unresolved",
				zap.String("order_id", orderID),
				zap.String("item_id", res.ItemID),
				zap.String("title", res.Title),
				zap.String("reason", res.Reason))
		default:
			panic(fmt.Sprintf("unexpected resolution %T", res))
		}
	}

	if result.Mismatch() {
		util.AssetResolutionMismatchTotal.Inc()
		r.logger.Warn("Resolved fewer assets than digital items purchased",
			zap.String("order_id", orderID),
			zap.Int("expected", result.DigitalItems),
			zap.Int("resolved", len(result.Assets)))
	}

	return result, nil
}

// ResolveItem tries the product id embedded in the image reference first and
// falls back to an exact title match.
func (r *DigitalAssetResolver) ResolveItem(ctx context.Context, item models.OrderItem) Resolution {
	if productID, ok := ExtractProductID(item.ProductImageRef); ok {
		product, err := fetchWithTimeout(ctx, r.timeout, func(ctx context.Context) (*models.Product, error) {
			return r.store.GetProductByID(ctx, productID)
		})
		switch {
		case err == nil && product.Asset() != "":
			return r.resolved(item, product.Asset(), StrategyPrimary)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			r.logger.Debug("Primary lookup failed, trying title",
				zap.String("item_id", item.ID),
				zap.String("product_id", productID),
				zap.Error(err))
		}
	}

	title := strings.TrimSpace(item.ProductTitle)
	if title == "" {
		return Unresolved{ItemID: item.ID, Title: item.ProductTitle, Reason: "no product id and no title"}
	}

	products, err := fetchWithTimeout(ctx, r.timeout, func(ctx context.Context) ([]models.Product, error) {
		return r.store.GetProductsByTitle(ctx, item.ProductTitle)
	})
	if err != nil {
		return Unresolved{ItemID: item.ID, Title: item.ProductTitle, Reason: "title lookup failed: " + err.Error()}
	}

	var candidates []models.Product
	for _, p := range products {
		if p.Asset() != "" {
			candidates = append(candidates, p)
		}
	}

	switch len(candidates) {
	case 1:
		return r.resolved(item, candidates[0].Asset(), StrategyTitle)
	case 0:
		return Unresolved{ItemID: item.ID, Title: item.ProductTitle, Reason: "no product with an asset matches"}
	default:
		return Unresolved{ItemID: item.ID, Title: item.ProductTitle, Reason: "ambiguous title"}
	}
}

func (r *DigitalAssetResolver) resolved(item models.OrderItem, assetURL, strategy string) Resolved {
	return Resolved{
		ResolvedAsset: ResolvedAsset{
			ItemID:   item.ID,
			Title:    item.ProductTitle,
			AssetURL: assetURL,
		},
		Strategy: strategy,
	}
}
