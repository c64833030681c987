package composite

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"product-composite/internal/facade"
	"product-composite/internal/fault"
	"product-composite/internal/model"
	"product-composite/internal/reqctx"
	"product-composite/internal/resilience"
)

// FallbackProductName prefixes the name of degraded product records.
const FallbackProductName = "Fallback product"

// notInFallbackCache is the product id the fallback refuses to serve.
const notInFallbackCache = 13

// ReadOptions are diagnostic knobs passed through to the product service.
type ReadOptions struct {
	Delay        int
	FaultPercent int
}

// GetAggregate reads the product, its recommendations and its reviews
// concurrently and merges them once all three calls have settled.
//
// A product failure always fails the read, except an open product circuit,
// which is answered with a fallback product. Any recommendation or review
// failure fails the read too. When several calls fail the error reported is
// the product's, then the recommendations', then the reviews'.
func (s *Service) GetAggregate(ctx context.Context, rc reqctx.RequestContext, productID int, opts ReadOptions) (model.ProductAggregate, error) {
	if productID < 1 {
		return model.ProductAggregate{}, fault.InvalidID(productID)
	}

	ctx, span := tracer.Start(ctx, "GetAggregate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("product.id", productID),
		attribute.String("username", rc.Username),
		attribute.String("correlation_id", rc.CorrelationID),
	)

	s.log.Info("will get composite product info", "productId", productID, "username", rc.Username, "correlationId", rc.CorrelationID)

	if s.aggregateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.aggregateTimeout)
		defer cancel()
	}

	var (
		product    model.Product
		recs       []model.Recommendation
		reviews    []model.Review
		productErr error
		recErr     error
		reviewErr  error
	)

	// Branches never return an error so that no branch cancels another;
	// each result is inspected after Wait.
	var g errgroup.Group
	g.Go(func() error {
		product, productErr = s.readProduct(ctx, rc, productID, opts)
		return nil
	})
	g.Go(func() error {
		recs, recErr = resilience.ExecuteRead(ctx, s.recommendationPolicy, func(ctx context.Context) ([]model.Recommendation, error) {
			return s.recommendations.GetRecommendations(ctx, rc, productID)
		})
		return nil
	})
	g.Go(func() error {
		reviews, reviewErr = resilience.ExecuteRead(ctx, s.reviewPolicy, func(ctx context.Context) ([]model.Review, error) {
			return s.reviews.GetReviews(ctx, rc, productID)
		})
		return nil
	})
	_ = g.Wait()

	for _, err := range []error{productErr, recErr, reviewErr} {
		if err != nil {
			s.log.Warn("getCompositeProduct failed",
				"productId", productID,
				"kind", fault.KindOf(err).String(),
				"dependency", fault.DependencyOf(err),
				"correlationId", rc.CorrelationID,
				"error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, fault.KindOf(err).String())
			return model.ProductAggregate{}, err
		}
	}

	if len(recs) == 0 {
		s.log.Debug("no recommendations found", "productId", productID)
	}
	if len(reviews) == 0 {
		s.log.Debug("no reviews found", "productId", productID)
	}

	return Build(product, recs, reviews, s.serviceAddress), nil
}

func (s *Service) readProduct(ctx context.Context, rc reqctx.RequestContext, productID int, opts ReadOptions) (model.Product, error) {
	p, err := resilience.ExecuteRead(ctx, s.productPolicy, func(ctx context.Context) (model.Product, error) {
		return s.products.GetProduct(ctx, rc, productID, opts.Delay, opts.FaultPercent)
	})
	return resilience.WithFallback(p, err, func() (model.Product, error) {
		return s.productFallback(productID)
	})
}

// productFallback stands in for the product while its circuit is open.
func (s *Service) productFallback(productID int) (model.Product, error) {
	if productID == notInFallbackCache {
		msg := fmt.Sprintf("Product Id: %d not found in fallback cache!", productID)
		s.log.Warn(msg)
		return model.Product{}, fault.New(fault.NotFound, facade.DependencyProduct, "%s", msg)
	}
	s.log.Warn("product circuit open, using fallback product", "productId", productID)
	return model.Product{
		ProductID:      productID,
		Name:           fmt.Sprintf("%s%d", FallbackProductName, productID),
		Weight:         productID,
		ServiceAddress: s.serviceAddress,
	}, nil
}
