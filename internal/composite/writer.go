package composite

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"product-composite/internal/fault"
	"product-composite/internal/model"
	"product-composite/internal/reqctx"
	"product-composite/internal/resilience"
)

// CreateAggregate creates the product, then each recommendation, then each
// review, one call at a time and in list order.
//
// A failed product create aborts everything. A failed recommendation create
// skips the remaining recommendations but the reviews are still attempted,
// and the other way round for reviews. Nothing already created is undone:
// the caller retries or reconciles. Every attempted create emits one CREATE
// event, whatever its outcome. The first failure (product, then
// recommendations, then reviews) is returned.
func (s *Service) CreateAggregate(ctx context.Context, rc reqctx.RequestContext, body model.ProductAggregate) error {
	productID := body.ProductID
	if productID < 1 {
		return fault.InvalidID(productID)
	}

	ctx, span := tracer.Start(ctx, "CreateAggregate")
	defer span.End()
	span.SetAttributes(attribute.Int("product.id", productID), attribute.String("username", rc.Username))

	s.log.Debug("createCompositeProduct: creates a new composite entity", "productId", productID, "username", rc.Username)

	product := model.Product{ProductID: productID, Name: body.Name, Weight: body.Weight}
	_, err := resilience.Execute(ctx, s.productPolicy, func(ctx context.Context) (model.Product, error) {
		return s.products.CreateProduct(ctx, rc, product)
	})
	s.emit(ctx, rc, model.ChannelProducts, model.NewEvent(model.EventCreate, productID, product))
	if err != nil {
		s.warnWrite("createCompositeProduct", productID, rc, err)
		span.RecordError(err)
		return err
	}

	var firstErr error
	for _, r := range body.Recommendations {
		rec := model.Recommendation{
			ProductID:        productID,
			RecommendationID: r.RecommendationID,
			Author:           r.Author,
			Rate:             r.Rate,
			Content:          r.Content,
		}
		_, err := resilience.Execute(ctx, s.recommendationPolicy, func(ctx context.Context) (model.Recommendation, error) {
			return s.recommendations.CreateRecommendation(ctx, rc, rec)
		})
		s.emit(ctx, rc, model.ChannelRecommendations, model.NewEvent(model.EventCreate, productID, rec))
		if err != nil {
			s.warnWrite("createCompositeProduct", productID, rc, err)
			firstErr = err
			break
		}
	}

	for _, r := range body.Reviews {
		review := model.Review{
			ProductID: productID,
			ReviewID:  r.ReviewID,
			Author:    r.Author,
			Subject:   r.Subject,
			Content:   r.Content,
		}
		_, err := resilience.Execute(ctx, s.reviewPolicy, func(ctx context.Context) (model.Review, error) {
			return s.reviews.CreateReview(ctx, rc, review)
		})
		s.emit(ctx, rc, model.ChannelReviews, model.NewEvent(model.EventCreate, productID, review))
		if err != nil {
			s.warnWrite("createCompositeProduct", productID, rc, err)
			if firstErr == nil {
				firstErr = err
			}
			break
		}
	}

	if firstErr != nil {
		span.RecordError(firstErr)
		return firstErr
	}
	s.log.Debug("createCompositeProduct: composite entities created", "productId", productID)
	return nil
}

// DeleteAggregate deletes the product, its recommendations and its reviews.
// The three deletes are independent: each is attempted and emits one DELETE
// event even when an earlier one failed. Deleting a product that does not
// exist succeeds. The first failure in that order is returned.
func (s *Service) DeleteAggregate(ctx context.Context, rc reqctx.RequestContext, productID int) error {
	if productID < 1 {
		return fault.InvalidID(productID)
	}

	ctx, span := tracer.Start(ctx, "DeleteAggregate")
	defer span.End()
	span.SetAttributes(attribute.Int("product.id", productID), attribute.String("username", rc.Username))

	s.log.Debug("deleteCompositeProduct: deletes a product aggregate", "productId", productID, "username", rc.Username)

	steps := []struct {
		channel string
		policy  *resilience.Policy
		call    func(ctx context.Context) error
	}{
		{model.ChannelProducts, s.productPolicy, func(ctx context.Context) error {
			return s.products.DeleteProduct(ctx, rc, productID)
		}},
		{model.ChannelRecommendations, s.recommendationPolicy, func(ctx context.Context) error {
			return s.recommendations.DeleteRecommendations(ctx, rc, productID)
		}},
		{model.ChannelReviews, s.reviewPolicy, func(ctx context.Context) error {
			return s.reviews.DeleteReviews(ctx, rc, productID)
		}},
	}

	var firstErr error
	for _, step := range steps {
		_, err := resilience.Execute(ctx, step.policy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, step.call(ctx)
		})
		s.emit(ctx, rc, step.channel, model.NewEvent(model.EventDelete, productID, nil))
		if err != nil {
			s.warnWrite("deleteCompositeProduct", productID, rc, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		span.RecordError(firstErr)
		return firstErr
	}
	s.log.Debug("deleteCompositeProduct: aggregate entities deleted", "productId", productID)
	return nil
}

func (s *Service) warnWrite(op string, productID int, rc reqctx.RequestContext, err error) {
	s.log.Warn(op+" failed",
		"productId", productID,
		"kind", fault.KindOf(err).String(),
		"dependency", fault.DependencyOf(err),
		"correlationId", rc.CorrelationID,
		"error", err)
}
