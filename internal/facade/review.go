package facade

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"product-composite/internal/fault"
	"product-composite/internal/model"
	"product-composite/internal/reqctx"
)

type Review struct {
	c client
}

func NewReview(opts Options) *Review {
	return &Review{c: newClient(DependencyReview, opts)}
}

func (r *Review) CreateReview(ctx context.Context, rc reqctx.RequestContext, body model.Review) (model.Review, error) {
	var created model.Review
	err := r.c.do(ctx, rc, http.MethodPost, "/review", nil, body, &created)
	return created, err
}

func (r *Review) GetReviews(ctx context.Context, rc reqctx.RequestContext, productID int) ([]model.Review, error) {
	var reviews []model.Review
	q := url.Values{"productId": {strconv.Itoa(productID)}}
	if err := r.c.do(ctx, rc, http.MethodGet, "/review", q, nil, &reviews); err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	return reviews, nil
}

func (r *Review) DeleteReviews(ctx context.Context, rc reqctx.RequestContext, productID int) error {
	q := url.Values{"productId": {strconv.Itoa(productID)}}
	err := r.c.do(ctx, rc, http.MethodDelete, "/review", q, nil, nil)
	if fault.Is(err, fault.NotFound) {
		return nil
	}
	return err
}
