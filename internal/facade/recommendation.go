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

type Recommendation struct {
	c client
}

func NewRecommendation(opts Options) *Recommendation {
	return &Recommendation{c: newClient(DependencyRecommendation, opts)}
}

func (r *Recommendation) CreateRecommendation(ctx context.Context, rc reqctx.RequestContext, body model.Recommendation) (model.Recommendation, error) {
	var created model.Recommendation
	err := r.c.do(ctx, rc, http.MethodPost, "/recommendation", nil, body, &created)
	return created, err
}

// GetRecommendations never returns a nil slice on success.
func (r *Recommendation) GetRecommendations(ctx context.Context, rc reqctx.RequestContext, productID int) ([]model.Recommendation, error) {
	var recs []model.Recommendation
	q := url.Values{"productId": {strconv.Itoa(productID)}}
	if err := r.c.do(ctx, rc, http.MethodGet, "/recommendation", q, nil, &recs); err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []model.Recommendation{}
	}
	return recs, nil
}

// DeleteRecommendations removes every recommendation of productID.
func (r *Recommendation) DeleteRecommendations(ctx context.Context, rc reqctx.RequestContext, productID int) error {
	q := url.Values{"productId": {strconv.Itoa(productID)}}
	err := r.c.do(ctx, rc, http.MethodDelete, "/recommendation", q, nil, nil)
	if fault.Is(err, fault.NotFound) {
		return nil
	}
	return err
}
