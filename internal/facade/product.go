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

type Product struct {
	c client
}

func NewProduct(opts Options) *Product {
	return &Product{c: newClient(DependencyProduct, opts)}
}

func (p *Product) CreateProduct(ctx context.Context, rc reqctx.RequestContext, body model.Product) (model.Product, error) {
	var created model.Product
	err := p.c.do(ctx, rc, http.MethodPost, "/product", nil, body, &created)
	return created, err
}

// GetProduct reads one product. delay (seconds) and faultPercent are
// diagnostic knobs the product service honours; zero disables them.
func (p *Product) GetProduct(ctx context.Context, rc reqctx.RequestContext, productID, delay, faultPercent int) (model.Product, error) {
	q := url.Values{}
	if delay > 0 {
		q.Set("delay", strconv.Itoa(delay))
	}
	if faultPercent > 0 {
		q.Set("faultPercent", strconv.Itoa(faultPercent))
	}
	var product model.Product
	err := p.c.do(ctx, rc, http.MethodGet, "/product/"+strconv.Itoa(productID), q, nil, &product)
	return product, err
}

// DeleteProduct is idempotent: a product that does not exist is not an error.
func (p *Product) DeleteProduct(ctx context.Context, rc reqctx.RequestContext, productID int) error {
	err := p.c.do(ctx, rc, http.MethodDelete, "/product/"+strconv.Itoa(productID), nil, nil, nil)
	if fault.Is(err, fault.NotFound) {
		return nil
	}
	return err
}
