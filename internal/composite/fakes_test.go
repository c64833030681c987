package composite

import (
	"context"
	"errors"
	"sync"
	"time"

	"product-composite/internal/model"
	"product-composite/internal/reqctx"
)

// fakeBackend stands in for one downstream service. It counts calls per
// operation and can be told to fail, to be slow, or to block until the
// caller gives up.
type fakeBackend struct {
	mu        sync.Mutex
	calls     map[string]int
	failOn    map[string]error
	delay     time.Duration
	block     bool
	cancelled int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}, failOn: map[string]error{}}
}

func (f *fakeBackend) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	err := f.failOn[op]
	delay, block := f.delay, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		f.mu.Lock()
		f.cancelled++
		f.mu.Unlock()
		return ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeBackend) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[op] = err
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) cancelledCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

type fakeProducts struct {
	*fakeBackend
	product model.Product
	created []model.Product
}

func (f *fakeProducts) CreateProduct(ctx context.Context, _ reqctx.RequestContext, body model.Product) (model.Product, error) {
	if err := f.enter(ctx, "create"); err != nil {
		return model.Product{}, err
	}
	f.mu.Lock()
	f.created = append(f.created, body)
	f.mu.Unlock()
	return body, nil
}

func (f *fakeProducts) GetProduct(ctx context.Context, _ reqctx.RequestContext, productID, _, _ int) (model.Product, error) {
	if err := f.enter(ctx, "get"); err != nil {
		return model.Product{}, err
	}
	p := f.product
	p.ProductID = productID
	return p, nil
}

func (f *fakeProducts) DeleteProduct(ctx context.Context, _ reqctx.RequestContext, _ int) error {
	return f.enter(ctx, "delete")
}

type fakeRecommendations struct {
	*fakeBackend
	recs    []model.Recommendation
	created []model.Recommendation
	// failAfter makes the n-th create (1 based) fail with failErr.
	failAfter int
	failErr   error
}

func (f *fakeRecommendations) CreateRecommendation(ctx context.Context, _ reqctx.RequestContext, body model.Recommendation) (model.Recommendation, error) {
	if err := f.enter(ctx, "create"); err != nil {
		return model.Recommendation{}, err
	}
	if f.failAfter > 0 && f.count("create") == f.failAfter {
		return model.Recommendation{}, f.failErr
	}
	f.mu.Lock()
	f.created = append(f.created, body)
	f.mu.Unlock()
	return body, nil
}

func (f *fakeRecommendations) GetRecommendations(ctx context.Context, _ reqctx.RequestContext, _ int) ([]model.Recommendation, error) {
	if err := f.enter(ctx, "get"); err != nil {
		return nil, err
	}
	return f.recs, nil
}

func (f *fakeRecommendations) DeleteRecommendations(ctx context.Context, _ reqctx.RequestContext, _ int) error {
	return f.enter(ctx, "delete")
}

type fakeReviews struct {
	*fakeBackend
	reviews []model.Review
	created []model.Review
}

func (f *fakeReviews) CreateReview(ctx context.Context, _ reqctx.RequestContext, body model.Review) (model.Review, error) {
	if err := f.enter(ctx, "create"); err != nil {
		return model.Review{}, err
	}
	f.mu.Lock()
	f.created = append(f.created, body)
	f.mu.Unlock()
	return body, nil
}

func (f *fakeReviews) GetReviews(ctx context.Context, _ reqctx.RequestContext, _ int) ([]model.Review, error) {
	if err := f.enter(ctx, "get"); err != nil {
		return nil, err
	}
	return f.reviews, nil
}

func (f *fakeReviews) DeleteReviews(ctx context.Context, _ reqctx.RequestContext, _ int) error {
	return f.enter(ctx, "delete")
}

// recordingPublisher keeps events per channel, like a test binder would.
type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]model.Event
	err    error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: map[string][]model.Event{}}
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, evt model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[channel] = append(p.events[channel], evt)
	return p.err
}

func (p *recordingPublisher) on(channel string) []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Event(nil), p.events[channel]...)
}

func (p *recordingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, evts := range p.events {
		n += len(evts)
	}
	return n
}

var errBroker = errors.New("broker unavailable")

type fixture struct {
	products        *fakeProducts
	recommendations *fakeRecommendations
	reviews         *fakeReviews
	publisher       *recordingPublisher
}

func newFixture() *fixture {
	return &fixture{
		products:        &fakeProducts{fakeBackend: newFakeBackend(), product: model.Product{Name: "name", Weight: 1, ServiceAddress: "product/8080"}},
		recommendations: &fakeRecommendations{fakeBackend: newFakeBackend()},
		reviews:         &fakeReviews{fakeBackend: newFakeBackend()},
		publisher:       newRecordingPublisher(),
	}
}

func (f *fixture) service(mutate ...func(*Options)) *Service {
	opts := Options{
		Products:        f.products,
		Recommendations: f.recommendations,
		Reviews:         f.reviews,
		Publisher:       f.publisher,
		ServiceAddress:  "composite/7000",
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewService(opts)
}

func (f *fixture) remoteCalls() int {
	return f.products.total() + f.recommendations.total() + f.reviews.total()
}
