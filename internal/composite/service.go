// Package composite builds the product aggregate out of the product,
// recommendation and review services and fans writes out to them.
package composite

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"product-composite/internal/facade"
	"product-composite/internal/logger"
	"product-composite/internal/model"
	"product-composite/internal/reqctx"
	"product-composite/internal/resilience"
)

var tracer = otel.Tracer("product-composite/composite")

type ProductService interface {
	CreateProduct(ctx context.Context, rc reqctx.RequestContext, body model.Product) (model.Product, error)
	GetProduct(ctx context.Context, rc reqctx.RequestContext, productID, delay, faultPercent int) (model.Product, error)
	DeleteProduct(ctx context.Context, rc reqctx.RequestContext, productID int) error
}

type RecommendationService interface {
	CreateRecommendation(ctx context.Context, rc reqctx.RequestContext, body model.Recommendation) (model.Recommendation, error)
	GetRecommendations(ctx context.Context, rc reqctx.RequestContext, productID int) ([]model.Recommendation, error)
	DeleteRecommendations(ctx context.Context, rc reqctx.RequestContext, productID int) error
}

type ReviewService interface {
	CreateReview(ctx context.Context, rc reqctx.RequestContext, body model.Review) (model.Review, error)
	GetReviews(ctx context.Context, rc reqctx.RequestContext, productID int) ([]model.Review, error)
	DeleteReviews(ctx context.Context, rc reqctx.RequestContext, productID int) error
}

// Publisher delivers domain events to the channel of one entity type.
// Delivery is fire-and-forget from the composite's point of view.
type Publisher interface {
	Publish(ctx context.Context, channel string, evt model.Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, model.Event) error { return nil }

type Options struct {
	Products        ProductService
	Recommendations RecommendationService
	Reviews         ReviewService

	// Policies default to resilience.DefaultBreakerSettings when nil.
	ProductPolicy        *resilience.Policy
	RecommendationPolicy *resilience.Policy
	ReviewPolicy         *resilience.Policy

	Publisher Publisher
	// ServiceAddress identifies this instance; it also addresses fallback products.
	ServiceAddress string
	// AggregateTimeout bounds a whole GetAggregate. Zero disables it.
	AggregateTimeout time.Duration
	Logger           logger.Logger
}

type Service struct {
	products        ProductService
	recommendations RecommendationService
	reviews         ReviewService

	productPolicy        *resilience.Policy
	recommendationPolicy *resilience.Policy
	reviewPolicy         *resilience.Policy

	publisher        Publisher
	serviceAddress   string
	aggregateTimeout time.Duration
	log              logger.Logger
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	pub := opts.Publisher
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Service{
		products:             opts.Products,
		recommendations:      opts.Recommendations,
		reviews:              opts.Reviews,
		productPolicy:        orDefault(opts.ProductPolicy, facade.DependencyProduct, log),
		recommendationPolicy: orDefault(opts.RecommendationPolicy, facade.DependencyRecommendation, log),
		reviewPolicy:         orDefault(opts.ReviewPolicy, facade.DependencyReview, log),
		publisher:            pub,
		serviceAddress:       opts.ServiceAddress,
		aggregateTimeout:     opts.AggregateTimeout,
		log:                  log,
	}
}

func orDefault(p *resilience.Policy, name string, log logger.Logger) *resilience.Policy {
	if p != nil {
		return p
	}
	return resilience.NewPolicy(resilience.Options{
		Name:    name,
		Breaker: resilience.DefaultBreakerSettings(),
		Logger:  log,
	})
}

// Policies exposes the breakers, e.g. for the status endpoint.
func (s *Service) Policies() *resilience.Registry {
	return resilience.NewRegistry(s.productPolicy, s.recommendationPolicy, s.reviewPolicy)
}

// emit publishes evt and only logs delivery failures: events already handed
// to the broker are never recalled.
func (s *Service) emit(ctx context.Context, rc reqctx.RequestContext, channel string, evt model.Event) {
	if err := s.publisher.Publish(ctx, channel, evt); err != nil {
		s.log.Warn("failed to publish event",
			"channel", channel, "type", evt.Type, "key", evt.Key,
			"correlationId", rc.CorrelationID, "error", err)
	}
}
