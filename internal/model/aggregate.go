package model

// ProductAggregate is the client facing composite view. It is always derived
// from the three downstream services and never stored.
type ProductAggregate struct {
	ProductID        int                     `json:"productId" validate:"required,min=1"`
	Name             string                  `json:"name" validate:"required"`
	Weight           int                     `json:"weight" validate:"gte=0"`
	Recommendations  []RecommendationSummary `json:"recommendations" validate:"dive"`
	Reviews          []ReviewSummary         `json:"reviews" validate:"dive"`
	ServiceAddresses *ServiceAddresses       `json:"serviceAddresses,omitempty"`
}

type RecommendationSummary struct {
	RecommendationID int    `json:"recommendationId" validate:"required,min=1"`
	Author           string `json:"author" validate:"required"`
	Rate             int    `json:"rate" validate:"gte=0"`
	Content          string `json:"content"`
}

type ReviewSummary struct {
	ReviewID int    `json:"reviewId" validate:"required,min=1"`
	Author   string `json:"author" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
	Content  string `json:"content"`
}

// ServiceAddresses records which host served each part of an aggregate.
// An address is empty when no data was obtained from that service.
type ServiceAddresses struct {
	Composite      string `json:"cmp"`
	Product        string `json:"pro"`
	Review         string `json:"rev"`
	Recommendation string `json:"rec"`
}
