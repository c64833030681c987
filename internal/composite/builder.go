package composite

import "product-composite/internal/model"

// Build merges the three sub-results into the client facing aggregate.
// Summaries keep the order of the input lists. The recommendation and review
// addresses are taken from the first element and stay empty for empty lists.
func Build(product model.Product, recs []model.Recommendation, reviews []model.Review, compositeAddress string) model.ProductAggregate {
	recSummaries := make([]model.RecommendationSummary, 0, len(recs))
	for _, r := range recs {
		recSummaries = append(recSummaries, model.RecommendationSummary{
			RecommendationID: r.RecommendationID,
			Author:           r.Author,
			Rate:             r.Rate,
			Content:          r.Content,
		})
	}

	reviewSummaries := make([]model.ReviewSummary, 0, len(reviews))
	for _, r := range reviews {
		reviewSummaries = append(reviewSummaries, model.ReviewSummary{
			ReviewID: r.ReviewID,
			Author:   r.Author,
			Subject:  r.Subject,
			Content:  r.Content,
		})
	}

	addrs := model.ServiceAddresses{
		Composite: compositeAddress,
		Product:   product.ServiceAddress,
	}
	if len(recs) > 0 {
		addrs.Recommendation = recs[0].ServiceAddress
	}
	if len(reviews) > 0 {
		addrs.Review = reviews[0].ServiceAddress
	}

	return model.ProductAggregate{
		ProductID:        product.ProductID,
		Name:             product.Name,
		Weight:           product.Weight,
		Recommendations:  recSummaries,
		Reviews:          reviewSummaries,
		ServiceAddresses: &addrs,
	}
}
