package composite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-composite/internal/model"
)

func TestBuild(t *testing.T) {
	product := model.Product{ProductID: 1, Name: "name", Weight: 7, ServiceAddress: "product/1"}
	recs := []model.Recommendation{
		{ProductID: 1, RecommendationID: 2, Author: "b", Rate: 5, Content: "c2", ServiceAddress: "rec/1"},
		{ProductID: 1, RecommendationID: 1, Author: "a", Rate: 1, Content: "c1", ServiceAddress: "rec/2"},
	}
	reviews := []model.Review{
		{ProductID: 1, ReviewID: 3, Author: "a", Subject: "s", Content: "c", ServiceAddress: "rev/1"},
	}

	agg := Build(product, recs, reviews, "composite/7000")

	assert.Equal(t, 1, agg.ProductID)
	assert.Equal(t, "name", agg.Name)
	assert.Equal(t, 7, agg.Weight)
	assert.Equal(t, []model.RecommendationSummary{
		{RecommendationID: 2, Author: "b", Rate: 5, Content: "c2"},
		{RecommendationID: 1, Author: "a", Rate: 1, Content: "c1"},
	}, agg.Recommendations)
	assert.Equal(t, []model.ReviewSummary{{ReviewID: 3, Author: "a", Subject: "s", Content: "c"}}, agg.Reviews)
	require.NotNil(t, agg.ServiceAddresses)
	assert.Equal(t, model.ServiceAddresses{
		Composite:      "composite/7000",
		Product:        "product/1",
		Review:         "rev/1",
		Recommendation: "rec/1",
	}, *agg.ServiceAddresses)
}

func TestBuildEmptyLists(t *testing.T) {
	agg := Build(model.Product{ProductID: 2, Name: "n", ServiceAddress: "product/1"}, nil, []model.Review{}, "composite/7000")

	assert.NotNil(t, agg.Recommendations)
	assert.Empty(t, agg.Recommendations)
	assert.NotNil(t, agg.Reviews)
	assert.Empty(t, agg.Reviews)
	assert.Equal(t, "", agg.ServiceAddresses.Recommendation)
	assert.Equal(t, "", agg.ServiceAddresses.Review)
	assert.Equal(t, "product/1", agg.ServiceAddresses.Product)
}
