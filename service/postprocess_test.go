package service

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/rerank"
)

// fixedSource 每次返回同一组打分结果的副本。
type fixedSource struct {
	scores map[string]float64
	order  []string
}

func (s *fixedSource) Name() string { return "recall.content" }

func (s *fixedSource) Recall(context.Context, *core.RecommendContext) ([]*core.Item, error) {
	out := make([]*core.Item, 0, len(s.order))
	for _, id := range s.order {
		it := core.NewItem(id)
		it.Score = s.scores[id]
		it.AddReason("fixed")
		out = append(out, it)
	}
	return out, nil
}

// reverseNode 反转顺序，模拟一个打乱分数顺序的自定义节点。
type reverseNode struct{}

func (reverseNode) Name() string        { return "test.reverse" }
func (reverseNode) Kind() pipeline.Kind { return pipeline.KindReRank }
func (reverseNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	out := slices.Clone(items)
	slices.Reverse(out)
	return out, nil
}

func generateWithChain(t *testing.T, chain *pipeline.Pipeline, limit int) *GenerateResponse {
	t.Helper()
	catalog := append(healthCatalog(), core.CatalogItem{ID: "D", Title: "Stretch", Category: "fitness"})
	f := newFixture(t, []core.User{{ID: "u1"}}, catalog, []core.Event{view("u1", "A", 0)})
	registry := DefaultAlgorithmRegistry()
	registry.Register(core.AlgorithmContent, &fixedSource{
		scores: map[string]float64{"A": 9, "B": 8, "C": 7, "D": 6},
		order:  []string{"A", "B", "C", "D"},
	})
	g := f.generator(t, WithAlgorithms(registry), WithPostProcess(chain))

	resp, err := g.Generate(context.Background(), GenerateRequest{UserID: "u1", Algorithm: "content", Limit: limit})
	require.NoError(t, err)
	return resp
}

func recommendedIDs(resp *GenerateResponse) []string {
	out := make([]string, 0, len(resp.Recommendations))
	for _, r := range resp.Recommendations {
		out = append(out, r.ItemID)
	}
	return out
}

func TestGenerate_ConfiguredChainCannotExceedLimit(t *testing.T) {
	chain := &pipeline.Pipeline{Name: "postprocess", Nodes: []pipeline.Node{&rerank.TopNNode{N: 6}}}
	resp := generateWithChain(t, chain, 2)
	assert.Equal(t, []string{"B", "C"}, recommendedIDs(resp))
	assert.Equal(t, 2, resp.TotalRecommendations)
}

func TestGenerate_ConfiguredChainCannotKeepViewed(t *testing.T) {
	resp := generateWithChain(t, &pipeline.Pipeline{Name: "postprocess"}, 5)
	assert.Equal(t, []string{"B", "C", "D"}, recommendedIDs(resp))
}

func TestGenerate_ConfiguredChainCannotBreakScoreOrder(t *testing.T) {
	chain := &pipeline.Pipeline{Name: "postprocess", Nodes: []pipeline.Node{reverseNode{}}}
	resp := generateWithChain(t, chain, 5)
	require.Len(t, resp.Recommendations, 3)
	for i := 1; i < len(resp.Recommendations); i++ {
		assert.GreaterOrEqual(t, resp.Recommendations[i-1].Score, resp.Recommendations[i].Score)
	}
	assert.Equal(t, []string{"B", "C", "D"}, recommendedIDs(resp))
}
