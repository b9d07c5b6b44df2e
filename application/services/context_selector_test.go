package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"labsos-backend/application/ports"
	"labsos-backend/domain/search"
	"labsos-backend/domain/tree"
	"labsos-backend/infrastructure/persistence/memory"
	"labsos-backend/pkg/observability"
)

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) RecordSearch(ctx context.Context, rec ports.SearchRecord) {
	m.Called(rec)
}

func (m *mockMetrics) RecordFallback(reason search.Strategy) {
	m.Called(reason)
}

func (m *mockMetrics) RecordTruncation(dropped int) {
	m.Called(dropped)
}

func newMetrics() *mockMetrics {
	m := new(mockMetrics)
	m.On("RecordFallback", mock.Anything).Maybe()
	m.On("RecordTruncation", mock.Anything).Maybe()
	return m
}

func newSelector(t *testing.T, tuning search.Tuning, semantic SemanticContextFetcher, metrics ports.SearchMetrics) *ContextSelector {
	t.Helper()
	store, err := NewTuningStore(tuning, zap.NewNop())
	require.NoError(t, err)
	return NewContextSelector(
		search.NewRuleClassifier(),
		NewTreeContextFetcher(zap.NewNop()),
		semantic,
		store,
		metrics,
		observability.NewTracer("test", false),
		zap.NewNop(),
	)
}

func realSemantic() *SemanticFetcher {
	return NewSemanticFetcher(&countingEmbedder{vec: towardQuery}, zap.NewNop())
}

func TestSelect_ScenarioA_SmallTree(t *testing.T) {
	store := memory.NewStore()
	seedTree(store, 1, 5, allToward)
	s := newSelector(t, search.DefaultTuning(), realSemantic(), newMetrics())

	sel, err := s.Select(context.Background(), store, SelectionRequest{TreeID: testTree, Query: "list all steps", TotalNodes: 5})
	require.NoError(t, err)

	assert.Equal(t, search.StrategyFullSmallTree, sel.Executed)
	assert.Equal(t, search.StrategyFullSmallTree, sel.Selected)
	assert.False(t, sel.UsedSemanticSearch)
	assert.Equal(t, 5, sel.ContextNodes)
}

func TestSelect_ScenarioB_SimpleQueryLargeTree(t *testing.T) {
	store := memory.NewStore()
	seedTree(store, 10, 50, firstToward(40))
	s := newSelector(t, search.DefaultTuning(), realSemantic(), newMetrics())

	sel, err := s.Select(context.Background(), store, SelectionRequest{TreeID: testTree, Query: "what is step 3", TotalNodes: 500})
	require.NoError(t, err)

	assert.Equal(t, search.StrategySemantic, sel.Executed)
	assert.Equal(t, search.ClassificationSimple, sel.Classification)
	assert.True(t, sel.UsedSemanticSearch)
	assert.LessOrEqual(t, sel.ContextNodes, search.DefaultTuning().SimpleQuery.MaxNodes)
	assert.Positive(t, sel.ContextNodes)
}

func TestSelect_ScenarioC_AccuracyCritical(t *testing.T) {
	store := memory.NewStore()
	seedTree(store, 10, 50, firstToward(3))
	semantic := new(mockSemantic)
	s := newSelector(t, search.DefaultTuning(), semantic, newMetrics())

	sel, err := s.Select(context.Background(), store, SelectionRequest{TreeID: testTree, Query: "compare all analysis steps for consistency", TotalNodes: 500})
	require.NoError(t, err)

	assert.Equal(t, search.StrategyFullAccuracyCritical, sel.Executed)
	assert.Equal(t, search.ClassificationAccuracyCritical, sel.Classification)
	assert.Equal(t, 500, sel.ContextNodes)
	semantic.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSelect_ScenarioD_EmptySemanticFallsBack(t *testing.T) {
	store := memory.NewStore()
	seedTree(store, 4, 25, allAway)
	tuning := search.DefaultTuning()
	tuning.SimpleQuery.MaxNodes = 10
	tuning.AmbiguousQuery.MaxNodes = 10
	metrics := newMetrics()
	s := newSelector(t, tuning, realSemantic(), metrics)

	for _, q := range []string{"what is step 3", "how should I normalise the raw reads before alignment"} {
		sel, err := s.Select(context.Background(), store, SelectionRequest{TreeID: testTree, Query: q, TotalNodes: 100})
		require.NoError(t, err)

		assert.True(t, sel.Selected.IsSemantic())
		assert.Equal(t, search.StrategyFullFallbackEmpty, sel.Executed)
		assert.False(t, sel.UsedSemanticSearch)
		assert.Equal(t, 100, sel.ContextNodes)
	}
	metrics.AssertCalled(t, "RecordFallback", search.StrategyFullFallbackEmpty)
}

func TestSelect_SemanticErrorFallsBack(t *testing.T) {
	store := memory.NewStore()
	seedTree(store, 4, 25, allToward)
	metrics := newMetrics()
	s := newSelector(t, search.DefaultTuning(), realSemantic(), metrics)

	ds := &failingStore{Store: store, matchErr: errStoreDown}
	sel, err := s.Select(context.Background(), ds, SelectionRequest{TreeID: testTree, Query: "what is step 3", TotalNodes: 100})
	require.NoError(t, err)

	assert.Equal(t, search.StrategySemantic, sel.Selected)
	assert.Equal(t, search.StrategyFullFallbackError, sel.Executed)
	assert.False(t, sel.UsedSemanticSearch)
	assert.Equal(t, 100, sel.ContextNodes)
	metrics.AssertCalled(t, "RecordFallback", search.StrategyFullFallbackError)
}

func TestSelect_ThresholdMonotonicity(t *testing.T) {
	store := memory.NewStore()
	seedTree(store, 5, 10, allAway)
	s := newSelector(t, search.DefaultTuning(), new(mockSemantic), newMetrics())

	queries := []string{"what is step 3", "compare everything", "list all steps", ""}
	for total := 0; total <= search.DefaultTuning().SmallTreeThreshold; total += 10 {
		for _, q := range queries {
			sel, err := s.Select(context.Background(), store, SelectionRequest{TreeID: testTree, Query: q, TotalNodes: total})
			require.NoError(t, err)
			assert.Equal(t, search.StrategyFullSmallTree, sel.Executed, "total=%d query=%q", total, q)
		}
	}
}

func TestSelect_AccuracyOverrideAtAnySize(t *testing.T) {
	store := memory.NewStore()
	seedTree(store, 1, 3, allToward)
	s := newSelector(t, search.DefaultTuning(), new(mockSemantic), newMetrics())

	for _, total := range []int{51, 500, 50000} {
		sel, err := s.Select(context.Background(), store, SelectionRequest{TreeID: testTree, Query: "summarize the entire workflow", TotalNodes: total})
		require.NoError(t, err)
		assert.Equal(t, search.StrategyFullAccuracyCritical, sel.Executed)
	}
}

type mockSemantic struct {
	mock.Mock
}

func (m *mockSemantic) Fetch(ctx context.Context, ds ports.TreeDataSource, treeID, query string, opts search.SearchOptions) (*tree.ContextPayload, error) {
	args := m.Called(ctx, ds, treeID, query, opts)
	p, _ := args.Get(0).(*tree.ContextPayload)
	return p, args.Error(1)
}

// overshoot builds a payload of k nodes spread over blocks of size 3.
func overshoot(k int) *tree.ContextPayload {
	p := tree.NewContextPayload(&tree.Tree{ID: testTree, Name: "Assay"})
	for i := 0; i < k; i++ {
		if i%3 == 0 {
			p.Blocks = append(p.Blocks, tree.ContextBlock{Block: tree.Block{ID: blockID(i / 3)}})
		}
		last := &p.Blocks[len(p.Blocks)-1]
		last.Nodes = append(last.Nodes, tree.Node{ID: nodeID(i)})
	}
	return p
}

func TestSelect_TruncatesOvershoot(t *testing.T) {
	tuning := search.DefaultTuning()

	for _, k := range []int{31, 45, 100} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			payload := overshoot(k)
			want := payloadIDs(payload)[:tuning.AmbiguousQuery.MaxNodes]

			semantic := new(mockSemantic)
			semantic.On("Fetch", mock.Anything, mock.Anything, testTree, mock.Anything, tuning.AmbiguousQuery).Return(payload, nil)
			metrics := newMetrics()
			s := newSelector(t, tuning, semantic, metrics)

			sel, err := s.Select(context.Background(), memory.NewStore(), SelectionRequest{
				TreeID:     testTree,
				Query:      "how should I normalise the raw reads before alignment",
				TotalNodes: 1000,
			})
			require.NoError(t, err)

			assert.Equal(t, search.StrategySemanticConservative, sel.Executed)
			assert.True(t, sel.UsedSemanticSearch)
			assert.Equal(t, tuning.AmbiguousQuery.MaxNodes, sel.ContextNodes)
			assert.Equal(t, k-tuning.AmbiguousQuery.MaxNodes, sel.TruncatedNodes)
			assert.Equal(t, want, payloadIDs(sel.Payload), "relative order kept")
			for _, b := range sel.Payload.Blocks {
				assert.NotEmpty(t, b.Nodes)
			}
			metrics.AssertCalled(t, "RecordTruncation", k-tuning.AmbiguousQuery.MaxNodes)
		})
	}
}

func TestSelect_NoTruncationWithinBudget(t *testing.T) {
	tuning := search.DefaultTuning()
	semantic := new(mockSemantic)
	semantic.On("Fetch", mock.Anything, mock.Anything, testTree, mock.Anything, tuning.SimpleQuery).Return(overshoot(7), nil)
	metrics := newMetrics()
	s := newSelector(t, tuning, semantic, metrics)

	sel, err := s.Select(context.Background(), memory.NewStore(), SelectionRequest{TreeID: testTree, Query: "what is step 3", TotalNodes: 1000})
	require.NoError(t, err)

	assert.Equal(t, 7, sel.ContextNodes)
	assert.Zero(t, sel.TruncatedNodes)
	metrics.AssertNotCalled(t, "RecordTruncation", mock.Anything)
}

func TestSelect_TreeVanished(t *testing.T) {
	s := newSelector(t, search.DefaultTuning(), new(mockSemantic), newMetrics())

	_, err := s.Select(context.Background(), memory.NewStore(), SelectionRequest{TreeID: testTree, Query: "q", TotalNodes: 1})

	assert.ErrorIs(t, err, ErrTreeNotFound)
}

func TestTuningStore(t *testing.T) {
	store, err := NewTuningStore(search.DefaultTuning(), zap.NewNop())
	require.NoError(t, err)

	next := search.DefaultTuning()
	next.SmallTreeThreshold = 10
	require.NoError(t, store.Update(next))
	assert.Equal(t, 10, store.Current().SmallTreeThreshold)

	bad := next
	bad.SimpleQuery.MaxNodes = 0
	assert.Error(t, store.Update(bad))
	assert.Equal(t, 10, store.Current().SmallTreeThreshold, "invalid update keeps old tuning")

	_, err = NewTuningStore(bad, zap.NewNop())
	assert.Error(t, err)
}
