package forecast

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"EconCast/internal/domain/models"
)

// EnsembleSpec configures the bagged regression-tree forest.
type EnsembleSpec struct {
	Trees          int
	MaxDepth       int // 0 means unlimited
	MinSamplesLeaf int
	Seed           int64
}

func DefaultEnsembleSpec() EnsembleSpec {
	return EnsembleSpec{Trees: 100, MinSamplesLeaf: 1, Seed: 42}
}

func (s EnsembleSpec) Family() models.ModelFamily { return models.FamilyEnsemble }

// TreeNode is a flattened CART node. Feature is -1 for leaves.
type TreeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

func (t Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// ForestState averages its trees.
type ForestState struct {
	Trees []Tree `json:"trees"`
}

func (f *ForestState) predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.Trees))
}

func (s EnsembleSpec) fit(ctx context.Context, samples []WindowSample) (*TrainedModel, error) {
	if s.Trees < 1 {
		s.Trees = DefaultEnsembleSpec().Trees
	}
	if s.MinSamplesLeaf < 1 {
		s.MinSamplesLeaf = 1
	}
	if len(samples) == 0 {
		return nil, insufficient("ensemble fit", 0, 1)
	}

	master := rand.New(rand.NewSource(s.Seed))
	seeds := make([]int64, s.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	forest := &ForestState{Trees: make([]Tree, s.Trees)}
	var wg sync.WaitGroup
	for i := range seeds {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			idx := make([]int, len(samples))
			for k := range idx {
				idx[k] = rng.Intn(len(samples))
			}
			b := treeBuilder{samples: samples, maxDepth: s.MaxDepth, minLeaf: s.MinSamplesLeaf}
			b.grow(idx, 0)
			forest.Trees[i] = Tree{Nodes: b.nodes}
		}(i)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ensemble fit: %w", err)
	}

	return &TrainedModel{Family: models.FamilyEnsemble, Ensemble: forest}, nil
}

type treeBuilder struct {
	samples  []WindowSample
	maxDepth int
	minLeaf  int
	nodes    []TreeNode
}

func (b *treeBuilder) mean(idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += b.samples[i].Target
	}
	return sum / float64(len(idx))
}

// grow appends the subtree for idx and returns its node index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	at := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{Feature: -1, Value: b.mean(idx)})

	if len(idx) < 2*b.minLeaf || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return at
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return at
	}

	var left, right []int
	for _, i := range idx {
		if b.samples[i].Features[feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[at] = TreeNode{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: b.nodes[at].Value}
	return at
}

// bestSplit scans every feature for the split minimising the summed squared
// error of the two children.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	var total, totalSq float64
	for _, i := range idx {
		y := b.samples[i].Target
		total += y
		totalSq += y * y
	}
	parent := totalSq - total*total/float64(n)
	if parent <= 1e-12 {
		return 0, 0, false
	}

	best := parent
	bestFeature, bestThreshold, found := 0, 0.0, false
	sorted := make([]int, n)
	features := len(b.samples[idx[0]].Features)
	for f := 0; f < features; f++ {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.samples[sorted[a]].Features[f] < b.samples[sorted[c]].Features[f]
		})
		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			s := b.samples[sorted[k]]
			leftSum += s.Target
			leftSq += s.Target * s.Target
			cur := s.Features[f]
			next := b.samples[sorted[k+1]].Features[f]
			if cur == next {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if sse < best-1e-12 {
				best = sse
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
