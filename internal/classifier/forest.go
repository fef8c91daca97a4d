package classifier

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/cpeq/infolettre-automatique/internal/vectorstore"
	"github.com/cpeq/infolettre-automatique/pkg/models"
)

// RandomForest is a bagged ensemble of CART trees over the labeled
// embedding corpus. Each tree trains on a bootstrap sample and splits on a
// random sqrt-sized feature subset.
type RandomForest struct {
	retriever Retriever
	trees     int
	maxDepth  int

	labels []string
	forest []*treeNode
	rng    *rand.Rand
}

// NewRandomForest creates an unfitted random forest strategy.
func NewRandomForest(retriever Retriever, trees int) *RandomForest {
	if trees <= 0 {
		trees = 100
	}
	return &RandomForest{
		retriever: retriever,
		trees:     trees,
		maxDepth:  10,
		// Fixed seed keeps fits reproducible across replicas.
		rng: rand.New(rand.NewSource(42)),
	}
}

func (s *RandomForest) Name() string { return "random-forest" }

// Fit trains the ensemble on the labeled corpus.
func (s *RandomForest) Fit(samples []models.TrainingSample) error {
	if len(samples) == 0 {
		return ErrNotSetup
	}

	seen := make(map[string]struct{})
	s.labels = s.labels[:0]
	for _, sample := range samples {
		if _, ok := seen[sample.Label]; !ok {
			seen[sample.Label] = struct{}{}
			s.labels = append(s.labels, sample.Label)
		}
	}
	sort.Strings(s.labels)

	labelIndex := make(map[string]int, len(s.labels))
	for i, label := range s.labels {
		labelIndex[label] = i
	}

	features := make([][]float64, len(samples))
	targets := make([]int, len(samples))
	for i, sample := range samples {
		features[i] = toFloat64(sample.Embedding)
		targets[i] = labelIndex[sample.Label]
	}

	s.forest = make([]*treeNode, s.trees)
	for t := 0; t < s.trees; t++ {
		bootstrap := make([]int, len(samples))
		for i := range bootstrap {
			bootstrap[i] = s.rng.Intn(len(samples))
		}
		s.forest[t] = s.buildTree(features, targets, bootstrap, 0)
	}

	return nil
}

func (s *RandomForest) PredictScores(ctx context.Context, news models.News, embedding []float32, ids []string) (Scores, error) {
	if len(s.forest) == 0 {
		return nil, ErrNotSetup
	}

	if embedding == nil {
		var err error
		embedding, err = s.retriever.Embed(ctx, vectorstore.CreateQuery(news, models.VectorTitleContent))
		if err != nil {
			return nil, err
		}
	}

	vector := toFloat64(embedding)

	sums := make([]float64, len(s.labels))
	for _, tree := range s.forest {
		for i, p := range tree.classify(vector) {
			sums[i] += p
		}
	}

	scores := make(Scores, 0, len(s.labels))
	for i, label := range s.labels {
		scores = append(scores, LabelScore{
			Label: label,
			Score: sums[i] / float64(len(s.forest)),
		})
	}

	return scores, nil
}

// treeNode is either an internal split or a leaf carrying a class
// distribution.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	dist      []float64
}

func (n *treeNode) classify(vector []float64) []float64 {
	if n.dist != nil {
		return n.dist
	}
	if vector[n.feature] <= n.threshold {
		return n.left.classify(vector)
	}
	return n.right.classify(vector)
}

func (s *RandomForest) buildTree(features [][]float64, targets []int, indices []int, depth int) *treeNode {
	if depth >= s.maxDepth || len(indices) < 2 || pure(targets, indices) {
		return s.leaf(targets, indices)
	}

	feature, threshold, ok := s.bestSplit(features, targets, indices)
	if !ok {
		return s.leaf(targets, indices)
	}

	var left, right []int
	for _, i := range indices {
		if features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return s.leaf(targets, indices)
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      s.buildTree(features, targets, left, depth+1),
		right:     s.buildTree(features, targets, right, depth+1),
	}
}

func (s *RandomForest) leaf(targets []int, indices []int) *treeNode {
	dist := make([]float64, len(s.labels))
	for _, i := range indices {
		dist[targets[i]]++
	}
	if len(indices) > 0 {
		for i := range dist {
			dist[i] /= float64(len(indices))
		}
	}
	return &treeNode{dist: dist}
}

// bestSplit searches a random sqrt-sized feature subset for the split with
// the lowest weighted Gini impurity.
func (s *RandomForest) bestSplit(features [][]float64, targets []int, indices []int) (int, float64, bool) {
	dims := len(features[indices[0]])
	subset := s.rng.Perm(dims)[:int(math.Ceil(math.Sqrt(float64(dims))))]

	bestGini := math.Inf(1)
	var bestFeature int
	var bestThreshold float64
	found := false

	values := make([]float64, len(indices))
	for _, feature := range subset {
		for i, idx := range indices {
			values[i] = features[idx][feature]
		}
		sort.Float64s(values)

		for i := 1; i < len(values); i++ {
			if values[i] == values[i-1] {
				continue
			}
			threshold := (values[i] + values[i-1]) / 2

			gini := s.splitGini(features, targets, indices, feature, threshold)
			if gini < bestGini {
				bestGini = gini
				bestFeature = feature
				bestThreshold = threshold
				found = true
			}
		}
	}

	return bestFeature, bestThreshold, found
}

func (s *RandomForest) splitGini(features [][]float64, targets []int, indices []int, feature int, threshold float64) float64 {
	leftCounts := make([]int, len(s.labels))
	rightCounts := make([]int, len(s.labels))
	var leftTotal, rightTotal int

	for _, i := range indices {
		if features[i][feature] <= threshold {
			leftCounts[targets[i]]++
			leftTotal++
		} else {
			rightCounts[targets[i]]++
			rightTotal++
		}
	}

	total := float64(leftTotal + rightTotal)
	return float64(leftTotal)/total*gini(leftCounts, leftTotal) +
		float64(rightTotal)/total*gini(rightCounts, rightTotal)
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		impurity -= p * p
	}
	return impurity
}

func pure(targets []int, indices []int) bool {
	first := targets[indices[0]]
	for _, i := range indices[1:] {
		if targets[i] != first {
			return false
		}
	}
	return true
}
