package anomaly

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
)

const eulerGamma = 0.5772156649015329

// TrainConfig параметры обучения изолирующего леса.
type TrainConfig struct {
	Trees         int
	MaxSamples    int
	Contamination float64
	Seed          int64
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Trees:         100,
		MaxSamples:    256,
		Contamination: 0.1,
		Seed:          42,
	}
}

// Node узел дерева в плоском представлении. Лист хранит размер подвыборки.
type Node struct {
	Feature int     `json:"f"`
	Split   float64 `json:"s"`
	Left    int     `json:"l"`
	Right   int     `json:"r"`
	Size    int     `json:"n"`
	Leaf    bool    `json:"leaf,omitempty"`
}

type Tree []Node

// Forest обученная модель. Decision < 0 означает аномалию.
type Forest struct {
	Version    int     `json:"version"`
	Features   int     `json:"features"`
	SampleSize int     `json:"sample_size"`
	Offset     float64 `json:"offset"`
	Trees      []Tree  `json:"trees"`
}

const forestVersion = 1

func Train(data [][]float64, cfg TrainConfig) (*Forest, error) {
	if len(data) == 0 {
		return nil, errors.New("anomaly.Train: empty training set")
	}
	dims := len(data[0])
	for i, row := range data {
		if len(row) != dims {
			return nil, fmt.Errorf("anomaly.Train: row %d has %d features, want %d", i, len(row), dims)
		}
	}
	if cfg.Trees <= 0 || cfg.MaxSamples <= 0 {
		return nil, errors.New("anomaly.Train: trees and max samples must be positive")
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	sampleSize := min(cfg.MaxSamples, len(data))
	heightLimit := int(math.Ceil(math.Log2(float64(max(sampleSize, 2)))))

	f := &Forest{
		Version:    forestVersion,
		Features:   dims,
		SampleSize: sampleSize,
		Trees:      make([]Tree, 0, cfg.Trees),
	}

	for t := 0; t < cfg.Trees; t++ {
		perm := rng.Perm(len(data))[:sampleSize]
		sample := make([][]float64, sampleSize)
		for i, idx := range perm {
			sample[i] = data[idx]
		}
		b := &treeBuilder{rng: rng, limit: heightLimit, dims: dims}
		b.build(sample, 0)
		f.Trees = append(f.Trees, b.nodes)
	}

	scores := make([]float64, len(data))
	for i, row := range data {
		scores[i] = f.ScoreSample(row)
	}
	f.Offset = percentile(scores, 100*cfg.Contamination)

	return f, nil
}

type treeBuilder struct {
	rng   *rand.Rand
	limit int
	dims  int
	nodes Tree
}

func (b *treeBuilder) build(sample [][]float64, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Size: len(sample)})

	if depth >= b.limit || len(sample) <= 1 {
		b.nodes[idx].Leaf = true
		return idx
	}

	// случайный признак с ненулевым разбросом; если таких нет, узел становится листом
	for _, feature := range b.rng.Perm(b.dims) {
		lo, hi := sample[0][feature], sample[0][feature]
		for _, row := range sample[1:] {
			lo = math.Min(lo, row[feature])
			hi = math.Max(hi, row[feature])
		}
		if lo == hi {
			continue
		}

		split := lo + b.rng.Float64()*(hi-lo)
		var left, right [][]float64
		for _, row := range sample {
			if row[feature] < split {
				left = append(left, row)
			} else {
				right = append(right, row)
			}
		}

		b.nodes[idx].Feature = feature
		b.nodes[idx].Split = split
		l := b.build(left, depth+1)
		r := b.build(right, depth+1)
		b.nodes[idx].Left = l
		b.nodes[idx].Right = r
		return idx
	}

	b.nodes[idx].Leaf = true
	return idx
}

func (t Tree) pathLength(x []float64) float64 {
	i, depth := 0, 0.0
	for {
		n := t[i]
		if n.Leaf {
			return depth + averagePathLength(n.Size)
		}
		if x[n.Feature] < n.Split {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the expected path length of an unsuccessful BST search.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

// ScoreSample returns the negated anomaly score in (-1, 0]; lower is more abnormal.
func (f *Forest) ScoreSample(x []float64) float64 {
	var total float64
	for _, t := range f.Trees {
		total += t.pathLength(x)
	}
	mean := total / float64(len(f.Trees))
	return -math.Pow(2, -mean/averagePathLength(f.SampleSize))
}

func (f *Forest) Decision(x []float64) float64 {
	return f.ScoreSample(x) - f.Offset
}

func (f *Forest) validate() error {
	if f.Version != forestVersion {
		return fmt.Errorf("unsupported model version %d", f.Version)
	}
	if len(f.Trees) == 0 {
		return errors.New("model has no trees")
	}
	if f.Features != FeatureCount {
		return fmt.Errorf("model expects %d features, scorer provides %d", f.Features, FeatureCount)
	}
	for ti, t := range f.Trees {
		for ni, n := range t {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= f.Features || n.Left <= ni || n.Right <= ni || n.Left >= len(t) || n.Right >= len(t) {
				return fmt.Errorf("tree %d node %d is malformed", ti, ni)
			}
		}
	}
	return nil
}

func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &f, nil
}

// Save пишет модель атомарно: во временный файл и затем rename.
func (f *Forest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// percentile uses linear interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// SyntheticTrainingData генерирует стандартные нормальные данные для модели по умолчанию.
func SyntheticTrainingData(rows, cols int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	data := make([][]float64, rows)
	for i := range data {
		row := make([]float64, cols)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		data[i] = row
	}
	return data
}
