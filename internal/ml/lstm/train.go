package lstm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TrainConfig 训练参数
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	Patience     int
	LearningRate float64
	L2           float64
	ClassWeights []float64 // 按类别编码索引，nil 表示不加权
	Seed         int64
	Workers      int // 批次梯度的并发数
}

// History 每个 epoch 的训练记录
type History struct {
	Loss         []float64 `json:"loss"`
	ValLoss      []float64 `json:"val_loss"`
	Accuracy     []float64 `json:"accuracy"`
	ValAccuracy  []float64 `json:"val_accuracy"`
	BestEpoch    int       `json:"best_epoch"`
	StoppedEarly bool      `json:"stopped_early"`
}

// gradientShards 批次梯度的固定分片数，与 Workers 无关
const gradientShards = 8

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// adam 优化器状态
type adam struct {
	lr   float64
	step int
	m, v [][]float64
}

func newAdam(lr float64, params [][]float64) *adam {
	a := &adam{lr: lr, m: make([][]float64, len(params)), v: make([][]float64, len(params))}
	for i, p := range params {
		a.m[i] = make([]float64, len(p))
		a.v[i] = make([]float64, len(p))
	}
	return a
}

func (a *adam) update(params, gradients [][]float64) {
	a.step++
	t := float64(a.step)
	lrT := a.lr * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))
	for i, p := range params {
		m, v, g := a.m[i], a.v[i], gradients[i]
		for j := range p {
			m[j] = adamBeta1*m[j] + (1-adamBeta1)*g[j]
			v[j] = adamBeta2*v[j] + (1-adamBeta2)*g[j]*g[j]
			p[j] -= lrT * m[j] / (math.Sqrt(v[j]) + adamEpsilon)
		}
	}
}

// Fit 小批量训练，验证损失连续 Patience 个 epoch 未下降时提前停止，并恢复最佳权重
func (n *Network) Fit(ctx context.Context, x [][][]float64, y []int, valX [][][]float64, valY []int, cfg TrainConfig, logger *zap.Logger) (*History, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("lstm: invalid training data (%d sequences, %d labels)", len(x), len(y))
	}
	if len(valX) != len(valY) {
		return nil, errors.New("lstm: validation data and labels differ in length")
	}
	if cfg.Epochs <= 0 || cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("lstm: epochs=%d batch_size=%d must be positive", cfg.Epochs, cfg.BatchSize)
	}
	for i, seq := range x {
		if err := n.checkInput(seq); err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		if y[i] < 0 || y[i] >= n.Arch.NClasses {
			return nil, fmt.Errorf("lstm: label %d out of range", y[i])
		}
	}

	weights := cfg.ClassWeights
	if weights == nil {
		weights = make([]float64, n.Arch.NClasses)
		for i := range weights {
			weights[i] = 1
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	opt := newAdam(cfg.LearningRate, n.params())
	hist := &History{BestEpoch: -1}
	bestVal := math.Inf(1)
	var best [][]float64
	wait := 0

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		order := rng.Perm(len(x))
		var epochLoss float64
		var correct int
		for start := 0; start < len(order); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(order))
			batch := order[start:end]
			seeds := make([]int64, len(batch))
			for i := range seeds {
				seeds[i] = rng.Int63()
			}

			g, loss, hits, err := n.batchGradient(ctx, x, y, batch, seeds, weights, cfg.Workers)
			if err != nil {
				return nil, err
			}
			gp := g.params()
			params := n.params()
			for _, k := range kernelParams {
				for j, w := range params[k] {
					gp[k][j] += 2 * cfg.L2 * w
				}
			}
			opt.update(params, gp)

			epochLoss += loss * float64(len(batch))
			correct += hits
		}

		trainLoss := epochLoss/float64(len(x)) + n.l2Penalty(cfg.L2)
		hist.Loss = append(hist.Loss, trainLoss)
		hist.Accuracy = append(hist.Accuracy, float64(correct)/float64(len(x)))

		monitor := trainLoss
		if len(valX) > 0 {
			valLoss, valAcc := n.Evaluate(valX, valY)
			valLoss += n.l2Penalty(cfg.L2)
			hist.ValLoss = append(hist.ValLoss, valLoss)
			hist.ValAccuracy = append(hist.ValAccuracy, valAcc)
			monitor = valLoss
		}

		logger.Debug("LSTM epoch finished",
			zap.Int("epoch", epoch+1),
			zap.Float64("loss", trainLoss),
			zap.Float64("monitor", monitor),
		)

		if monitor < bestVal {
			bestVal = monitor
			hist.BestEpoch = epoch
			best = snapshot(n.params())
			wait = 0
			continue
		}
		wait++
		if cfg.Patience > 0 && wait >= cfg.Patience {
			hist.StoppedEarly = true
			logger.Info("Early stopping",
				zap.Int("epoch", epoch+1),
				zap.Int("best_epoch", hist.BestEpoch+1),
				zap.Float64("best_monitor", bestVal),
			)
			break
		}
	}

	if best != nil {
		for i, p := range n.params() {
			copy(p, best[i])
		}
	}
	return hist, nil
}

// batchGradient 并行计算一个批次的平均梯度
//
// 样本按下标连续分成 gradientShards 片，按片序合并；workers 只限制并发数，不影响结果。
func (n *Network) batchGradient(ctx context.Context, x [][][]float64, y []int, batch []int, seeds []int64, weights []float64, workers int) (*grads, float64, int, error) {
	shards := min(gradientShards, len(batch))
	parts := make([]*grads, shards)
	losses := make([]float64, shards)
	hits := make([]int, shards)
	scale := 1 / float64(len(batch))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for s := 0; s < shards; s++ {
		lo := s * len(batch) / shards
		hi := (s + 1) * len(batch) / shards
		g.Go(func() error {
			acc := n.newGrads()
			for k := lo; k < hi; k++ {
				i := batch[k]
				tr := n.forward(x[i], rand.New(rand.NewSource(seeds[k])))
				w := weights[y[i]]
				losses[s] += -w * math.Log(math.Max(tr.probs[y[i]], 1e-12)) * scale
				if argmax(tr.probs) == y[i] {
					hits[s]++
				}
				dlogits := make([]float64, len(tr.probs))
				for c, p := range tr.probs {
					dlogits[c] = w * p * scale
				}
				dlogits[y[i]] -= w * scale
				n.backward(tr, dlogits, acc)
			}
			parts[s] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}

	total := parts[0]
	var loss float64
	var correct int
	for s := range parts {
		if s > 0 {
			total.add(parts[s])
		}
		loss += losses[s]
		correct += hits[s]
	}
	return total, loss, correct, nil
}

// Evaluate 未加权的平均交叉熵与准确率
func (n *Network) Evaluate(x [][][]float64, y []int) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	var loss float64
	var correct int
	for i, seq := range x {
		probs := n.forward(seq, nil).probs
		loss -= math.Log(math.Max(probs[y[i]], 1e-12))
		if argmax(probs) == y[i] {
			correct++
		}
	}
	return loss / float64(len(x)), float64(correct) / float64(len(x))
}

func (n *Network) l2Penalty(l2 float64) float64 {
	if l2 == 0 {
		return 0
	}
	params := n.params()
	var sum float64
	for _, k := range kernelParams {
		for _, w := range params[k] {
			sum += w * w
		}
	}
	return l2 * sum
}

func snapshot(params [][]float64) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = append([]float64(nil), p...)
	}
	return out
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
