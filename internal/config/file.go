package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// applyFile 用 YAML 文件覆盖训练超参数（环境变量之后应用）
//
// 示例：
//
//	vitals:
//	  epochs: 50
//	  batch_size: 32
//	fall:
//	  grid:
//	    n_estimators: [100]
//	    class_weights: ["balanced", "1:20"]
func applyFile(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s failed: %w", path, err)
	}

	setInt(v, "seed", func(x int) { cfg.Seed = int64(x) })
	setString(v, "artifacts.dir", &cfg.Artifacts.Dir)
	setString(v, "datasets.vitals", &cfg.Datasets.Vitals)
	setString(v, "datasets.fall", &cfg.Datasets.Fall)

	setInt(v, "vitals.time_steps", func(x int) { cfg.Vitals.TimeSteps = x })
	setInt(v, "vitals.min_windows", func(x int) { cfg.Vitals.MinWindows = x })
	setInt(v, "vitals.units_1", func(x int) { cfg.Vitals.Hidden1 = x })
	setInt(v, "vitals.units_2", func(x int) { cfg.Vitals.Hidden2 = x })
	setInt(v, "vitals.epochs", func(x int) { cfg.Vitals.Epochs = x })
	setInt(v, "vitals.batch_size", func(x int) { cfg.Vitals.BatchSize = x })
	setInt(v, "vitals.patience", func(x int) { cfg.Vitals.Patience = x })
	setFloat(v, "vitals.dropout", &cfg.Vitals.Dropout)
	setFloat(v, "vitals.l2", &cfg.Vitals.L2)
	setFloat(v, "vitals.learning_rate", &cfg.Vitals.LearningRate)
	setFloat(v, "vitals.test_size", &cfg.Vitals.TestSize)

	setInt(v, "fall.sampling_rate_hz", func(x int) { cfg.Fall.SamplingRateHz = x })
	setFloat(v, "fall.window_seconds", &cfg.Fall.WindowSeconds)
	setFloat(v, "fall.test_size", &cfg.Fall.TestSize)
	setInt(v, "fall.cv_folds", func(x int) { cfg.Fall.CVFolds = x })
	setInt(v, "fall.workers", func(x int) { cfg.Fall.Workers = x })
	setInts(v, "fall.grid.n_estimators", &cfg.Fall.Grid.NEstimators)
	setInts(v, "fall.grid.max_depth", &cfg.Fall.Grid.MaxDepth)
	setInts(v, "fall.grid.min_samples_split", &cfg.Fall.Grid.MinSamplesSplit)
	setInts(v, "fall.grid.min_samples_leaf", &cfg.Fall.Grid.MinSamplesLeaf)
	if v.IsSet("fall.grid.class_weights") {
		cfg.Fall.Grid.ClassWeights = v.GetStringSlice("fall.grid.class_weights")
	}

	setFloat(v, "scoring.fall_threshold", &cfg.Scoring.FallThreshold)
	return nil
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setFloat(v *viper.Viper, key string, dst *float64) {
	if v.IsSet(key) {
		*dst = v.GetFloat64(key)
	}
}

func setInt(v *viper.Viper, key string, apply func(int)) {
	if v.IsSet(key) {
		apply(v.GetInt(key))
	}
}

func setInts(v *viper.Viper, key string, dst *[]int) {
	if v.IsSet(key) {
		*dst = v.GetIntSlice(key)
	}
}
