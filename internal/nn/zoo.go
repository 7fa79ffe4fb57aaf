package nn

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Kind identifies an architecture in the model zoo.
type Kind string

const (
	KindEfficientNetB4 Kind = "efficientnet_b4"
	KindSwinV2         Kind = "swin_v2"
)

// DemoSeed seeds the random weights used when no checkpoint is available.
const DemoSeed = 42

var (
	// ErrUnknownModel is returned for a Kind not in the zoo.
	ErrUnknownModel = errors.New("nn: unknown model")

	// ErrModelDisabled is returned when loading a disabled model without a
	// checkpoint on disk.
	ErrModelDisabled = errors.New("nn: model disabled until weights are available")
)

// Spec describes one zoo entry.
type Spec struct {
	Kind        Kind     `json:"kind"`
	DisplayName string   `json:"display_name"`
	Classes     []string `json:"classes"`
	TargetLayer string   `json:"target_layer"`
	WeightsFile string   `json:"weights_file"`
	InputSize   int      `json:"input_size"`
	Disabled    bool     `json:"disabled"`

	build func(rng *rand.Rand, seed int64) *Sequential
}

var zoo = map[Kind]Spec{
	KindEfficientNetB4: {
		Kind:        KindEfficientNetB4,
		DisplayName: "EfficientNet-B4",
		Classes:     []string{"CNV", "DME", "DRUSEN", "NORMAL"},
		TargetLayer: "features.5",
		WeightsFile: "efficientnet_b4.gob",
		InputSize:   224,
		build:       buildEfficientNet,
	},
	KindSwinV2: {
		Kind:        KindSwinV2,
		DisplayName: "Swin Transformer V2",
		Classes:     []string{"AMD", "DME", "NORMAL"},
		TargetLayer: "norm",
		WeightsFile: "swin_v2.gob",
		InputSize:   224,
		Disabled:    true,
		build:       buildSwin,
	},
}

// buildEfficientNet is a compact convolutional stack with the same head
// layout as torchvision's EfficientNet: features, avgpool, classifier.
func buildEfficientNet(rng *rand.Rand, seed int64) *Sequential {
	const classes = 4
	return NewSequential(string(KindEfficientNetB4), classes).
		Append(
			NewConv2D("features.0", 3, 8, 4, 4, 0, rng),
			NewSiLU("features.1"),
			NewConv2D("features.2", 8, 16, 3, 2, 1, rng),
			NewSiLU("features.3"),
			NewConv2D("features.4", 16, 32, 3, 2, 1, rng),
			NewSiLU("features.5"),
			NewGlobalAvgPool("avgpool"),
			NewDropout("classifier.0", 0.4, seed),
			NewLinear("classifier.1", 32, classes, rng),
		).
		Register(NewLinear("aux_classifier", 32, classes, rng))
}

// buildSwin is a single-block token model with a leading class token,
// ending in a LayerNorm over the sequence like timm's Swin heads.
func buildSwin(rng *rand.Rand, _ int64) *Sequential {
	const classes = 3
	return NewSequential(string(KindSwinV2), classes).
		Append(
			NewPatchEmbed("patch_embed", 3, 16, 32, true, rng),
			NewLinear("blocks.0.mlp", 32, 32, rng),
			NewSiLU("blocks.0.act"),
			NewLayerNorm("norm", 32),
			NewTokenPool("pool"),
			NewLinear("head", 32, classes, rng),
		)
}

// Lookup returns the zoo entry for kind.
func Lookup(kind Kind) (Spec, bool) {
	s, ok := zoo[kind]
	return s, ok
}

// Specs lists the zoo entries sorted by kind.
func Specs() []Spec {
	out := make([]Spec, 0, len(zoo))
	for _, s := range zoo {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Build constructs an untrained network of the given kind with weights drawn
// from seed. The network is in evaluation mode.
func Build(kind Kind, seed int64) (*Sequential, error) {
	spec, ok := zoo[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownModel, "%q", kind)
	}
	net := spec.build(rand.New(rand.NewSource(seed)), seed)
	net.Eval()
	return net, nil
}

// Model is a loaded zoo network.
type Model struct {
	Spec        Spec
	Network     *Sequential
	Demo        bool
	WeightsPath string
}

// Load builds kind and restores its checkpoint from weightsDir. A missing or
// unreadable checkpoint yields demo weights seeded with DemoSeed, except for
// disabled models which require a checkpoint.
func Load(kind Kind, weightsDir string, logger *zap.Logger) (*Model, error) {
	spec, ok := zoo[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownModel, "%q", kind)
	}
	return LoadFile(kind, filepath.Join(weightsDir, spec.WeightsFile), logger)
}

// LoadFile is Load with an explicit checkpoint path.
func LoadFile(kind Kind, path string, logger *zap.Logger) (*Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	spec, ok := zoo[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownModel, "%q", kind)
	}
	net, err := Build(kind, DemoSeed)
	if err != nil {
		return nil, err
	}
	m := &Model{Spec: spec, Network: net, WeightsPath: path}

	if _, statErr := os.Stat(path); statErr != nil {
		if spec.Disabled {
			return nil, errors.Wrapf(ErrModelDisabled, "%s: %s", kind, path)
		}
		logger.Warn("weights not found, running in demo mode",
			zap.String("model", string(kind)), zap.String("path", path))
		m.Demo = true
		return m, nil
	}

	ckpt, err := ReadCheckpointFile(path)
	if err == nil && ckpt.Kind != kind {
		err = errors.Errorf("checkpoint is for %q", ckpt.Kind)
	}
	if err == nil {
		var missing []string
		missing, err = net.LoadStateDict(ckpt.StateDict, false)
		if err == nil && len(missing) > 0 {
			logger.Warn("checkpoint is missing parameters",
				zap.String("model", string(kind)), zap.Strings("missing", missing))
		}
	}
	if err != nil {
		if spec.Disabled {
			return nil, errors.Wrapf(err, "load %s", path)
		}
		logger.Warn("could not load weights, running in demo mode",
			zap.String("model", string(kind)), zap.String("path", path), zap.Error(err))
		net, _ = Build(kind, DemoSeed)
		m.Network = net
		m.Demo = true
		return m, nil
	}
	net.Eval()
	logger.Info("model loaded", zap.String("model", string(kind)), zap.String("path", path))
	return m, nil
}
