package gradcam

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/ironsheep/retina-explain-mcp/internal/nn"
)

func randomInput(t *testing.T, seed int64, size int) *tensor.Dense {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	v := make([]float32, 3*size*size)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	x, err := nn.NewTensor([]int{1, 3, size, size}, v)
	require.NoError(t, err)
	return x
}

func requireNormalized(t *testing.T, res *Result) {
	t.Helper()
	require.Equal(t, DefaultSize, res.Map.Size())
	vals := res.Map.Values()
	require.Len(t, vals, DefaultSize*DefaultSize)
	if res.Degenerate {
		require.True(t, res.Map.IsZero())
		return
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	require.Equal(t, 0.0, lo)
	require.Equal(t, 1.0, hi)
}

func TestDefaultTargetUsesTopLogit(t *testing.T) {
	c := newStubClassifier()
	res, err := Generate(c, "feat", randomInput(t, 1, 8), nil)
	require.NoError(t, err)

	require.Equal(t, 2, res.Class)
	require.InDelta(t, 5.0, res.Logit, 1e-6)
	require.Equal(t, []int{2}, c.backwardOn)
	require.Equal(t, 1, c.zeroed)
	require.False(t, res.Degenerate)
	requireNormalized(t, res)
	require.Equal(t, 1.0, res.Map.At(0, 0))
	require.Equal(t, 0.0, res.Map.At(223, 223))
}

func TestExplicitTarget(t *testing.T) {
	c := newStubClassifier()
	target := 0
	res, err := Generate(c, "feat", randomInput(t, 1, 8), &target)
	require.NoError(t, err)
	require.Equal(t, 0, res.Class)
	require.Equal(t, 0.0, res.Map.At(0, 0))
	require.Equal(t, 1.0, res.Map.At(223, 223))

	target = 4
	_, err = Generate(c, "feat", randomInput(t, 1, 8), &target)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, c.layer.ActiveHooks())
}

func TestZooModels(t *testing.T) {
	for _, kind := range []nn.Kind{nn.KindEfficientNetB4, nn.KindSwinV2} {
		t.Run(string(kind), func(t *testing.T) {
			spec, _ := nn.Lookup(kind)
			net, err := nn.Build(kind, 3)
			require.NoError(t, err)
			input := randomInput(t, 11, spec.InputSize)

			first, err := Generate(net, spec.TargetLayer, input, nil)
			require.NoError(t, err)
			requireNormalized(t, first)

			second, err := Generate(net, spec.TargetLayer, input, nil)
			require.NoError(t, err)
			require.Equal(t, first.Class, second.Class)
			require.Equal(t, first.Map.Values(), second.Map.Values())

			layer, _ := net.Layer(spec.TargetLayer)
			require.Zero(t, layer.ActiveHooks())
		})
	}
}

func TestDisconnectedLayerDegrades(t *testing.T) {
	net, err := nn.Build(nn.KindEfficientNetB4, 3)
	require.NoError(t, err)

	res, err := Generate(net, "aux_classifier", randomInput(t, 2, 224), nil)
	require.NoError(t, err)
	require.True(t, res.Degenerate)
	require.Equal(t, ReasonNotCaptured, res.Reason)
	require.Equal(t, DefaultSize, res.Map.Size())
	require.True(t, res.Map.IsZero())
}

func TestUnsupportedRankDegrades(t *testing.T) {
	net, err := nn.Build(nn.KindEfficientNetB4, 3)
	require.NoError(t, err)

	// avgpool output is [1,C]
	res, err := Generate(net, "avgpool", randomInput(t, 2, 224), nil)
	require.NoError(t, err)
	require.True(t, res.Degenerate)
	require.Equal(t, ReasonRank, res.Reason)
}

func TestAttachUnknownLayer(t *testing.T) {
	net, err := nn.Build(nn.KindEfficientNetB4, 3)
	require.NoError(t, err)
	_, err = Attach(net, "features.99")
	require.ErrorIs(t, err, ErrUnknownLayer)

	_, err = NewExtractor(net, "nope")
	require.ErrorIs(t, err, ErrUnknownLayer)
}

func TestDetach(t *testing.T) {
	net, err := nn.Build(nn.KindEfficientNetB4, 3)
	require.NoError(t, err)
	layer, _ := net.Layer("features.5")

	h, err := Attach(net, "features.5")
	require.NoError(t, err)
	require.Equal(t, 2, layer.ActiveHooks())

	h.Detach()
	h.Detach()
	require.Zero(t, layer.ActiveHooks())

	_, err = h.Explain(randomInput(t, 1, 224), nil)
	require.ErrorIs(t, err, ErrDetached)

	// a later pass must not reach the removed capture points
	_, err = net.Forward(randomInput(t, 1, 224))
	require.NoError(t, err)
	require.NoError(t, net.Backward(0))
	require.Nil(t, h.activation)
	require.Nil(t, h.gradient)
}

func TestInvalidInput(t *testing.T) {
	c := newStubClassifier()
	h, err := Attach(c, "feat")
	require.NoError(t, err)
	defer h.Detach()

	rank3, err := nn.NewTensor([]int{3, 8, 8}, make([]float32, 192))
	require.NoError(t, err)
	wide := tensor.New(tensor.WithShape(1, 3, 2, 2), tensor.WithBacking(make([]float64, 12)))
	gray, err := nn.NewTensor([]int{1, 1, 8, 8}, make([]float32, 64))
	require.NoError(t, err)

	for _, in := range []*tensor.Dense{nil, rank3, wide, gray} {
		_, err := h.Explain(in, nil)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
	require.Empty(t, c.backwardOn)
}

func TestExtractorConcurrent(t *testing.T) {
	net, err := nn.Build(nn.KindEfficientNetB4, 5)
	require.NoError(t, err)
	ex, err := NewExtractor(net, "features.5")
	require.NoError(t, err)
	input := randomInput(t, 4, 224)

	want, err := ex.Explain(input, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 6)
	errs := make([]error, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ex.Explain(input, nil)
		}(i)
	}
	wg.Wait()
	for i, res := range results {
		require.NoError(t, errs[i])
		require.Equal(t, want.Map.Values(), res.Map.Values())
	}
	layer, _ := net.Layer("features.5")
	require.Zero(t, layer.ActiveHooks())
}
