package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func tinyNet(t *testing.T) *Sequential {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	return NewSequential("tiny", 3).
		Append(
			NewConv2D("conv", 3, 4, 2, 2, 0, rng),
			NewReLU("relu"),
			NewGlobalAvgPool("pool"),
			NewLinear("fc", 4, 3, rng),
		).
		Register(NewLinear("aux", 4, 3, rng))
}

func tinyInput(t *testing.T) *tensor.Dense {
	t.Helper()
	x, err := NewTensor([]int{1, 3, 8, 8}, randomValues(rand.New(rand.NewSource(9)), 3*64))
	require.NoError(t, err)
	return x
}

func TestSequentialHooks(t *testing.T) {
	net := tinyNet(t)
	layer, ok := net.Layer("conv")
	require.True(t, ok)

	var fwd, bwd [][]int
	hf := layer.RegisterForwardHook(func(name string, out *tensor.Dense) {
		require.Equal(t, "conv", name)
		fwd = append(fwd, Shape(out))
	})
	hb := layer.RegisterBackwardHook(func(_ string, g *tensor.Dense) {
		bwd = append(bwd, Shape(g))
	})
	require.Equal(t, 2, layer.ActiveHooks())

	logits, err := net.Forward(tinyInput(t))
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, Shape(logits))
	require.NoError(t, net.Backward(1))
	require.Equal(t, [][]int{{1, 4, 4, 4}}, fwd)
	require.Equal(t, [][]int{{1, 4, 4, 4}}, bwd)

	hf.Remove()
	hb.Remove()
	hb.Remove()
	require.Zero(t, layer.ActiveHooks())

	_, err = net.Forward(tinyInput(t))
	require.NoError(t, err)
	require.NoError(t, net.Backward(0))
	require.Len(t, fwd, 1)
	require.Len(t, bwd, 1)
}

func TestAuxiliaryLayerNeverFires(t *testing.T) {
	net := tinyNet(t)
	aux, ok := net.Layer("aux")
	require.True(t, ok)

	fired := false
	h := aux.RegisterForwardHook(func(string, *tensor.Dense) { fired = true })
	defer h.Remove()

	_, err := net.Forward(tinyInput(t))
	require.NoError(t, err)
	require.NoError(t, net.Backward(2))
	require.False(t, fired)
	require.Equal(t, []string{"conv", "relu", "pool", "fc", "aux"}, net.LayerNames())
}

func TestSequentialBackwardErrors(t *testing.T) {
	net := tinyNet(t)
	require.ErrorIs(t, net.Backward(0), ErrNoForward)

	_, err := net.Forward(tinyInput(t))
	require.NoError(t, err)
	require.ErrorIs(t, net.Backward(3), ErrUnknownClass)
	require.ErrorIs(t, net.Backward(-1), ErrUnknownClass)

	bad, err := NewTensor([]int{1, 1, 8, 8}, make([]float32, 64))
	require.NoError(t, err)
	_, err = net.Forward(bad)
	require.ErrorIs(t, err, ErrShape)
}

func TestSequentialInputGradient(t *testing.T) {
	net := tinyNet(t)
	x := tinyInput(t)
	_, err := net.Forward(x)
	require.NoError(t, err)
	require.NoError(t, net.Backward(0))
	require.Equal(t, []int{1, 3, 8, 8}, Shape(net.InputGrad()))

	net.ZeroGrad()
	require.Nil(t, net.InputGrad())
}

func TestStateDict(t *testing.T) {
	a := tinyNet(t)
	sd := a.StateDict()
	require.Contains(t, sd, "conv.weight")
	require.Contains(t, sd, "aux.bias")

	rng := rand.New(rand.NewSource(99))
	b := NewSequential("tiny", 3).
		Append(NewConv2D("conv", 3, 4, 2, 2, 0, rng), NewReLU("relu"), NewGlobalAvgPool("pool"), NewLinear("fc", 4, 3, rng)).
		Register(NewLinear("aux", 4, 3, rng))
	missing, err := b.LoadStateDict(sd, true)
	require.NoError(t, err)
	require.Empty(t, missing)

	la, err := a.Forward(tinyInput(t))
	require.NoError(t, err)
	lb, err := b.Forward(tinyInput(t))
	require.NoError(t, err)
	require.Equal(t, Values(la), Values(lb))

	delete(sd, "fc.bias")
	_, err = b.LoadStateDict(sd, true)
	require.Error(t, err)
	missing, err = b.LoadStateDict(sd, false)
	require.NoError(t, err)
	require.Equal(t, []string{"fc.bias"}, missing)

	sd["fc.weight"] = []float32{1}
	_, err = b.LoadStateDict(sd, false)
	require.ErrorIs(t, err, ErrShape)
}

func TestSoftmaxArgmax(t *testing.T) {
	p := Softmax([]float32{0.1, 0.2, 5.0, 0.3})
	var sum float64
	for _, v := range p {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-9)
	require.Equal(t, 2, Argmax([]float32{0.1, 0.2, 5.0, 0.3}))
	require.Greater(t, p[2], 0.95)
	require.Equal(t, -1, Argmax(nil))
	require.Equal(t, 0, Argmax([]float32{1, 1}))
	require.Nil(t, Softmax(nil))
}
