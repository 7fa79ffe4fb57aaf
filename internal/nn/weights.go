package nn

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Checkpoint is the on-disk form of a network's parameters.
type Checkpoint struct {
	Kind      Kind
	StateDict map[string][]float32
}

// NewCheckpoint snapshots the parameters of net.
func NewCheckpoint(kind Kind, net *Sequential) Checkpoint {
	return Checkpoint{Kind: kind, StateDict: net.StateDict()}
}

// WriteCheckpoint gob-encodes c to w.
func WriteCheckpoint(w io.Writer, c Checkpoint) error {
	return errors.Wrap(gob.NewEncoder(w).Encode(c), "encode checkpoint")
}

// ReadCheckpoint decodes a checkpoint written by WriteCheckpoint.
func ReadCheckpoint(r io.Reader) (Checkpoint, error) {
	var c Checkpoint
	if err := gob.NewDecoder(r).Decode(&c); err != nil {
		return Checkpoint{}, errors.Wrap(err, "decode checkpoint")
	}
	return c, nil
}

// ReadCheckpointFile reads a checkpoint from path.
func ReadCheckpointFile(path string) (Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Checkpoint{}, errors.Wrap(err, "open checkpoint")
	}
	defer f.Close()
	return ReadCheckpoint(f)
}

// WriteCheckpointFile writes c to path, replacing any existing file.
func WriteCheckpointFile(path string, c Checkpoint) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create checkpoint")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = errors.Wrap(cerr, "close checkpoint")
		}
	}()
	return WriteCheckpoint(f, c)
}
