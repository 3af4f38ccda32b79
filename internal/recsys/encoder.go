// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import "fmt"

// denseLayer is one fully connected layer of a tower encoder.
// Weights is row-major [out][in].
type denseLayer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

// encoder is one tower of the pretrained tower-pair model: a small stack of
// dense layers projecting a feature vector into the shared embedding space.
// Weights are frozen; this type only performs forward inference.
type encoder struct {
	Layers []denseLayer `json:"layers"`
}

// validate checks the layer stack maps inputDim to outputDim with
// consistent intermediate shapes.
func (e *encoder) validate(inputDim, outputDim int) error {
	if len(e.Layers) == 0 {
		return fmt.Errorf("encoder has no layers")
	}
	dim := inputDim
	for i, layer := range e.Layers {
		if len(layer.Weights) == 0 {
			return fmt.Errorf("layer %d has no weights", i)
		}
		for _, row := range layer.Weights {
			if len(row) != dim {
				return fmt.Errorf("layer %d expects input dim %d, weight row has %d", i, dim, len(row))
			}
		}
		if len(layer.Bias) != len(layer.Weights) {
			return fmt.Errorf("layer %d bias length %d != output dim %d", i, len(layer.Bias), len(layer.Weights))
		}
		dim = len(layer.Weights)
	}
	if dim != outputDim {
		return fmt.Errorf("encoder output dim %d != embedding dim %d", dim, outputDim)
	}
	return nil
}

// forward projects a feature vector through the layer stack.
func (e *encoder) forward(x []float64) ([]float64, error) {
	for i := range e.Layers {
		layer := &e.Layers[i]
		if len(layer.Weights[0]) != len(x) {
			return nil, fmt.Errorf("layer %d input dim mismatch: want %d, got %d",
				i, len(layer.Weights[0]), len(x))
		}
		out := make([]float64, len(layer.Weights))
		for j, row := range layer.Weights {
			out[j] = dot(row, x) + layer.Bias[j]
		}
		if layer.Activation == "relu" {
			for j, v := range out {
				if v < 0 {
					out[j] = 0
				}
			}
		}
		x = out
	}
	return x, nil
}
