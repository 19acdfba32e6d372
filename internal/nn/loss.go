package nn

import (
	"fmt"

	"github.com/born-ml/bnorm/internal/tensor"
)

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// MSE is commonly used for regression tasks where the goal is to predict
// continuous values.
//
// Example:
//
//	mse := nn.NewMSELoss[float32]()
//	loss, grad, err := mse.Forward(y, targets)
type MSELoss[T tensor.Element] struct {
	codec tensor.Codec[T]
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[T tensor.Element]() *MSELoss[T] {
	return &MSELoss[T]{codec: tensor.CodecFor[T]()}
}

// Forward computes the loss and its gradient with respect to the
// predictions, 2*(p-t)/len, in the storage type so it can be fed straight
// into a backward pass.
func (m *MSELoss[T]) Forward(predictions, targets []T) (float64, []T, error) {
	if len(predictions) != len(targets) {
		return 0, nil, fmt.Errorf("%w: %d vs %d", ErrShapeMismatch, len(predictions), len(targets))
	}
	if len(predictions) == 0 {
		return 0, nil, nil
	}

	count := float64(len(predictions))
	grad := make([]T, len(predictions))
	var sum float64
	for i, p := range predictions {
		diff := m.codec.Load(p) - m.codec.Load(targets[i])
		sum += diff * diff
		grad[i] = m.codec.Store(2 * diff / count)
	}
	return sum / count, grad, nil
}

// Parameters returns an empty slice (loss functions have no trainable parameters).
func (m *MSELoss[T]) Parameters() []*Parameter[T] {
	return nil
}
