package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/gesture"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Only the first call has
// any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXModel runs a classifier exported to ONNX, for example with skl2onnx
// and zipmap disabled. The model takes a float32 [batch, 63] input and
// produces a float32 [batch, classes] score tensor.
type ONNXModel struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	labels     []gesture.Label
}

// LoadONNX creates an inference session for the model at path. labels gives
// the class order of the score tensor.
func LoadONNX(path string, labels []gesture.Label, libPath string) (*ONNXModel, error) {
	for _, l := range labels {
		if !l.Known() {
			return nil, fmt.Errorf("onnx: unknown gesture label %q", l)
		}
	}

	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}

	inputName, err := selectInput(inputs)
	if err != nil {
		return nil, err
	}
	outputName, err := selectScores(outputs, len(labels))
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(1)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(path, []string{inputName}, []string{outputName}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &ONNXModel{
		session:    session,
		inputName:  inputName,
		outputName: outputName,
		labels:     labels,
	}, nil
}

// selectInput expects a single float tensor whose last dimension is the
// feature width (or dynamic).
func selectInput(inputs []ort.InputOutputInfo) (string, error) {
	if len(inputs) != 1 {
		return "", fmt.Errorf("onnx: expected 1 input, got %d", len(inputs))
	}
	in := inputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return "", fmt.Errorf("onnx: input %q must be float32", in.Name)
	}
	dims := in.Dimensions
	if len(dims) != 2 {
		return "", fmt.Errorf("onnx: input %q must be 2D, got %v", in.Name, dims)
	}
	if dims[1] != features.Dimensions && dims[1] != -1 {
		return "", fmt.Errorf("onnx: input %q has width %d, want %d", in.Name, dims[1], features.Dimensions)
	}
	return in.Name, nil
}

// selectScores picks the first float tensor output with one column per class.
func selectScores(outputs []ort.InputOutputInfo, classes int) (string, error) {
	for _, out := range outputs {
		if out.OrtValueType != ort.ONNXTypeTensor || out.DataType != ort.TensorElementDataTypeFloat {
			continue
		}
		dims := out.Dimensions
		if len(dims) == 2 && dims[1] == int64(classes) {
			return out.Name, nil
		}
	}
	return "", fmt.Errorf("onnx: no float output with %d class scores", classes)
}

// Predict runs one inference and returns the highest-scoring label.
func (m *ONNXModel) Predict(v features.Vector) (gesture.Label, error) {
	if err := v.Validate(); err != nil {
		return gesture.NoGesture, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	in, err := ort.NewTensor(ort.NewShape(1, int64(features.Dimensions)), v.Float32())
	if err != nil {
		return gesture.NoGesture, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(m.labels))))
	if err != nil {
		return gesture.NoGesture, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := m.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return gesture.NoGesture, fmt.Errorf("onnx: inference failed: %w", err)
	}

	return m.labels[argmax(out.GetData())], nil
}

// Close releases the ONNX session.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Destroy()
}

func argmax(scores []float32) int {
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return best
}
