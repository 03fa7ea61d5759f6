package opencv

import (
	"context"
	"image"
	"sync"

	"github.com/LdDl/plate-passages/plates"
	"github.com/LdDl/plate-passages/yolo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

const (
	// DefaultInputSize is side of the square network input
	DefaultInputSize = 640
	// PlateClasses is number of classes of the plate region model
	PlateClasses = 1
)

// padding colour used by YOLOv8 letterboxing
var letterboxFill = gocv.NewScalar(114, 114, 114, 0)

// ONNXDetector runs a YOLOv8 model exported to ONNX through OpenCV DNN.
// Net is not safe for concurrent use, so inference is serialized.
type ONNXDetector struct {
	mu        sync.Mutex
	net       gocv.Net
	classes   int
	inputSize int
	logger    zerolog.Logger
}

// NewONNXDetector loads model weights from path
func NewONNXDetector(path string, classes, inputSize int, logger zerolog.Logger) (*ONNXDetector, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, errors.Errorf("can't read model %q", path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	logger.Info().Str("model", path).Int("classes", classes).Int("input", inputSize).Msg("model loaded")
	return &ONNXDetector{
		net:       net,
		classes:   classes,
		inputSize: inputSize,
		logger:    logger,
	}, nil
}

func (d *ONNXDetector) Detect(ctx context.Context, frame plates.Frame, confidence, iou float64) ([]plates.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mf, ok := frame.(*MatFrame)
	if !ok {
		return nil, errors.Errorf("unsupported frame type %T", frame)
	}
	lb := yolo.NewLetterbox(mf.Bounds(), d.inputSize)
	input := d.letterbox(mf.Mat(), lb)
	defer input.Close()
	blob := gocv.BlobFromImage(input, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "can't read network output")
	}
	head, err := yolo.HeadFor(len(data), d.classes)
	if err != nil {
		return nil, err
	}
	boxes, err := yolo.Decode(data, head, lb, confidence, iou)
	if err != nil {
		return nil, err
	}
	d.logger.Debug().Int("boxes", len(boxes)).Msg("inference done")
	return boxes, nil
}

// letterbox resizes src keeping aspect ratio and pads it to a square
func (d *ONNXDetector) letterbox(src gocv.Mat, lb yolo.Letterbox) gocv.Mat {
	padded := gocv.NewMatWithSizeFromScalar(letterboxFill, d.inputSize, d.inputSize, gocv.MatTypeCV8UC3)
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Pt(lb.Width, lb.Height), 0, 0, gocv.InterpolationLinear)
	content := padded.Region(lb.Content())
	resized.CopyTo(&content)
	content.Close()
	return padded
}

func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// ModelPaths points at plate region and character weights
type ModelPaths struct {
	Plates     string
	Characters string
	InputSize  int
}

// ModelLoader returns plates.ModelLoader reading both ONNX models
func ModelLoader(paths ModelPaths, logger zerolog.Logger) plates.ModelLoader {
	return func(ctx context.Context) (*plates.Models, error) {
		plateNet, err := NewONNXDetector(paths.Plates, PlateClasses, paths.InputSize, logger.With().Str("model", "plates").Logger())
		if err != nil {
			return nil, err
		}
		charNet, err := NewONNXDetector(paths.Characters, len(plates.Alphabet), paths.InputSize, logger.With().Str("model", "characters").Logger())
		if err != nil {
			plateNet.Close()
			return nil, err
		}
		return &plates.Models{Plates: plateNet, Characters: charNet}, nil
	}
}
