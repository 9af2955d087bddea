package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/pipeline"
)

// Source feeds the pipeline one observation per camera frame: the first
// detected hand, or nil when there is none.
type Source struct {
	camera   Camera
	detector detector.Detector
	ticker   *time.Ticker
}

// NewSource pairs an open camera with a detector. Frames are paced at the
// camera's FPS; pass paced=false to read as fast as the camera delivers.
func NewSource(camera Camera, det detector.Detector, paced bool) *Source {
	s := &Source{camera: camera, detector: det}
	if paced && camera.FPS() > 0 {
		s.ticker = time.NewTicker(time.Second / time.Duration(camera.FPS()))
	}
	return s
}

// Next implements pipeline.Source.
func (s *Source) Next(ctx context.Context) (*hand.Landmarks, error) {
	if s.ticker != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ticker.C:
		}
	}

	frame, err := s.camera.ReadFrame()
	if err != nil {
		if errors.Is(err, ErrCameraNotOpen) || errors.Is(err, ErrExhausted) {
			return nil, fmt.Errorf("%w: %v", pipeline.ErrSourceClosed, err)
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	hands, err := s.detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}
	if len(hands) == 0 {
		return nil, nil
	}

	first := hands[0]
	return &first, nil
}

// Close stops pacing and closes the camera and detector.
func (s *Source) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return errors.Join(s.camera.Close(), s.detector.Close())
}
