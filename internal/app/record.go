package app

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/pipeline"
)

// Record appends one labeled sample per frame with a hand until ctx is
// cancelled or the source closes. It returns the number of samples written.
func Record(ctx context.Context, src pipeline.Source, w *dataset.Writer, label gesture.Label, log logrus.FieldLogger) (int, error) {
	written := 0
	for {
		if ctx.Err() != nil {
			return written, nil
		}

		obs, err := src.Next(ctx)
		switch {
		case errors.Is(err, pipeline.ErrSourceClosed):
			return written, nil
		case ctx.Err() != nil:
			return written, nil
		case err != nil:
			log.WithError(err).Debug("skipping frame")
			continue
		case obs == nil:
			continue
		}

		v, err := features.Extract(obs.Points)
		if err != nil {
			log.WithError(err).Debug("skipping observation")
			continue
		}
		if err := w.Write(dataset.Sample{Features: v, Label: label}); err != nil {
			return written, err
		}
		written++
		if written%50 == 0 {
			log.WithFields(logrus.Fields{"label": label.String(), "samples": written}).Info("recording")
		}
	}
}
