package session

import (
	"image"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lensfocus/fisheye"
	"lensfocus/report"
)

// ErrInsufficientSamples is returned when too few views were captured
var ErrInsufficientSamples = errors.New("not enough calibration images")

// FitFunc fits the lens model to views
type FitFunc func(views []fisheye.View, size image.Point, flags fisheye.Flags) (*fisheye.Result, error)

// PersistFunc stores a result
type PersistFunc func(res *fisheye.Result, paths report.Paths) error

// Calibrator gates, runs and persists a calibration
type Calibrator struct {
	MinSamples int
	Flags      fisheye.Flags
	Paths      report.Paths
	Fit        FitFunc
	Persist    PersistFunc
}

// NewCalibrator wires the fisheye fit and report writer
func NewCalibrator(minSamples int, paths report.Paths) *Calibrator {
	return &Calibrator{
		MinSamples: minSamples,
		Flags:      fisheye.DefaultFlags,
		Paths:      paths,
		Fit:        fisheye.Calibrate,
		Persist:    report.Write,
	}
}

// Run fits views captured at size. Nothing is fitted or written when fewer
// than MinSamples views are supplied.
func (c *Calibrator) Run(views []fisheye.View, size image.Point) (*fisheye.Result, error) {
	if len(views) < c.MinSamples {
		return nil, errors.Wrapf(ErrInsufficientSamples, "have %d, need at least %d", len(views), c.MinSamples)
	}

	log.WithFields(logrus.Fields{
		"views": len(views),
		"size":  size,
	}).Info("running fisheye calibration")

	res, err := c.Fit(views, size, c.Flags)
	if err != nil {
		return nil, errors.Wrap(err, "fisheye calibration")
	}
	if err := c.Persist(res, c.Paths); err != nil {
		return nil, err
	}
	return res, nil
}
