package fisheye

import "github.com/sirupsen/logrus"

var log = logrus.WithField("component", "fisheye")
