package bus

import "github.com/sirupsen/logrus"

var log = logrus.WithField("component", "BUS")

// SetLogger allows main package to provide the package logger
func SetLogger(entry *logrus.Entry) {
	if entry != nil {
		log = entry
	}
}
