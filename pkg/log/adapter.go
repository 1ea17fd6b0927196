// Package log bridges logrus to third-party logger interfaces.
package log

import "github.com/sirupsen/logrus"

// BadgerAdapter satisfies badger.Logger, routing badger's internal messages
// through the application logger so cache noise respects the configured level.
type BadgerAdapter struct {
	entry *logrus.Entry
}

// NewBadgerAdapter wraps an entry for use as a badger option.
func NewBadgerAdapter(entry *logrus.Entry) *BadgerAdapter {
	return &BadgerAdapter{entry: entry}
}

func (a *BadgerAdapter) Errorf(format string, args ...interface{})   { a.entry.Errorf(format, args...) }
func (a *BadgerAdapter) Warningf(format string, args ...interface{}) { a.entry.Warningf(format, args...) }
func (a *BadgerAdapter) Infof(format string, args ...interface{})    { a.entry.Infof(format, args...) }
func (a *BadgerAdapter) Debugf(format string, args ...interface{})   { a.entry.Debugf(format, args...) }
