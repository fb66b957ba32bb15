package launch

import (
	log "github.com/sirupsen/logrus"
)

// ProgressMonitor receives progress updates as a run moves between steps.
type ProgressMonitor interface {
	// SubTask is called with a description of the step that's starting.
	SubTask(name string)

	// Worked is called with the number of steps completed since the last
	// call.
	Worked(units int)
}

// LogProgress reports progress through a logger.
type LogProgress struct {
	Log log.FieldLogger
}

func (p LogProgress) SubTask(name string) {
	p.logger().Info(name)
}

func (p LogProgress) Worked(units int) {
	p.logger().WithField("units", units).Debug("Step completed")
}

func (p LogProgress) logger() log.FieldLogger {
	if p.Log == nil {
		return log.StandardLogger()
	}
	return p.Log
}
