package stratabase

import (
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

// EvaluatorLogEvent describes one Evaluate call. Layer names the strongest
// layer holding a property of ID, or the layer given in the RuleContext.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Object   string
	ID       uuid.UUID
	Layer    string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// GlogEvaluatorLogger writes failed evaluations as warnings and successful
// ones at verbosity level.
func GlogEvaluatorLogger(level glog.Level) EvaluatorLogger {
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		if event.Err != nil {
			glog.Warningf("[stratabase] %s %q on %s@%s failed after %s: %v\n",
				event.Engine, event.Expr, event.Object, event.Layer, event.Duration, event.Err)
			return
		}
		glog.V(level).Infof("[stratabase] %s %q on %s@%s took %s\n",
			event.Engine, event.Expr, event.Object, event.Layer, event.Duration)
	})
}

// WithEvaluatorLogger attaches an evaluator logger to the store. A nil
// logger disables logging.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopEvaluatorLogger{}
			return
		}
		cfg.logger = logger
	}
}
