package logging

import (
	"testing"

	"go.viam.com/test"
)

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Infow("hello", "count", 3)
	logger.Sublogger("child").Warnf("low %s", "confidence")

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	test.That(t, logs.FilterMessage("hello").Len(), test.ShouldEqual, 1)
	entry := logs.All()[1]
	test.That(t, entry.Message, test.ShouldEqual, "low confidence")
	test.That(t, entry.LoggerName, test.ShouldEqual, "child")
	test.That(t, logs.FilterField(logs.All()[0].Context[0]).Len(), test.ShouldEqual, 1)
}

func TestReplaceGlobal(t *testing.T) {
	orig := Global()
	defer ReplaceGlobal(orig)

	logger := NewBlankLogger("blank")
	ReplaceGlobal(logger)
	test.That(t, Global(), test.ShouldEqual, logger)
}
