package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestRecoverAndLogSwallowsPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	entry := logrus.NewEntry(logger)

	func() {
		defer RecoverAndLog(entry)
		panic("boom")
	}()

	require.Contains(t, buf.String(), "recovered from panic")
	require.Contains(t, buf.String(), "boom")
}

func TestRecoverAndLogNoopWithoutPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	entry := logrus.NewEntry(logger)

	func() {
		defer RecoverAndLog(entry)
	}()

	require.Empty(t, buf.String())
}
