// Package logging provides the centralized logging infrastructure for adaptarr
// services. It implements level-based output routing (errors to stderr,
// everything else to stdout) so containerized deployments can treat the two
// streams differently, and a small context-aware wrapper around logrus
// (ContextLogger). The other packages log through an injected *logrus.Entry
// rather than the standard log package.
package logging

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stderr or stdout based on
// their level, so orchestrators can apply different handling to each stream.
type OutputSplitter struct{}

// Write implements io.Writer, routing error-level lines to stderr.
func (s *OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Log is the package-wide logger instance, the fallback logger for With and
// the one cmd/adaptarrd reports configuration failures through.
var Log = logrus.New()

func init() {
	Log.SetOutput(&OutputSplitter{})
}
