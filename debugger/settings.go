package debugger

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/c360/flowkit/errors"
)

// settingsFile is the on-disk shape of the persisted breakpoint settings.
type settingsFile struct {
	NodeBreakpoints map[string]*NodeBreakpoints `yaml:"node_breakpoints"`
}

// loadSettings reads the settings file at s.path. A missing file leaves the
// subsystem empty.
func (s *Subsystem) loadSettings() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WrapTransient(err, "debugger", "loadSettings", "read settings file")
	}

	var file settingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.WrapInvalid(err, "debugger", "loadSettings", "parse settings file")
	}
	if file.NodeBreakpoints != nil {
		s.nodes = file.NodeBreakpoints
	}
	return nil
}

// saveSettings writes the current breakpoints to s.path. Failures are logged
// rather than returned: breakpoint edits must not fail interactive editing,
// and the next successful save catches up. Callers hold s.mu.
func (s *Subsystem) saveSettings() {
	if s.path == "" {
		return
	}

	data, err := yaml.Marshal(settingsFile{NodeBreakpoints: s.nodes})
	if err != nil {
		s.logger.Error("failed to encode debugger settings", "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Error("failed to write debugger settings", "path", s.path, "error", err)
	}
}
