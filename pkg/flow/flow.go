// Package flow parses YAML flow files: an optional header followed by a
// list of simulator steps.
package flow

// Flow represents a parsed flow file.
type Flow struct {
	SourcePath string // Path to the source file
	Config     Config // Header (appId, udid, env, ...)
	Steps      []Step // Steps to execute
}

// Config represents the flow header.
type Config struct {
	AppID string            `yaml:"appId"` // Default bundle ID for launchApp/terminateApp
	UDID  string            `yaml:"udid"`  // Target simulator; a --udid flag wins
	Name  string            `yaml:"name"`
	Tags  []string          `yaml:"tags"`
	Env   map[string]string `yaml:"env"`
}

// DisplayName returns the flow name, or the source path when unnamed.
func (f *Flow) DisplayName() string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	return f.SourcePath
}
