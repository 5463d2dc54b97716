// Package flow parses YAML step files that drive UI objects on a device.
//
// A flow file holds an optional config document followed by a list of
// steps:
//
//	name: Login
//	env:
//	  USER: bob
//	---
//	- tapOn: Sign in
//	- inputText:
//	    res: com.example:id/user
//	    text: ${USER}
//	- assertVisible: Welcome
package flow

// Flow is a parsed flow file.
type Flow struct {
	SourcePath string
	Config     Config
	Steps      []Step
}

// Config is the optional first document of a flow file.
type Config struct {
	Name    string            `yaml:"name"`
	Tags    []string          `yaml:"tags"`
	Env     map[string]string `yaml:"env"`
	Timeout int               `yaml:"timeout"` // default wait timeout in ms
	OnStart []Step            `yaml:"-"`
	OnEnd   []Step            `yaml:"-"`
}

// DisplayName returns the configured name or the source path.
func (f *Flow) DisplayName() string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	return f.SourcePath
}
