package model

// JobSpec defines a complete job specification with multiple steps
type JobSpec struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Role        string            `yaml:"role" json:"role"`
	Timeout     string            `yaml:"timeout" json:"timeout"`
	Retries     int               `yaml:"retries" json:"retries"`
	Needs       []string          `yaml:"needs" json:"needs"`
	Steps       []Step            `yaml:"steps" json:"steps"`
	Labels      map[string]string `yaml:"labels" json:"labels"`
}

// Step is a single execution unit within a job. Either Run (a shell
// command, templated) or Uses (a builtin action name) is set, never both.
type Step struct {
	Name      string                 `yaml:"name" json:"name"`
	Run       string                 `yaml:"run,omitempty" json:"run,omitempty"`
	Uses      string                 `yaml:"uses,omitempty" json:"uses,omitempty"`
	With      map[string]interface{} `yaml:"with,omitempty" json:"with,omitempty"`
	OnlyOn    []string               `yaml:"onlyOn,omitempty" json:"onlyOn,omitempty"`
	Timeout   string                 `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retry     int                    `yaml:"retry,omitempty" json:"retry,omitempty"`
	OnFailure string                 `yaml:"onFailure,omitempty" json:"onFailure,omitempty"` // stop, continue
}

// RunsOn reports whether the step applies to the given trigger. An empty
// OnlyOn list means the step runs on every trigger.
func (s Step) RunsOn(trigger Trigger) bool {
	if len(s.OnlyOn) == 0 {
		return true
	}
	for _, t := range s.OnlyOn {
		if t == string(trigger) {
			return true
		}
	}
	return false
}
