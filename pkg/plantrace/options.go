package plantrace

type options struct {
	format     string
	phase      string
	shortNames bool
	policy     string
	exclude    bool
}

func defaultOptions() options {
	return options{
		format:  "standard",
		phase:   "complete",
		exclude: true,
	}
}

// Option configures a Tracer.
type Option func(*options)

// WithFormat selects the log producer version: "standard", "origin-first" or
// "legacy". Default: standard.
func WithFormat(name string) Option {
	return func(o *options) {
		o.format = name
	}
}

// WithPhase selects "complete" events or "begin-end" pairs. Default: complete.
func WithPhase(phase string) Option {
	return func(o *options) {
		o.phase = phase
	}
}

// WithShortNames labels timeline events by task type instead of task id.
func WithShortNames() Option {
	return func(o *options) {
		o.shortNames = true
	}
}

// WithPolicy replaces the default exclusion policy with a Rego module that
// defines data.plantrace.export.exclude.
func WithPolicy(module string) Option {
	return func(o *options) {
		o.policy = module
		o.exclude = true
	}
}

// WithoutExclusions exports every trace, housekeeping tasks included.
func WithoutExclusions() Option {
	return func(o *options) {
		o.exclude = false
	}
}
