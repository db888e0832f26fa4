package domain

import "time"

// MarkOption tunes the quality marking helpers.
type MarkOption func(*markConfig)

type markConfig struct {
	withChildren    *bool
	keepQualityFlag bool
	at              time.Time
}

// WithChildren forces (or prevents) propagation of the mark to descendants.
func WithChildren(enabled bool) MarkOption {
	return func(c *markConfig) { c.withChildren = &enabled }
}

// KeepQualityFlag leaves the quality flag untouched when un-marking a batch.
func KeepQualityFlag() MarkOption {
	return func(c *markConfig) { c.keepQualityFlag = true }
}

// MarkedAt sets the control timestamp stamped by MarkAsControlled.
func MarkedAt(t time.Time) MarkOption {
	return func(c *markConfig) { c.at = t }
}

func newMarkConfig(defaultChildren bool, opts []MarkOption) (markConfig, bool) {
	var cfg markConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	recurse := defaultChildren
	if cfg.withChildren != nil {
		recurse = *cfg.withChildren
	}
	return cfg, recurse
}

// MarkAsInvalid flags a batch as BAD with the supplied message. Descendants are
// left untouched unless WithChildren(true) is given.
func MarkAsInvalid(b *Batch, message string, opts ...MarkOption) {
	if b == nil {
		return
	}
	_, recurse := newMarkConfig(false, opts)
	markInvalid(b, message, recurse)
}

func markInvalid(b *Batch, message string, recurse bool) {
	b.ControlDate = nil
	b.QualificationComments = message
	b.QualityFlag = QualityFlagBad
	if recurse {
		for _, child := range b.Children {
			markInvalid(child, message, true)
		}
	}
}

// MarkAsControlled stamps a control date and clears any invalid state.
// It recurses into descendants unless WithChildren(false) is given.
func MarkAsControlled(b *Batch, opts ...MarkOption) {
	if b == nil {
		return
	}
	cfg, recurse := newMarkConfig(true, opts)
	at := cfg.at
	if at.IsZero() {
		at = time.Now().UTC()
	}
	markControlled(b, at, recurse)
}

func markControlled(b *Batch, at time.Time, recurse bool) {
	stamp := at
	b.ControlDate = &stamp
	b.QualityFlag = QualityFlagNotQualified
	b.QualificationComments = ""
	if recurse {
		for _, child := range b.Children {
			markControlled(child, at, true)
		}
	}
}

// MarkAsNotControlled clears the control date, the qualification comments and,
// unless KeepQualityFlag is given, the quality flag. It recurses by default.
func MarkAsNotControlled(b *Batch, opts ...MarkOption) {
	if b == nil {
		return
	}
	cfg, recurse := newMarkConfig(true, opts)
	markNotControlled(b, cfg.keepQualityFlag, recurse)
}

func markNotControlled(b *Batch, keepFlag, recurse bool) {
	b.ControlDate = nil
	b.QualificationComments = ""
	if !keepFlag {
		b.QualityFlag = QualityFlagNotQualified
	}
	if recurse {
		for _, child := range b.Children {
			markNotControlled(child, keepFlag, true)
		}
	}
}

// IsControlled reports whether a batch carries a control date.
func IsControlled(b *Batch) bool {
	return b != nil && b.ControlDate != nil
}

// IsInvalid reports whether a batch is flagged BAD.
func IsInvalid(b *Batch) bool {
	return b != nil && b.QualityFlag == QualityFlagBad
}
