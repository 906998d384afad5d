package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Span times one stage of a backtest run
type Span struct {
	Name       string    `json:"name"`
	startTs    time.Time `json:"-"`
	Elapsed    *int64    `json:"elapsedMs"`
	SubProfile *Profile  `json:"subProfile,omitempty"`
}

func (s *Span) End() {
	if s.SubProfile != nil {
		s.SubProfile.End()
	}
	if s.Elapsed == nil {
		t := time.Since(s.startTs).Milliseconds()
		s.Elapsed = &t
	}
}

// NewSubProfile nests a profile under the span, for stages that time
// their own steps
func (s *Span) NewSubProfile() (*Profile, func()) {
	if s.SubProfile != nil {
		panic("attempting to override existing subprofile")
	}
	newProfile, end := NewProfile()
	s.SubProfile = newProfile
	return newProfile, end
}

type profileKey struct{}

// Profile is simply a list of spans
type Profile struct {
	Spans   []*Span `json:"spans"`
	TotalMs *int64  `json:"totalMs"`
	startTs time.Time
}

func NewProfile() (newProfile *Profile, endNewProfile func()) {
	newProfile = &Profile{
		Spans:   []*Span{},
		startTs: time.Now(),
	}
	return newProfile, newProfile.End
}

func NewCtxWithProfile(ctx context.Context, p *Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

func NewCtxWithSubProfile(ctx context.Context, parentSpan *Span) context.Context {
	newProfile, _ := parentSpan.NewSubProfile()
	return NewCtxWithProfile(ctx, newProfile)
}

// GetProfile returns the profile attached to ctx. Callers that never
// attached one get a detached profile so stages can time themselves
// unconditionally.
func GetProfile(ctx context.Context) (profile *Profile, endProfile func()) {
	if p, ok := ctx.Value(profileKey{}).(*Profile); ok {
		return p, p.End
	}
	return NewProfile()
}

func (p *Profile) End() {
	if len(p.Spans) > 0 {
		p.Spans[len(p.Spans)-1].End()
	}
	if p.TotalMs == nil {
		t := time.Since(p.startTs).Milliseconds()
		p.TotalMs = &t
	}
}

// StartNewSpan ends the last span and begins a new one
// not thread safe
func (p *Profile) StartNewSpan(name string) (newSpan *Span, endSpan func()) {
	newSpan = &Span{
		Name:    name,
		startTs: time.Now(),
	}
	if len(p.Spans) > 0 {
		p.Spans[len(p.Spans)-1].End()
	}
	p.Spans = append(p.Spans, newSpan)
	return newSpan, newSpan.End
}

func (p *Profile) ToJsonBytes() ([]byte, error) {
	return json.Marshal(p)
}
