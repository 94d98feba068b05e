package normalize

import "strings"

// DutchParticles are the tussenvoegsels ignored when comparing Dutch names
var DutchParticles = NewParticleSet(
	"van", "de", "den", "der", "het", "te", "ten", "ter",
	"van de", "van den", "van der", "van het", "in de", "in het", "op de", "op den", "uit de", "uit den",
)

// ParticleSet is a closed set of single and multi-token name particles
type ParticleSet struct {
	phrases   map[string]struct{}
	maxTokens int
}

// NewParticleSet builds a set from particles given in any case; multi-token
// particles are separated by whitespace
func NewParticleSet(particles ...string) *ParticleSet {
	set := &ParticleSet{phrases: make(map[string]struct{}, len(particles))}
	for _, p := range particles {
		tokens := strings.Fields(Normalize(p))
		if len(tokens) == 0 {
			continue
		}
		set.phrases[strings.Join(tokens, " ")] = struct{}{}
		if len(tokens) > set.maxTokens {
			set.maxTokens = len(tokens)
		}
	}
	return set
}

// Contains reports whether phrase (already normalized) is a particle
func (s *ParticleSet) Contains(phrase string) bool {
	_, ok := s.phrases[phrase]
	return ok
}

// Strip removes particles from a normalized name with a left-to-right,
// longest-match scan so that multi-token particles are matched as a unit.
// A name made only of particles is returned unchanged.
func (s *ParticleSet) Strip(normalized string) string {
	tokens := strings.Fields(normalized)
	kept := make([]string, 0, len(tokens))

	for i := 0; i < len(tokens); {
		matched := 0
		for width := min(s.maxTokens, len(tokens)-i); width > 0; width-- {
			if s.Contains(strings.Join(tokens[i:i+width], " ")) {
				matched = width
				break
			}
		}
		if matched == 0 {
			kept = append(kept, tokens[i])
			i++
			continue
		}
		i += matched
	}

	if len(kept) == 0 {
		return strings.Join(tokens, " ")
	}
	return strings.Join(kept, " ")
}

// Localizer normalizes names and strips a language's particles
type Localizer struct {
	particles *ParticleSet
}

// NewLocalizer creates a localizer; a nil set means DutchParticles
func NewLocalizer(particles *ParticleSet) *Localizer {
	if particles == nil {
		particles = DutchParticles
	}
	return &Localizer{particles: particles}
}

// Normalize applies Normalize followed by particle stripping
func (l *Localizer) Normalize(name string) string {
	return l.particles.Strip(Normalize(name))
}

// Localized normalizes a name and strips Dutch particles
func Localized(name string) string {
	return DutchParticles.Strip(Normalize(name))
}
