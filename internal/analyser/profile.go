package analyser

import (
	"github.com/kitbuilder587/ba-analyser/internal/domain"
)

// Dimension - одно измерение качества со своим промптом
type Dimension struct {
	Key    string
	Name   string
	Weight float64
	// Criteria - что проверять, вставляется в <evaluation_criteria>
	Criteria string
	// Fields - JSON-поля ответа помимо score/strengths/summary
	Fields string
}

// Profile - набор измерений и промптов для одного типа артефакта
type Profile struct {
	Type         domain.ArtifactType
	Subject      string
	SystemPrompt string
	Dimensions   []Dimension
	// Location подставляется в описание поля location у issue
	Location string
}

func (p Profile) DisplayName(key string) string {
	for _, d := range p.Dimensions {
		if d.Key == key {
			return d.Name
		}
	}
	return key
}

func (p Profile) Keys() []string {
	keys := make([]string, len(p.Dimensions))
	for i, d := range p.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

var profiles = map[domain.ArtifactType]Profile{
	domain.ArtifactRequirements: requirementsProfile,
	domain.ArtifactProcess:      processProfile,
	domain.ArtifactUserStory:    storyProfile,
}

// ForType - use_case и unknown анализируются как requirements document
func ForType(t domain.ArtifactType) Profile {
	if p, ok := profiles[t]; ok {
		return p
	}
	return requirementsProfile
}
