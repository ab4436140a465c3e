package domain

import "strings"

const MaxArtifactLength = 200_000

// ValidateArtifact проверяет текст артефакта перед отправкой в LLM.
func ValidateArtifact(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyArtifact
	}
	if len(text) > MaxArtifactLength {
		return ErrArtifactTooLong
	}
	return nil
}

func ValidateThreshold(threshold float64) error {
	if threshold < 0 || threshold > 100 {
		return ErrInvalidThreshold
	}
	return nil
}

// ClampScore - модель иногда возвращает 105 или -1
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
