package domain

import (
	"errors"
	"testing"
)

func TestUserStory_Validate(t *testing.T) {
	valid := UserStory{ID: "US-001", Priority: PriorityMust, EstimateComplexity: "M"}

	tests := []struct {
		name    string
		modify  func(s *UserStory)
		wantErr bool
	}{
		{"valid", func(s *UserStory) {}, false},
		{"wont priority", func(s *UserStory) { s.Priority = PriorityWont }, false},
		{"xl complexity", func(s *UserStory) { s.EstimateComplexity = "XL" }, false},
		{"empty id", func(s *UserStory) { s.ID = " " }, true},
		{"lowercase priority", func(s *UserStory) { s.Priority = "must" }, true},
		{"unknown complexity", func(s *UserStory) { s.EstimateComplexity = "XXL" }, true},
		{"missing priority", func(s *UserStory) { s.Priority = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.modify(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidStory) {
				t.Errorf("Validate() error = %v, want ErrInvalidStory", err)
			}
		})
	}
}

func TestUserStory_Statement(t *testing.T) {
	s := UserStory{Persona: "Online Customer", Goal: "search books", Benefit: "I find them fast"}
	want := "As a Online Customer, I want search books, so that I find them fast"
	if got := s.Statement(); got != want {
		t.Errorf("Statement() = %q, want %q", got, want)
	}
}
