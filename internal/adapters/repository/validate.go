package repository

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/deepp5/catrack/internal/domain/model"
)

func checkMedia(ref model.MediaRef) error {
	if strings.TrimSpace(ref.ID) == "" {
		return fmt.Errorf("%w: media id is empty", ErrInvalidInput)
	}
	if strings.TrimSpace(ref.Path) == "" {
		return fmt.Errorf("%w: media %s has no path", ErrInvalidInput, ref.ID)
	}
	return nil
}

func prepareSample(s model.SoundSample) (model.SoundSample, error) {
	if err := s.Key.Validate(); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := model.ParseLabel(string(s.Label)); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := checkMedia(s.Media); err != nil {
		return s, err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return s, nil
}
