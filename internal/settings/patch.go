package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/verte-zerg/bibleclock/internal/model"
)

// Patch is a partial settings update. Nil fields are left unchanged.
type Patch struct {
	DisplayMode          *model.DisplayMode
	ParallelMode         *bool
	Translation          *model.Translation
	SecondaryTranslation *model.Translation
	TimeFormat           *model.TimeFormat
	DevotionalInterval   *int
	WakeWordEnabled      *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return len(p.Fields()) == 0
}

// Fields lists the JSON names of the fields the patch sets.
func (p Patch) Fields() []string {
	var fields []string
	if p.DisplayMode != nil {
		fields = append(fields, "display_mode")
	}
	if p.ParallelMode != nil {
		fields = append(fields, "parallel_mode")
	}
	if p.Translation != nil {
		fields = append(fields, "translation")
	}
	if p.SecondaryTranslation != nil {
		fields = append(fields, "secondary_translation")
	}
	if p.TimeFormat != nil {
		fields = append(fields, "time_format")
	}
	if p.DevotionalInterval != nil {
		fields = append(fields, "devotional_interval")
	}
	if p.WakeWordEnabled != nil {
		fields = append(fields, "wake_word_enabled")
	}
	return fields
}

// Validate checks every set field. The first failure is returned.
func (p Patch) Validate() error {
	if p.DisplayMode != nil && !p.DisplayMode.Valid() {
		return invalid(CodeInvalidMode, "display_mode", string(*p.DisplayMode))
	}
	if p.Translation != nil && !p.Translation.Valid() {
		return invalid(CodeInvalidTranslation, "translation", string(*p.Translation))
	}
	if p.SecondaryTranslation != nil && !p.SecondaryTranslation.Valid() {
		return invalid(CodeInvalidTranslation, "secondary_translation", string(*p.SecondaryTranslation))
	}
	if p.TimeFormat != nil && !p.TimeFormat.Valid() {
		return invalid(CodeInvalidTimeFormat, "time_format", string(*p.TimeFormat))
	}
	if p.DevotionalInterval != nil && !model.ValidDevotionalInterval(*p.DevotionalInterval) {
		return invalid(CodeInvalidInterval, "devotional_interval", *p.DevotionalInterval)
	}
	return nil
}

func (p Patch) applyTo(s model.Settings) model.Settings {
	if p.DisplayMode != nil {
		s.DisplayMode = *p.DisplayMode
	}
	if p.ParallelMode != nil {
		s.ParallelMode = *p.ParallelMode
	}
	if p.Translation != nil {
		s.Translation = *p.Translation
	}
	if p.SecondaryTranslation != nil {
		s.SecondaryTranslation = *p.SecondaryTranslation
	}
	if p.TimeFormat != nil {
		s.TimeFormat = *p.TimeFormat
	}
	if p.DevotionalInterval != nil {
		s.DevotionalInterval = *p.DevotionalInterval
	}
	if p.WakeWordEnabled != nil {
		s.WakeWordEnabled = *p.WakeWordEnabled
	}
	return s
}

// Validate checks a complete settings value.
func Validate(s model.Settings) error {
	mode := s.DisplayMode
	translation := s.Translation
	secondary := s.SecondaryTranslation
	timeFormat := s.TimeFormat
	interval := s.DevotionalInterval
	return Patch{
		DisplayMode:          &mode,
		Translation:          &translation,
		SecondaryTranslation: &secondary,
		TimeFormat:           &timeFormat,
		DevotionalInterval:   &interval,
	}.Validate()
}

// DecodePatch decodes a JSON object into a Patch. Wrongly typed values map to
// the validation code of their field. Unknown keys are ignored.
func DecodePatch(data []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Patch{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	var p Patch
	for key, value := range raw {
		switch key {
		case "display_mode":
			s, ok := decodeString(value)
			if !ok {
				return Patch{}, invalid(CodeInvalidMode, key, string(value))
			}
			mode := model.DisplayMode(s)
			p.DisplayMode = &mode
		case "translation", "secondary_translation":
			s, ok := decodeString(value)
			if !ok {
				return Patch{}, invalid(CodeInvalidTranslation, key, string(value))
			}
			t := model.Translation(strings.ToLower(s))
			if key == "translation" {
				p.Translation = &t
			} else {
				p.SecondaryTranslation = &t
			}
		case "parallel_mode", "wake_word_enabled":
			var b bool
			if err := json.Unmarshal(value, &b); err != nil || isNull(value) {
				return Patch{}, invalid(CodeInvalidFlag, key, string(value))
			}
			if key == "parallel_mode" {
				p.ParallelMode = &b
			} else {
				p.WakeWordEnabled = &b
			}
		case "time_format":
			f, ok := decodeTimeFormat(value)
			if !ok {
				return Patch{}, invalid(CodeInvalidTimeFormat, key, string(value))
			}
			p.TimeFormat = &f
		case "devotional_interval":
			n, ok := decodeInt(value)
			if !ok {
				return Patch{}, invalid(CodeInvalidInterval, key, string(value))
			}
			p.DevotionalInterval = &n
		}
	}
	return p, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

func decodeString(value json.RawMessage) (string, bool) {
	var s string
	if isNull(value) {
		return "", false
	}
	if err := json.Unmarshal(value, &s); err != nil {
		return "", false
	}
	return s, true
}

// decodeInt accepts integral JSON numbers only.
func decodeInt(value json.RawMessage) (int, bool) {
	if isNull(value) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(value, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// decodeTimeFormat accepts "12", "24", 12 or 24.
func decodeTimeFormat(value json.RawMessage) (model.TimeFormat, bool) {
	if s, ok := decodeString(value); ok {
		return model.TimeFormat(strings.TrimSpace(s)), true
	}
	n, ok := decodeInt(value)
	if !ok {
		return "", false
	}
	return model.TimeFormat(strconv.Itoa(n)), true
}
