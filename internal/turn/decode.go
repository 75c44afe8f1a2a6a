package turn

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nutritrack/internal/models"
)

var ErrSchema = errors.New("response does not match schema")

// Decoded is a schema-valid reply. Warnings lists optional parts that were
// malformed and dropped without rejecting the reply.
type Decoded struct {
	Response *models.TurnResponse
	Warnings []string
}

func schemaError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

// Decode parses and validates a backend reply. Required fields and the
// sentiment enum are enforced strictly; food_entry and activity_entry are
// decoded independently so a bad entry never costs the chat reply.
func Decode(raw []byte) (*Decoded, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	resp := &models.TurnResponse{}
	strs := map[string]*string{
		"reply":                &resp.Reply,
		"daily_motivation":     &resp.DailyMotivation,
		"next_meal_suggestion": &resp.NextMealSuggestion,
		"suggestion":           &resp.Suggestion,
	}
	for _, name := range requiredFields {
		target, ok := strs[name]
		if !ok {
			continue
		}
		if *target, err = requiredString(fields, name); err != nil {
			return nil, err
		}
	}

	sentiment, err := requiredString(fields, "sentiment")
	if err != nil {
		return nil, err
	}
	resp.Sentiment = models.Sentiment(sentiment)
	if !resp.Sentiment.Valid() {
		return nil, schemaError("sentiment %q is not one of positive, neutral, constructive", sentiment)
	}

	out := &Decoded{Response: resp}

	if rawList, ok := fields["food_analysis"]; ok && !isNull(rawList) {
		var items []json.RawMessage
		if err := json.Unmarshal(rawList, &items); err != nil {
			return nil, schemaError("food_analysis is not an array")
		}
		resp.FoodAnalysis = make([]models.FoodAnalysis, 0, len(items))
		for i, item := range items {
			var fa models.FoodAnalysis
			if err := json.Unmarshal(item, &fa); err != nil {
				out.Warnings = append(out.Warnings, fmt.Sprintf("food_analysis[%d] dropped: %v", i, err))
				continue
			}
			resp.FoodAnalysis = append(resp.FoodAnalysis, fa)
		}
	}

	if rawEntry, ok := fields["food_entry"]; ok && !isNull(rawEntry) {
		entry, err := decodeFoodEntry(rawEntry)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("food_entry dropped: %v", err))
		} else {
			resp.FoodEntry = entry
		}
	}

	if rawEntry, ok := fields["activity_entry"]; ok && !isNull(rawEntry) {
		entry, err := decodeActivityEntry(rawEntry)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("activity_entry dropped: %v", err))
		} else {
			resp.ActivityEntry = entry
		}
	}

	return out, nil
}

// decodeObject reads the first JSON object in raw. Only whitespace or an
// opening code fence may precede it; anything after it is ignored.
func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	start := bytes.IndexByte(raw, '{')
	if start == -1 {
		return nil, schemaError("no JSON object in response")
	}
	if !isFenceOpening(raw[:start]) {
		return nil, schemaError("unexpected text before JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(bytes.NewReader(raw[start:])).Decode(&fields); err != nil {
		return nil, schemaError("not a JSON object: %v", err)
	}
	return fields, nil
}

// isFenceOpening reports whether prefix is blank or a markdown fence such as
// "```json".
func isFenceOpening(prefix []byte) bool {
	p := bytes.TrimSpace(prefix)
	if len(p) == 0 {
		return true
	}
	tag, ok := bytes.CutPrefix(p, []byte("```"))
	if !ok {
		return false
	}
	for _, b := range tag {
		if !(b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z') {
			return false
		}
	}
	return true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func requiredString(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", schemaError("missing required field %q", name)
	}
	if isNull(raw) {
		return "", schemaError("field %q must not be null", name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", schemaError("field %q must be a string", name)
	}
	return s, nil
}

func decodeFoodEntry(raw json.RawMessage) (*models.FoodEntry, error) {
	var entry models.FoodEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode food entry: %w", err)
	}
	entry.Name = strings.TrimSpace(entry.Name)
	if entry.Name == "" {
		return nil, fmt.Errorf("food entry name is required")
	}
	for name, v := range map[string]float64{
		"calories": entry.Calories,
		"protein":  entry.Protein,
		"carbs":    entry.Carbs,
		"fat":      entry.Fat,
	} {
		if v < 0 {
			return nil, fmt.Errorf("food entry %s must be >= 0", name)
		}
	}
	return &entry, nil
}

func decodeActivityEntry(raw json.RawMessage) (*models.ActivityEntry, error) {
	var entry models.ActivityEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode activity entry: %w", err)
	}
	entry.Name = strings.TrimSpace(entry.Name)
	if entry.Name == "" {
		return nil, fmt.Errorf("activity entry name is required")
	}
	if entry.CaloriesBurned < 0 {
		return nil, fmt.Errorf("activity entry calories_burned must be >= 0")
	}
	return &entry, nil
}
