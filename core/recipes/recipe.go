// Package recipes decodes the recipe a cooking room was created for and turns
// it into model instructions.
package recipes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const defaultTitle = "something delicious"

// Recipe is the recipe context carried in the room metadata.
type Recipe struct {
	Title string `json:"title"`
	// ResumeFromStep is the step the user paused at, empty for a fresh start.
	ResumeFromStep string       `json:"-"`
	Servings       string       `json:"-"`
	Difficulty     string       `json:"difficulty"`
	Ingredients    []Ingredient `json:"ingredients"`
	Steps          []Step       `json:"steps"`
}

// Ingredient is either a plain line ("2 eggs") or a structured entry.
type Ingredient struct {
	Name   string
	Amount string
	Unit   string
}

func (i Ingredient) String() string {
	return strings.Join(strings.Fields(strings.Join([]string{i.Amount, i.Unit, i.Name}, " ")), " ")
}

func (i *Ingredient) UnmarshalJSON(data []byte) error {
	var line string
	if err := json.Unmarshal(data, &line); err == nil {
		*i = Ingredient{Name: line}
		return nil
	}

	var entry struct {
		Name   string          `json:"name"`
		Item   string          `json:"item"`
		Amount json.RawMessage `json:"amount"`
		Unit   string          `json:"unit"`
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return fmt.Errorf("failed to decode ingredient: %w", err)
	}

	name := entry.Name
	if name == "" {
		name = entry.Item
	}
	*i = Ingredient{Name: name, Amount: scalar(entry.Amount), Unit: entry.Unit}
	return nil
}

// Step is one recipe step, optionally with a time hint ("10 min").
type Step struct {
	Instruction string
	Time        string
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var line string
	if err := json.Unmarshal(data, &line); err == nil {
		*s = Step{Instruction: line}
		return nil
	}

	var entry struct {
		Instruction string          `json:"instruction"`
		Text        string          `json:"text"`
		Time        json.RawMessage `json:"time"`
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return fmt.Errorf("failed to decode step: %w", err)
	}

	instruction := entry.Instruction
	if instruction == "" {
		instruction = entry.Text
	}
	*s = Step{Instruction: instruction, Time: scalar(entry.Time)}
	return nil
}

func (r *Recipe) UnmarshalJSON(data []byte) error {
	type plain Recipe
	var decoded struct {
		plain
		ResumeFromStep json.RawMessage `json:"resume_from_step"`
		Servings       json.RawMessage `json:"servings"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*r = Recipe(decoded.plain)
	r.ResumeFromStep = scalar(decoded.ResumeFromStep)
	r.Servings = scalar(decoded.Servings)
	return nil
}

// ParseRoomMetadata decodes room metadata. Empty metadata yields an empty
// recipe; the caller decides what to do with a decode error.
func ParseRoomMetadata(metadata string) (Recipe, error) {
	var recipe Recipe
	if strings.TrimSpace(metadata) == "" {
		return recipe, nil
	}

	if err := json.Unmarshal([]byte(metadata), &recipe); err != nil {
		return Recipe{}, fmt.Errorf("failed to parse room metadata: %w", err)
	}
	return recipe, nil
}

// DisplayTitle is the title, or a friendly placeholder when none was sent.
func (r Recipe) DisplayTitle() string {
	if title := strings.TrimSpace(r.Title); title != "" {
		return title
	}
	return defaultTitle
}

// Resuming reports whether the user is coming back to a paused recipe.
func (r Recipe) Resuming() bool {
	return r.ResumeFromStep != "" && r.ResumeFromStep != "0"
}

// scalar renders a JSON string or number as text. Anything else is empty.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		if value, err := strconv.ParseFloat(number.String(), 64); err == nil && value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return number.String()
	}

	return ""
}
