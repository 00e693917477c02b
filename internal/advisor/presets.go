package advisor

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// Category is a named group of ready-made questions.
type Category struct {
	Name      string   `json:"category" yaml:"category"`
	Questions []string `json:"questions" yaml:"questions"`
}

// Presets is an ordered list of categories. References into it are
// 1-based "category.question" strings such as "2.3".
type Presets []Category

// DefaultPresets returns a fresh copy of the built-in question set.
func DefaultPresets() Presets {
	return Presets{
		{Name: "Crop Diseases", Questions: []string{
			"Mere wheat ki leaves pe yellow spots aa gaye hai, kya karu?",
			"Rice crop me insects lag gaye hai, treatment batao",
			"Tomato ke plants wilt ho rahe hai, kya problem hai?",
			"Mango tree me fruits gir rahe hai, reason aur solution?",
		}},
		{Name: "Fertilizers & Manure", Questions: []string{
			"Wheat ke liye konsa fertilizer best hai?",
			"Rice crop me kab aur kitna urea dalna chahiye?",
			"Organic manure kaise banaye?",
			"Crops ke liye NPK ratio kaise decide kare?",
		}},
		{Name: "Weather & Sowing", Questions: []string{
			"Rabi crop kab sow karni chahiye?",
			"Kharif crop ke liye konsa month right hai?",
			"Rain ke baad field preparation kaise kare?",
			"Drought me konsi crop grow kare?",
		}},
		{Name: "Animal Husbandry", Questions: []string{
			"Cow ka milk kam ho raha hai, kya kare?",
			"Chickens me disease ke symptoms aur treatment",
			"Buffalo ka fodder kaise prepare kare?",
			"Animals ke liye vaccination kab karana chahiye?",
		}},
		{Name: "Horticulture", Questions: []string{
			"Vegetable farming me kya precautions le?",
			"Fruit trees ki care kaise kare?",
			"Chili crop me fruits nahi aa rahe, kya kare?",
			"Onion cultivation ka right method kya hai?",
		}},
	}
}

// Lookup resolves a "c.q" reference to its question text.
func (p Presets) Lookup(ref string) (string, error) {
	cs, qs, ok := strings.Cut(strings.TrimSpace(ref), ".")
	if !ok {
		return "", fmt.Errorf("advisor: preset reference %q: want <category>.<question>", ref)
	}
	c, err := strconv.Atoi(cs)
	if err != nil || c < 1 || c > len(p) {
		return "", fmt.Errorf("advisor: preset reference %q: no category %s", ref, cs)
	}
	q, err := strconv.Atoi(qs)
	if err != nil || q < 1 || q > len(p[c-1].Questions) {
		return "", fmt.Errorf("advisor: preset reference %q: no question %s in %q", ref, qs, p[c-1].Name)
	}
	return p[c-1].Questions[q-1], nil
}

// Flat returns every question in display order. The console numbers its
// menu from this list.
func (p Presets) Flat() []string {
	var out []string
	for _, c := range p {
		out = append(out, c.Questions...)
	}
	return out
}

// PresetStore holds the current preset list and lets the config watcher
// swap it without locking readers.
type PresetStore struct {
	v atomic.Pointer[Presets]
}

// NewPresetStore returns a store holding p, or the defaults when p is empty.
func NewPresetStore(p Presets) *PresetStore {
	s := &PresetStore{}
	s.Set(p)
	return s
}

// Get returns the current presets. Callers must not modify the result.
func (s *PresetStore) Get() Presets {
	return *s.v.Load()
}

// Set replaces the presets. An empty list restores the defaults.
func (s *PresetStore) Set(p Presets) {
	if len(p) == 0 {
		p = DefaultPresets()
	}
	s.v.Store(&p)
}
