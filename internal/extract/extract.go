// Package extract enumerates candidate reminders from a single note.
//
// Three independent sources feed one identity scheme: a single review date
// in frontmatter, a recurring preset expanded across relative offsets, and
// inline per-line task tags. A candidate is an ephemeral value; as long as
// its backing field or line is unchanged it re-derives the same trigger
// instant and identity on every scan, which is what makes the sent-history
// de-duplication sound.
package extract

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/muninn/internal/deadline"
	"github.com/starford/muninn/internal/models"
)

// KindReview is the kind string for single review-date reminders.
const KindReview = "review"

// PresetKind returns the kind string for one preset offset instance.
func PresetKind(name, token string) string {
	return "preset:" + name + ":" + token
}

// InlineKind returns the kind string for an inline task at line index i.
func InlineKind(i int) string {
	return "inline:" + strconv.Itoa(i)
}

var (
	// An inline task line starts with an unchecked list checkbox.
	checkboxRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s+\[ \]\s?`)
	// The deadline tag may appear anywhere after the checkbox.
	checkTagRe = regexp.MustCompile(`(?i)\[check::\s*([^\]]*?)\s*\]`)
)

// Preset is a named set of relative offsets applied to a base date, with an
// optional message template.
type Preset struct {
	Name     string
	Offsets  []string
	Template string
}

// Rules carries the configuration a scan pass applies to every note.
type Rules struct {
	ReviewKey   string // frontmatter key for the single review date
	BaseDateKey string // frontmatter key for the recurring base date
	PresetKey   string // frontmatter key naming the preset

	ReviewFields []string // allow-listed template fields for review reminders
	PresetFields []string // allow-listed template fields for preset reminders

	ReviewTemplate string // template for review reminders
	PresetTemplate string // fallback template for presets without their own
	InlineTemplate string // template for inline task reminders

	Presets  []Preset
	Location *time.Location
}

// Preset returns the configured preset with the given name, matched
// case-sensitively.
func (r Rules) Preset(name string) (Preset, bool) {
	for _, p := range r.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Candidate is one due-or-future reminder derived from a note.
type Candidate struct {
	NotePath string
	Kind     string
	Trigger  time.Time
	Data     map[string]string
	Allowed  []string
	Template string
}

// Identity returns the stable composite identity the history store is keyed
// by: notePath::kind::triggerEpochSeconds.
func (c Candidate) Identity() string {
	return fmt.Sprintf("%s::%s::%d", c.NotePath, c.Kind, c.Trigger.Unix())
}

// Candidates enumerates every reminder the note currently defines. The three
// branches are independent: one note may yield a review candidate, several
// preset candidates, and several inline candidates at once. Malformed dates
// exclude only their own candidate.
func Candidates(note *models.Note, rules Rules) []Candidate {
	var out []Candidate
	out = append(out, reviewCandidates(note, rules)...)
	out = append(out, presetCandidates(note, rules)...)
	out = append(out, inlineCandidates(note, rules)...)
	return out
}

func reviewCandidates(note *models.Note, rules Rules) []Candidate {
	raw := frontmatterString(note.Frontmatter, rules.ReviewKey)
	if raw == "" {
		// Deleting the field is how a user cancels a pending reminder.
		return nil
	}
	trigger, ok := deadline.Parse(raw, rules.Location)
	if !ok {
		return nil
	}
	return []Candidate{{
		NotePath: note.Path,
		Kind:     KindReview,
		Trigger:  trigger,
		Data:     frontmatterData(note),
		Allowed:  rules.ReviewFields,
		Template: rules.ReviewTemplate,
	}}
}

func presetCandidates(note *models.Note, rules Rules) []Candidate {
	rawDate := frontmatterString(note.Frontmatter, rules.BaseDateKey)
	name := frontmatterString(note.Frontmatter, rules.PresetKey)
	if rawDate == "" || name == "" {
		return nil
	}
	preset, ok := rules.Preset(name)
	if !ok {
		return nil
	}
	base, ok := deadline.Parse(rawDate, rules.Location)
	if !ok {
		return nil
	}

	tmpl := preset.Template
	if tmpl == "" {
		tmpl = rules.PresetTemplate
	}

	// Offsets are expanded in configured order; duplicates are each their
	// own candidate with their own fire state.
	out := make([]Candidate, 0, len(preset.Offsets))
	for _, token := range preset.Offsets {
		data := frontmatterData(note)
		data["offset"] = token
		out = append(out, Candidate{
			NotePath: note.Path,
			Kind:     PresetKind(preset.Name, token),
			Trigger:  deadline.ApplyOffset(base, token),
			Data:     data,
			Allowed:  rules.PresetFields,
			Template: tmpl,
		})
	}
	return out
}

func inlineCandidates(note *models.Note, rules Rules) []Candidate {
	var out []Candidate
	for i, line := range note.Lines {
		marker := checkboxRe.FindString(line)
		if marker == "" {
			// Checked boxes and plain lines never match; completing a
			// task is what silently stops its reminder.
			continue
		}
		rest := line[len(marker):]
		tag := checkTagRe.FindStringSubmatch(rest)
		if tag == nil {
			continue
		}
		trigger, ok := deadline.Parse(tag[1], rules.Location)
		if !ok {
			continue
		}
		task := strings.TrimSpace(strings.Replace(rest, tag[0], "", 1))
		out = append(out, Candidate{
			NotePath: note.Path,
			Kind:     InlineKind(i),
			Trigger:  trigger,
			Data: map[string]string{
				"task":     task,
				"filename": filenameOf(note.Path),
			},
			Template: rules.InlineTemplate,
		})
	}
	return out
}

// frontmatterData flattens the note's frontmatter into the string record
// templates substitute from, plus the always-present filename.
func frontmatterData(note *models.Note) map[string]string {
	data := make(map[string]string, len(note.Frontmatter)+1)
	for k, v := range note.Frontmatter {
		if s := valueString(v); s != "" {
			data[k] = s
		}
	}
	data["filename"] = filenameOf(note.Path)
	return data
}

func frontmatterString(fm map[string]interface{}, key string) string {
	if fm == nil || key == "" {
		return ""
	}
	return valueString(fm[key])
}

// valueString normalizes a frontmatter value to its deadline-parseable
// string form. yaml.v3 resolves plain scalars like 2025-12-25 into
// time.Time, so dates must be formatted back before strict parsing.
func valueString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04")
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func filenameOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".md")
}
