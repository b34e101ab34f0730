package workflow

import (
	"regexp"
	"strings"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

// Template names recorded on each workflow
const (
	TemplateFeature = "feature"
	TemplateBug     = "bug"
	TemplateDefault = "default"
)

// StageSpec is one planned stage before a workflow exists
type StageSpec struct {
	Name   string
	RoleID string
}

// Template is an ordered stage plan
type Template struct {
	Name   string
	Stages []StageSpec
}

// EstimatedMinutes is the completion hint for the template
func (t Template) EstimatedMinutes() int {
	return len(t.Stages) * entity.MinutesPerStage
}

var (
	featurePattern = regexp.MustCompile(`(?i)\b(feature\w*|implement\w*)\b`)
	bugPattern     = regexp.MustCompile(`(?i)\b(bug\w*|fix\w*)\b`)
)

// SelectTemplate picks the stage plan for a task description. Feature
// wording is checked before bug wording; anything else gets the default plan.
func SelectTemplate(taskDescription string) Template {
	switch {
	case featurePattern.MatchString(taskDescription):
		return featureTemplate()
	case bugPattern.MatchString(taskDescription):
		return bugTemplate()
	default:
		return defaultTemplate()
	}
}

// TemplateFor applies an explicit category hint before reading the text. A
// category naming a feature or a bug wins over the wording; any other
// category falls through to SelectTemplate.
func TemplateFor(taskDescription string, hints map[string]string) Template {
	category := strings.TrimSpace(hints[entity.HintCategory])
	switch {
	case category == "":
	case featurePattern.MatchString(category):
		return featureTemplate()
	case bugPattern.MatchString(category):
		return bugTemplate()
	}
	return SelectTemplate(taskDescription)
}

func featureTemplate() Template {
	return Template{
		Name: TemplateFeature,
		Stages: []StageSpec{
			{Name: "Architecture Design", RoleID: entity.RoleArchitect},
			{Name: "Implementation", RoleID: entity.RoleDeveloper},
			{Name: "Testing", RoleID: entity.RoleQA},
			{Name: "Deployment", RoleID: entity.RoleDevOps},
		},
	}
}

func bugTemplate() Template {
	return Template{
		Name: TemplateBug,
		Stages: []StageSpec{
			{Name: "Bug Analysis", RoleID: entity.RoleDeveloper},
			{Name: "Fix Implementation", RoleID: entity.RoleDeveloper},
			{Name: "Testing", RoleID: entity.RoleQA},
			{Name: "Deployment", RoleID: entity.RoleDevOps},
		},
	}
}

func defaultTemplate() Template {
	return Template{
		Name: TemplateDefault,
		Stages: []StageSpec{
			{Name: "Analysis", RoleID: entity.RoleArchitect},
			{Name: "Execution", RoleID: entity.RoleDeveloper},
			{Name: "Validation", RoleID: entity.RoleQA},
		},
	}
}
