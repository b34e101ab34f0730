package selector

import (
	"context"
	"regexp"

	"github.com/garyjia/agent-orchestrator/internal/application/port"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

// Category is one keyword set mapped to a role
type Category struct {
	RoleID   string
	Keywords *regexp.Regexp
}

// DefaultCategories are checked in this order; the first match wins.
var DefaultCategories = []Category{
	{
		RoleID:   entity.RoleArchitect,
		Keywords: regexp.MustCompile(`(?i)\b(design\w*|architect\w*|blueprint|schema|diagram)\b`),
	},
	{
		RoleID:   entity.RoleDevOps,
		Keywords: regexp.MustCompile(`(?i)\b(deploy\w*|infra\w*|kubernetes|k8s|terraform|docker|helm|provision\w*|rollout|ci/cd|pipeline)\b`),
	},
	{
		RoleID:   entity.RoleQA,
		Keywords: regexp.MustCompile(`(?i)\b(test\w*|quality|qa|regression|verif\w*|validat\w*)\b`),
	},
	{
		RoleID:   entity.RoleDeveloper,
		Keywords: regexp.MustCompile(`(?i)\b(code|coding|implement\w*|develop\w*|refactor\w*|program\w*|function|endpoint|api)\b`),
	},
}

// KeywordClassifier matches ordered keyword categories against task text
type KeywordClassifier struct {
	categories []Category
}

// NewKeywordClassifier uses DefaultCategories when none are given
func NewKeywordClassifier(categories ...Category) *KeywordClassifier {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &KeywordClassifier{categories: categories}
}

// Name implements port.Classifier
func (k *KeywordClassifier) Name() string {
	return "keyword"
}

// Classify implements port.Classifier. It never returns an error.
func (k *KeywordClassifier) Classify(_ context.Context, text string) (port.Classification, bool, error) {
	for _, c := range k.categories {
		if c.Keywords.MatchString(text) {
			return port.Classification{RoleID: c.RoleID, Confidence: 1, Source: k.Name()}, true, nil
		}
	}
	return port.Classification{}, false, nil
}

var _ port.Classifier = (*KeywordClassifier)(nil)
