package port

import (
	"io"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

// AssessmentExporter renders assessments into a downloadable report
type AssessmentExporter interface {
	Export(assessments []*entity.Assessment, w io.Writer) error
	ContentType() string
	FileExtension() string
}

// DocumentExtractor pulls plain text out of an uploaded document
type DocumentExtractor interface {
	ExtractText(data []byte) (string, error)
}
