package metadata

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/jobrunner/s2tile/internal/domain"
)

// Parser reads metadata documents from a filesystem.
type Parser struct {
	fs afero.Fs
}

// NewParser creates a parser reading from fs.
func NewParser(fs afero.Fs) *Parser {
	return &Parser{fs: fs}
}

// Parse opens and decodes the document at path.
func (p *Parser) Parse(_ context.Context, path string) (*domain.MetadataDocument, error) {
	f, err := p.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata %s: %w", path, err)
	}
	defer f.Close()

	return domain.DecodeDocument(path, f)
}
