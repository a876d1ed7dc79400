// Package metadata provides the metadata document adapters: dialect
// detection, XML parsing and the document cache.
package metadata

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/jobrunner/s2tile/internal/domain"
)

// headerLines is the number of lines inspected for a namespace URI.
const headerLines = 2

// NamespaceResolver detects the schema dialect from the document header.
type NamespaceResolver struct {
	fs afero.Fs
}

// NewNamespaceResolver creates a resolver reading from fs.
func NewNamespaceResolver(fs afero.Fs) *NamespaceResolver {
	return &NamespaceResolver{fs: fs}
}

// Resolve returns the dialect declared in the first lines of path.
// A later line overrides an earlier one; within a line psd-14 wins.
func (r *NamespaceResolver) Resolve(_ context.Context, path string) (domain.Dialect, error) {
	f, err := r.fs.Open(path)
	if err != nil {
		return domain.DialectUnknown, fmt.Errorf("opening metadata %s: %w", path, err)
	}
	defer f.Close()

	dialect := domain.DialectUnknown
	br := bufio.NewReader(f)
	for i := 0; i < headerLines; i++ {
		line, err := br.ReadString('\n')
		if strings.Contains(line, domain.NamespacePSD12) {
			dialect = domain.DialectPSD12
		}
		if strings.Contains(line, domain.NamespacePSD14) {
			dialect = domain.DialectPSD14
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.DialectUnknown, fmt.Errorf("reading metadata header %s: %w", path, err)
		}
	}

	if !dialect.Known() {
		return domain.DialectUnknown, fmt.Errorf("%s: %w", path, domain.ErrSchemaUnrecognized)
	}
	return dialect, nil
}
