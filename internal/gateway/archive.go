package gateway

import (
	"archive/zip"
	"io"

	"github.com/fsh-formation/templater/internal/docgen"
)

// writeArchive streams the reports into a zip archive, one entry per
// document, and returns the number of document bytes bundled.
func writeArchive(w io.Writer, reports []docgen.Report) (int, error) {
	archive := zip.NewWriter(w)
	total := 0
	for _, report := range reports {
		entry, err := archive.Create(report.FileName)
		if err != nil {
			return total, err
		}
		n, err := entry.Write(report.Buffer)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, archive.Close()
}
