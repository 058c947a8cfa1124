// Package report turns an open-report directive into a concrete action:
// download the PDF through the authenticated client, drop it in a temp file,
// and hand it to the platform viewer.
package report

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/tristanpfefferle/IA-financial-assistant/internal/logger"
)

// Fetcher downloads a document by URL. Implemented by the API client.
type Fetcher interface {
	FetchDocument(ctx context.Context, url string) ([]byte, error)
}

// Opener downloads and opens PDF reports.
type Opener struct {
	fetcher Fetcher

	// view launches the platform viewer for a file. Overridable in tests.
	view func(path string) error
}

func NewOpener(fetcher Fetcher) *Opener {
	return &Opener{fetcher: fetcher, view: viewFile}
}

// OpenReport fetches the report and opens it in the platform PDF viewer. The
// temp file is left in place; the viewer may load it lazily.
func (o *Opener) OpenReport(ctx context.Context, url string) error {
	blob, err := o.fetcher.FetchDocument(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}

	f, err := os.CreateTemp("", "rapport-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	if _, err := f.Write(blob); err != nil {
		f.Close()
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}

	logger.Infof("report: opening %s (%d bytes)", f.Name(), len(blob))
	if err := o.view(f.Name()); err != nil {
		return fmt.Errorf("open report viewer: %w", err)
	}
	return nil
}

// viewFile hands the file to the platform default handler.
func viewFile(path string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", path).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path).Start()
	default:
		return exec.Command("xdg-open", path).Start()
	}
}
