package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgnsrekt/odax_crawler/internal/assemble"
)

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	if endpoint == "" {
		return errors.New("ntfy endpoint is empty")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}

// Notifier posts a short summary of every exported cycle.
type Notifier struct {
	Client   *http.Client
	Endpoint string
}

// ExportMessage summarizes a cycle document.
func ExportMessage(doc assemble.Document) string {
	first, last := "-", "-"
	if n := len(doc.Expirations); n > 0 {
		first, last = doc.Expirations[0], doc.Expirations[n-1]
	}
	return fmt.Sprintf("ODAX cycle %s exported: %s, %d products (%s .. %s), %d bytes",
		doc.CycleID, doc.Name, doc.Products, first, last, len(doc.Body))
}

func (n Notifier) Export(ctx context.Context, doc assemble.Document) error {
	return Send(ctx, n.Client, n.Endpoint, ExportMessage(doc))
}
