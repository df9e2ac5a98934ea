package catalog

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// maxDocument bounds how much of a response body is read.
const maxDocument = 1 << 20

// HTTPSource fetches the catalog from a web server laid out like a songs
// directory: <base>/index.json and <base>/<notationPath>.
type HTTPSource struct {
	baseURL string
	http    *http.Client
}

// NewHTTPSource creates an HTTP catalog source.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HTTPSource) ReadIndex(ctx context.Context) ([]byte, error) {
	return h.get(ctx, "index.json")
}

func (h *HTTPSource) ReadNotation(ctx context.Context, p string) (string, error) {
	data, err := h.get(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (h *HTTPSource) get(ctx context.Context, p string) ([]byte, error) {
	ref, err := url.Parse(strings.TrimPrefix(p, "/"))
	if err != nil || ref.IsAbs() || ref.Host != "" {
		return nil, errors.Errorf("invalid path %q", p)
	}
	u := h.baseURL + "/" + ref.EscapedPath()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", u)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrNotFound, "fetch %s: status %d", u, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocument))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", u)
	}
	return data, nil
}
