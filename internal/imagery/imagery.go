// Package imagery fetches and decodes the raster image of a mother tile.
package imagery

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/jask/tileswipe/internal/tile"
)

// ErrImageLoad wraps every fetch or decode failure. Callers fall back to the
// placeholder frame.
var ErrImageLoad = errors.New("image load failed")

const (
	DefaultTimeout   = 15 * time.Second
	defaultUserAgent = "tileswipe/1.0"
	maxImageBytes    = 32 << 20
)

// Fetcher resolves a URL template with {z}, {x} and {y} placeholders. A
// template without an http(s) scheme is read from the local filesystem;
// a "file://" prefix is stripped.
type Fetcher struct {
	Template  string
	UserAgent string
	HTTP      *http.Client
	Log       *zap.Logger
}

func NewFetcher(template string, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		Template:  template,
		UserAgent: defaultUserAgent,
		HTTP: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Log: log,
	}
}

// URL substitutes id into the template.
func URL(template string, id tile.ID) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(id.Z),
		"{x}", strconv.Itoa(id.X),
		"{y}", strconv.Itoa(id.Y),
	).Replace(template)
}

// Fetch loads and decodes the image for id.
func (f *Fetcher) Fetch(ctx context.Context, id tile.ID) (image.Image, error) {
	if f.Template == "" {
		return nil, fmt.Errorf("%w: no tile url configured", ErrImageLoad)
	}
	src := URL(f.Template, id)
	var (
		img image.Image
		err error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		img, err = f.fetchHTTP(ctx, src)
	} else {
		img, err = readFile(strings.TrimPrefix(src, "file://"))
	}
	if err != nil {
		f.Log.Debug("tile image unavailable", zap.String("tile", id.Key()), zap.String("src", src), zap.Error(err))
		return nil, fmt.Errorf("%w: tile %s: %w", ErrImageLoad, id, err)
	}
	return img, nil
}

// Close releases idle connections held by the HTTP client.
func (f *Fetcher) Close() {
	if f.HTTP != nil {
		f.HTTP.CloseIdleConnections()
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.UserAgent)
	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	return decode(resp.Body)
}

func readFile(path string) (image.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return decode(fh)
}

func decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(io.LimitReader(r, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}
