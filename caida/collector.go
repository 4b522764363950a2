package caida

import (
	"bufio"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/encodeous/bgpr/state"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/net/html"
)

const CollectorName = "CaidaCollector"

var ErrNoDataset = errors.New("no dataset found for the requested date")

// Collector downloads the CAIDA serial-2 dataset for one month and keeps a decompressed copy in CacheDir.
type Collector struct {
	BaseUrl      string
	DownloadTime time.Time
	CacheDir     string
	Client       *http.Client
	Log          *slog.Logger

	index *ttlcache.Cache[string, []string]
}

// DefaultCacheDir is a per-day directory under the user cache dir.
func DefaultCacheDir(now time.Time) (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, state.CacheDirName, now.UTC().Format("2006_01_02")), nil
}

func NewCollector(cfg state.TopologyCfg, log *slog.Logger) (*Collector, error) {
	now := time.Now()
	dlTime, err := cfg.DownloadTime(now)
	if err != nil {
		return nil, fmt.Errorf("invalid topology date %q: %w", cfg.Date, err)
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir, err = DefaultCacheDir(now)
		if err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Collector{
		BaseUrl:      state.CaidaSerial2Url,
		DownloadTime: dlTime,
		CacheDir:     cacheDir,
		Client:       &http.Client{Timeout: state.HttpTimeout},
		Log:          log,
		index: ttlcache.New[string, []string](
			ttlcache.WithTTL[string, []string](state.CaidaIndexTTL),
			ttlcache.WithDisableTouchOnHit[string, []string](),
		),
	}, nil
}

func (c *Collector) CachePath() string {
	return filepath.Join(c.CacheDir, fmt.Sprintf("%s_%s.txt", CollectorName, c.DownloadTime.Format("2006.01.02")))
}

// Run returns the path of the cached dataset, downloading it first if it is not cached.
// A failed download never leaves a cache file behind.
func (c *Collector) Run(ctx context.Context) (string, error) {
	cachePath := c.CachePath()
	if _, err := os.Stat(cachePath); err == nil {
		if state.DBG_log_repo_updates {
			c.Log.Debug("using cached dataset", "path", cachePath)
		}
		return cachePath, nil
	}

	c.Log.Info("no cached CAIDA graph, downloading", "date", c.DownloadTime.Format(time.DateOnly), "cache", cachePath)
	err := c.fetch(ctx, cachePath)
	if err != nil {
		c.Log.Error("failed to cache dataset, removing cache file", "path", cachePath, "error", err)
		_ = os.Remove(cachePath)
		return "", err
	}
	return cachePath, nil
}

// Load runs the collector and parses the cached dataset.
func (c *Collector) Load(ctx context.Context) (*state.TopologyInput, error) {
	path, err := c.Run(ctx)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSerial(f)
}

func (c *Collector) fetch(ctx context.Context, cachePath string) error {
	err := os.MkdirAll(c.CacheDir, 0700)
	if err != nil {
		return err
	}
	url, err := c.DatasetUrl(ctx)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "bgpr-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	bz2Path := filepath.Join(tmpDir, "download.bz2")
	err = c.download(ctx, url, bz2Path)
	if err != nil {
		return err
	}
	return decompressTo(bz2Path, cachePath)
}

// DatasetUrl finds the dataset for the first day of DownloadTime's month in the index.
func (c *Collector) DatasetUrl(ctx context.Context) (string, error) {
	hrefs, err := c.hrefs(ctx, c.BaseUrl)
	if err != nil {
		return "", err
	}
	target := c.DownloadTime.Format("200601") + "01"
	for _, href := range hrefs {
		if strings.Contains(href, target) {
			return c.BaseUrl + href, nil
		}
	}
	return "", fmt.Errorf("%w: %s at %s", ErrNoDataset, target, c.BaseUrl)
}

func (c *Collector) hrefs(ctx context.Context, url string) ([]string, error) {
	if item := c.index.Get(url); item != nil {
		return item.Value(), nil
	}

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index %s: %w", url, err)
	}
	hrefs := make([]string, 0)
	collectHrefs(doc, &hrefs)
	if state.DBG_log_repo_updates {
		c.Log.Debug("fetched dataset index", "url", url, "links", len(hrefs))
	}
	c.index.Set(url, hrefs, ttlcache.DefaultTTL)
	return hrefs, nil
}

func collectHrefs(n *html.Node, out *[]string) {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key == "href" {
				*out = append(*out, attr.Val)
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectHrefs(child, out)
	}
}

func (c *Collector) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: %s", url, res.Status)
	}
	return res.Body, nil
}

func (c *Collector) download(ctx context.Context, url, dst string) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, body)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	if state.DBG_log_repo_updates {
		c.Log.Debug("downloaded dataset", "url", url, "bytes", n)
	}
	return f.Close()
}

// decompressTo writes every line of the bzip2 file at src to dst with surrounding whitespace removed.
func decompressTo(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(bzip2.NewReader(in))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		_, err = w.WriteString(strings.TrimSpace(scanner.Text()) + "\n")
		if err != nil {
			out.Close()
			return err
		}
	}
	if err = scanner.Err(); err != nil {
		out.Close()
		return fmt.Errorf("failed to decompress %s: %w", src, err)
	}
	if err = w.Flush(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
