package gtfs

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"github.com/transitmatters/gobble/foundation/httpclient"
	"github.com/transitmatters/gobble/foundation/servicedate"
)

func init() {
	// Archive publishers are sloppy about quoting and unicode BOMs, so
	// every csv read in this package goes through a lazy reader.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})
}

// archiveFeed is one row of the archived feeds registry.
type archiveFeed struct {
	FeedStartDate int    `csv:"feed_start_date"`
	FeedEndDate   int    `csv:"feed_end_date"`
	ArchiveURL    string `csv:"archive_url"`
}

// covers reports whether the feed's validity window includes dateInt.
func (f archiveFeed) covers(dateInt int) bool {
	return f.FeedStartDate <= dateInt && dateInt <= f.FeedEndDate
}

// archiveName derives the local directory name from the archive url.
func (f archiveFeed) archiveName() string {
	return strings.TrimSuffix(path.Base(f.ArchiveURL), ".zip")
}

// Registry resolves service dates to locally extracted GTFS archives, keeping
// a cached copy of the published registry file and every downloaded feed
// under cacheRoot.
type Registry struct {
	log                 *log.Logger
	registryURL         string
	cacheRoot           string
	refreshIntervalDays int
}

// NewRegistry builds a Registry over cacheRoot, typically data/gtfs_archives.
func NewRegistry(log *log.Logger, registryURL string, cacheRoot string, refreshIntervalDays int) *Registry {
	return &Registry{
		log:                 log,
		registryURL:         registryURL,
		cacheRoot:           cacheRoot,
		refreshIntervalDays: refreshIntervalDays,
	}
}

func (r *Registry) registryPath() string {
	return filepath.Join(r.cacheRoot, "archived_feeds.txt")
}

// EnsureArchive returns the local directory holding the extracted GTFS feed
// covering date, downloading the registry and the archive zip as needed. When
// the registry cannot be retrieved or stored, the lexically newest archive
// already on disk is used instead. Only a completely empty cache is fatal.
func (r *Registry) EnsureArchive(date servicedate.Date) (string, error) {
	if err := os.MkdirAll(r.cacheRoot, 0755); err != nil {
		return r.fallback(fmt.Errorf("creating archive cache %s: %w", r.cacheRoot, err))
	}

	feed, err := r.feedFor(date)
	if err != nil {
		return r.fallback(err)
	}

	dir := filepath.Join(r.cacheRoot, feed.archiveName())
	if _, err := os.Stat(filepath.Join(dir, "stop_times.txt")); err == nil {
		return dir, nil
	}

	r.log.Printf("downloading gtfs archive %s for %s", feed.ArchiveURL, date)
	contents, err := fetchWithRetry(feed.ArchiveURL)
	if err != nil {
		return r.fallback(fmt.Errorf("downloading archive %s: %w", feed.ArchiveURL, err))
	}
	if err := unpackArchive(contents, dir); err != nil {
		return r.fallback(fmt.Errorf("unpacking archive %s: %w", feed.ArchiveURL, err))
	}
	return dir, nil
}

// feedFor loads the registry and picks the first feed covering date. A stale
// match, one whose start predates the refresh interval, triggers one registry
// re-download in case a newer feed now covers the date.
func (r *Registry) feedFor(date servicedate.Date) (*archiveFeed, error) {
	dateInt := date.DateInt()

	feeds, err := r.loadFeeds(false)
	if err != nil {
		return nil, err
	}
	matched := firstCovering(feeds, dateInt)

	stale := matched != nil && matched.FeedStartDate < date.AddDays(-r.refreshIntervalDays).DateInt()
	if matched == nil || stale {
		fresh, err := r.loadFeeds(true)
		if err == nil {
			if refreshed := firstCovering(fresh, dateInt); refreshed != nil {
				matched = refreshed
			}
		} else if matched == nil {
			return nil, err
		}
	}

	if matched == nil {
		return nil, fmt.Errorf("no feed in registry covers %s", date)
	}
	return matched, nil
}

// loadFeeds parses the cached registry file, downloading it first when forced
// or absent.
func (r *Registry) loadFeeds(forceDownload bool) ([]archiveFeed, error) {
	cached := r.registryPath()
	if _, err := os.Stat(cached); forceDownload || err != nil {
		if _, err := httpclient.DownloadRemoteFile(cached, r.registryURL); err != nil {
			return nil, fmt.Errorf("downloading feed registry %s: %w", r.registryURL, err)
		}
	}

	file, err := os.Open(cached)
	if err != nil {
		return nil, fmt.Errorf("opening feed registry: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var feeds []archiveFeed
	if err := gocsv.Unmarshal(file, &feeds); err != nil {
		return nil, fmt.Errorf("parsing feed registry: %w", err)
	}
	return feeds, nil
}

// fallback scans the cache for the lexically newest extracted archive.
// Archive names embed dateints so lexical order is chronological order.
func (r *Registry) fallback(cause error) (string, error) {
	r.log.Printf("feed registry unavailable, falling back to local archives: %v", cause)

	entries, err := os.ReadDir(r.cacheRoot)
	if err != nil {
		return "", fmt.Errorf("no local gtfs archives available: %w", cause)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.cacheRoot, entry.Name(), "stop_times.txt")); err == nil {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no local gtfs archives available: %w", cause)
	}
	sort.Strings(names)
	newest := names[len(names)-1]
	r.log.Printf("using local gtfs archive %s", newest)
	return filepath.Join(r.cacheRoot, newest), nil
}

// fetchWithRetry downloads url, retrying transient failures a few times.
// Archive zips are tens of megabytes and CDN hiccups are routine.
func fetchWithRetry(url string) ([]byte, error) {
	var contents []byte
	operation := func() error {
		var err error
		contents, err = httpclient.FetchBytes(nil, url)
		return err
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return contents, nil
}

func firstCovering(feeds []archiveFeed, dateInt int) *archiveFeed {
	for i := range feeds {
		if feeds[i].covers(dateInt) {
			return &feeds[i]
		}
	}
	return nil
}

// unpackArchive extracts a GTFS zip into dir, flattening any leading
// directory component some publishers include.
func unpackArchive(contents []byte, dir string) error {
	reader, err := zip.NewReader(bytes.NewReader(contents), int64(len(contents)))
	if err != nil {
		return fmt.Errorf("reading zip: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		parts := strings.Split(file.Name, "/")
		name := parts[len(parts)-1]
		if !strings.HasSuffix(name, ".txt") {
			continue
		}
		if err := extractZipFile(file, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("extracting %s: %w", file.Name, err)
		}
	}
	return nil
}

func extractZipFile(file *zip.File, destination string) error {
	in, err := file.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()
	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()
	_, err = io.Copy(out, in)
	return err
}
