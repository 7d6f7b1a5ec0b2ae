// Package gcs loads transaction exports from Cloud Storage or local files.
package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/finance-insights/internal/domain"
)

const dateFormat = "2006-01-02"

// Record is one exported transaction. UserID may be empty when the export
// holds a single user's history.
type Record struct {
	UserID      string  `json:"userId"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

// ToDomain parses the record's date, accepting RFC 3339 timestamps or
// plain YYYY-MM-DD dates.
func (r Record) ToDomain() (domain.Transaction, error) {
	date, err := time.Parse(time.RFC3339, r.Date)
	if err != nil {
		date, err = time.Parse(dateFormat, r.Date)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("invalid date %q", r.Date)
		}
	}
	return domain.Transaction{
		Date:        date,
		Amount:      r.Amount,
		Category:    r.Category,
		Description: r.Description,
	}, nil
}

// ParseURI splits gs://bucket/object into its parts.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Loader reads JSON exports from gs:// URIs or local paths. The storage
// client is created on first use.
type Loader struct {
	mu     sync.Mutex
	client *storage.Client
}

func NewLoader() *Loader {
	return &Loader{}
}

// Close releases the storage client, if one was created.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

func (l *Loader) storageClient(ctx context.Context) (*storage.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		l.client = client
	}
	return l.client, nil
}

// Fetch returns the raw bytes at uri.
func (l *Loader) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "gs://") {
		data, err := os.ReadFile(uri)
		if err != nil {
			return nil, fmt.Errorf("Fetch: reading %s: %w", uri, err)
		}
		return data, nil
	}

	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	client, err := l.storageClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Load reads a JSON array of records from uri.
func (l *Loader) Load(ctx context.Context, uri string) ([]Record, error) {
	data, err := l.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses a JSON array of records and validates their dates.
func Decode(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("Decode: unmarshal JSON: %w", err)
	}
	for i, r := range records {
		if _, err := r.ToDomain(); err != nil {
			return nil, fmt.Errorf("Decode: record %d: %w", i, err)
		}
	}
	return records, nil
}

// GroupByUser converts records to transactions keyed by user. Records with
// no user are assigned to defaultUser.
func GroupByUser(records []Record, defaultUser string) map[string][]domain.Transaction {
	out := make(map[string][]domain.Transaction)
	for _, r := range records {
		t, err := r.ToDomain()
		if err != nil {
			continue
		}
		user := r.UserID
		if user == "" {
			user = defaultUser
		}
		out[user] = append(out[user], t)
	}
	return out
}
