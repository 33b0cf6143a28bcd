package rawload

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-medinsights/internal/adapters/staging"
	"tg-medinsights/internal/domain"
	"tg-medinsights/internal/infra/metrics"
)

// Service loads the staged message tree into the raw store. The tree is
// exactly two levels deep: date directories holding channel directories
// holding message documents.
type Service struct {
	store domain.RawStore
	log   zerolog.Logger
}

// NewService creates the raw-load stage service.
func NewService(store domain.RawStore, log zerolog.Logger) *Service {
	return &Service{store: store, log: log}
}

// Load walks the staging tree under messagesBase and inserts every document
// that is not already present for its (message id, channel, date) tuple.
// One transaction covers one date directory, so a failure mid-date never
// loses earlier dates. Returns the count of newly inserted documents.
func (s *Service) Load(ctx context.Context, messagesBase string) (int, error) {
	dateEntries, err := os.ReadDir(messagesBase)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn().Str("dir", messagesBase).Msg("rawload: staging root does not exist, nothing to load")
			return 0, nil
		}
		return 0, fmt.Errorf("read staging root: %w", err)
	}

	names := make([]string, 0, len(dateEntries))
	for _, entry := range dateEntries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		scrapeDate, err := time.Parse(staging.DateLayout, name)
		if err != nil {
			s.log.Warn().Str("dir", name).Msg("rawload: skipping malformed date directory")
			continue
		}

		docs := s.collectDateDocuments(filepath.Join(messagesBase, name))
		if len(docs) == 0 {
			continue
		}

		start := time.Now()
		inserted, err := s.store.InsertDateBatch(ctx, scrapeDate, docs)
		metrics.ObserveNetworkRequest("postgres", "raw_insert_batch", start, err)
		if err != nil {
			// The in-progress date rolled back; earlier dates are
			// already committed.
			return total, fmt.Errorf("load date %s: %w", name, err)
		}
		skipped := len(docs) - inserted
		metrics.RawRowsInserted.Add(float64(inserted))
		metrics.RawRowsSkipped.Add(float64(skipped))
		s.log.Info().Str("date", name).Int("inserted", inserted).Int("skipped", skipped).Msg("rawload: date committed")
		total += inserted
	}
	return total, nil
}

// collectDateDocuments gathers the parseable documents of one date
// directory. Per-document problems are logged and skipped; they never fail
// the batch.
func (s *Service) collectDateDocuments(datePath string) []domain.RawDocument {
	channelEntries, err := os.ReadDir(datePath)
	if err != nil {
		s.log.Warn().Err(err).Str("dir", datePath).Msg("rawload: cannot read date directory")
		return nil
	}

	var docs []domain.RawDocument
	for _, channelEntry := range channelEntries {
		if !channelEntry.IsDir() {
			continue
		}
		channelName := channelEntry.Name()
		channelPath := filepath.Join(datePath, channelName)
		files, err := os.ReadDir(channelPath)
		if err != nil {
			s.log.Warn().Err(err).Str("dir", channelPath).Msg("rawload: cannot read channel directory")
			continue
		}

		found := 0
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			doc, err := readDocument(filepath.Join(channelPath, file.Name()), channelName)
			if err != nil {
				s.log.Warn().Err(err).Str("file", file.Name()).Str("channel", channelName).Msg("rawload: skipping document")
				continue
			}
			docs = append(docs, doc)
			found++
		}
		if found == 0 {
			s.log.Warn().Str("dir", channelPath).Msg("rawload: no message documents in channel directory")
		}
	}
	return docs
}

func readDocument(path, channelName string) (domain.RawDocument, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("read: %w", err)
	}
	var probe struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return domain.RawDocument{}, fmt.Errorf("parse: %w", err)
	}
	if probe.ID == nil {
		return domain.RawDocument{}, fmt.Errorf("document has no id")
	}
	return domain.RawDocument{
		MessageID:   *probe.ID,
		ChannelName: channelName,
		Payload:     payload,
	}, nil
}
