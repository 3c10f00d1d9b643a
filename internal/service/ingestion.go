package service

import (
	"context"
	"log/slog"

	"github.com/unclebandit/directmail-scheduler/internal/config"
	appErrors "github.com/unclebandit/directmail-scheduler/internal/errors"
	"github.com/unclebandit/directmail-scheduler/internal/logger"
	"github.com/unclebandit/directmail-scheduler/internal/model"
	"github.com/unclebandit/directmail-scheduler/internal/repository"
	"github.com/unclebandit/directmail-scheduler/internal/source"
)

// IngestionService pulls pages from a record source and merges them into the
// lead store without creating duplicates.
type IngestionService struct {
	Source   source.RecordSource
	LeadRepo repository.LeadRepositoryInterface
	Mapper   source.Mapper
	Config   config.SourceConfig
	Log      *logger.Logger
}

// NewIngestionService picks the local feed when one is configured, the
// network client when an API key is present, and no source otherwise.
func NewIngestionService(cfg config.SourceConfig, leads repository.LeadRepositoryInterface, log *logger.Logger) *IngestionService {
	var src source.RecordSource
	switch {
	case cfg.LocalFeedPath != "":
		src = source.NewCSVFeed(cfg.LocalFeedPath)
	case cfg.APIKey != "":
		src = source.NewRadarClient(cfg)
	}

	return &IngestionService{
		Source:   src,
		LeadRepo: leads,
		Mapper:   source.Mapper{PhoneRegion: cfg.PhoneRegion},
		Config:   cfg,
		Log:      log,
	}
}

// IngestCampaign fetches every page for the campaign's filter and returns the
// number of records fetched on committed pages. It never returns an error:
// failures are logged and whatever was committed before them stays.
func (s *IngestionService) IngestCampaign(ctx context.Context, c *model.Campaign) int {
	log := s.Log.WithCampaign(c.ID, c.Name)

	if s.Source == nil || !s.Config.Configured() {
		log.Warn("ingestion skipped", slog.String("kind", appErrors.KindConfigMissing.String()),
			slog.String("reason", "no record source configured"))
		return 0
	}

	fetched := 0
	for start, page := 0, 1; ; start, page = start+source.BatchSize, page+1 {
		if ctx.Err() != nil {
			log.Info("ingestion stopped before next page", slog.Int("page", page), slog.Int("fetched", fetched))
			return fetched
		}

		n, more := s.ingestPage(ctx, log, c, start, page)
		fetched += n
		if !more {
			break
		}
	}

	log.Info("ingestion finished", slog.Int("fetched", fetched))
	return fetched
}

// ingestPage fetches and commits one page. more is false once pagination must stop.
func (s *IngestionService) ingestPage(ctx context.Context, log *logger.Logger, c *model.Campaign, start, pageNo int) (n int, more bool) {
	p, err := s.Source.FetchPage(ctx, c.LeadSource.FiltersJSON, start, source.BatchSize)
	if err != nil {
		log.Error("fetch failed, aborting ingestion",
			slog.Int("page", pageNo),
			slog.String("kind", appErrors.KindOf(err).String()),
			slog.String("error", err.Error()))
		return 0, false
	}
	if !p.Success {
		log.Error("source returned non-success status, aborting ingestion",
			slog.Int("page", pageNo),
			slog.String("kind", appErrors.KindSourceUnavailable.String()),
			slog.Int("status", p.StatusCode))
		return 0, false
	}
	if len(p.Records) == 0 {
		log.Info("no more data", slog.Int("page", pageNo), slog.String("kind", appErrors.KindNoData.String()))
		return 0, false
	}

	leads := dedupeByKey(s.Mapper.ToLeads(p.Records))
	for i := range leads {
		leads[i].CampaignID = c.ID
	}

	keys := make([]string, 0, len(leads))
	for i := range leads {
		keys = append(keys, leads[i].NaturalKey())
	}

	existing, err := s.LeadRepo.ExistingKeys(ctx, keys)
	if err != nil {
		log.DatabaseError("lookup existing leads", err)
		return 0, false
	}

	updates := make([]model.Lead, 0, len(existing))
	inserts := make([]model.Lead, 0, len(leads)-len(existing))
	for _, l := range leads {
		if id, ok := existing[l.NaturalKey()]; ok {
			l.ID = id
			updates = append(updates, l)
			continue
		}
		inserts = append(inserts, l)
	}

	// A started commit finishes even if the cycle is cancelled meanwhile.
	result, err := s.LeadRepo.SaveBatch(context.WithoutCancel(ctx), updates, inserts)
	if err != nil {
		log.DatabaseError("save lead batch", err)
		return 0, false
	}

	log.Info("page committed",
		slog.Int("page", pageNo),
		slog.Int("records", len(p.Records)),
		slog.Int("updated", result.Updated),
		slog.Int("inserted", result.Inserted),
		slog.Int("skipped", result.Skipped))

	return len(p.Records), len(p.Records) >= source.BatchSize
}

// dedupeByKey keeps the last record for each natural key within a page.
func dedupeByKey(leads []model.Lead) []model.Lead {
	index := make(map[string]int, len(leads))
	out := make([]model.Lead, 0, len(leads))
	for _, l := range leads {
		key := l.NaturalKey()
		if i, ok := index[key]; ok {
			out[i] = l
			continue
		}
		index[key] = len(out)
		out = append(out, l)
	}
	return out
}
