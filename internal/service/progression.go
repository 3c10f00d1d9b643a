package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	appErrors "github.com/unclebandit/directmail-scheduler/internal/errors"
	"github.com/unclebandit/directmail-scheduler/internal/logger"
	"github.com/unclebandit/directmail-scheduler/internal/model"
	"github.com/unclebandit/directmail-scheduler/internal/queue"
	"github.com/unclebandit/directmail-scheduler/internal/repository"
)

// TemplateResolver maps a stage's template id to a template file.
type TemplateResolver interface {
	Resolve(templateID string) (string, error)
}

// Renderer merges a template with leads into one document and returns its path.
type Renderer interface {
	Render(ctx context.Context, templatePath string, leads []model.Lead, outputDir, baseName string) (string, error)
}

// Converter turns a rendered document into a printable artifact and returns its path.
type Converter interface {
	Convert(ctx context.Context, docPath string) (string, error)
}

// Archiver stores a copy of a printed artifact.
type Archiver interface {
	Archive(ctx context.Context, campaignID int, path string) (string, error)
}

var errStageSkipped = errors.New("stage skipped")

// StageOutcome is what happened to each due stage in one cycle.
type StageOutcome struct {
	StageID  int    `json:"stage_id"`
	Status   string `json:"status"` // completed, skipped, failed
	Letters  int    `json:"letters,omitempty"`
	Artifact string `json:"artifact,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ProgressionService advances campaigns through their follow-up stages.
type ProgressionService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
	Ledger       *Ledger
	Templates    TemplateResolver
	Renderer     Renderer
	Converter    Converter
	Printer      queue.Dispatcher
	Archiver     Archiver // optional
	Log          *logger.Logger

	// ArtifactExists defaults to an os.Stat check.
	ArtifactExists func(path string) bool
}

// AdvanceCampaign executes every pending stage that is due as of now, in
// ascending delay order, then stamps the campaign's last run exactly once.
// A failing stage stays pending and does not stop later stages.
func (s *ProgressionService) AdvanceCampaign(ctx context.Context, c *model.Campaign, now time.Time) []StageOutcome {
	log := s.Log.WithCampaign(c.ID, c.Name)

	stages := make([]model.FollowUpStage, len(c.Stages))
	copy(stages, c.Stages)
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].DelayDays < stages[j].DelayDays
	})

	outcomes := []StageOutcome{}
	for _, stage := range stages {
		if !IsDue(c, stage, now) {
			continue
		}

		stageLog := log.WithStage(stage.ID, stage.DelayDays)
		outcome := s.runStage(ctx, stageLog, c, stage, now)
		outcomes = append(outcomes, outcome)

		if outcome.Status == "completed" {
			markRun(c, stage.ID)
		}
	}

	// The run is stamped regardless of stage outcomes and even if the cycle was cancelled.
	if err := s.CampaignRepo.UpdateLastRunningTime(context.WithoutCancel(ctx), c.ID, now); err != nil {
		log.DatabaseError("update last running time", err)
	} else {
		c.LastRunningTime = now
	}

	return outcomes
}

func (s *ProgressionService) runStage(ctx context.Context, log *logger.Logger, c *model.Campaign, stage model.FollowUpStage, now time.Time) (outcome StageOutcome) {
	outcome.StageID = stage.ID

	defer func() {
		if r := recover(); r != nil {
			log.Error("stage panicked", slog.Any("panic", r))
			outcome.Status = "failed"
			outcome.Error = fmt.Sprint(r)
		}
	}()

	letters, artifact, err := s.executeStage(ctx, log, c, stage, now)
	switch {
	case errors.Is(err, errStageSkipped):
		outcome.Status = "skipped"
		outcome.Error = err.Error()
	case err != nil:
		log.Error("stage failed, left pending",
			slog.String("kind", appErrors.KindOf(err).String()),
			slog.String("error", err.Error()))
		outcome.Status = "failed"
		outcome.Error = err.Error()
	default:
		log.Info("stage completed", slog.Int("letters", letters), slog.String("artifact", artifact))
		outcome.Status = "completed"
		outcome.Letters = letters
		outcome.Artifact = artifact
	}
	return outcome
}

func (s *ProgressionService) executeStage(ctx context.Context, log *logger.Logger, c *model.Campaign, stage model.FollowUpStage, now time.Time) (int, string, error) {
	leads, err := s.LeadRepo.ListEligible(ctx, c.ID)
	if err != nil {
		return 0, "", fmt.Errorf("list eligible leads: %w", err)
	}
	if len(leads) == 0 {
		log.Info("no eligible leads, stage skipped")
		return 0, "", fmt.Errorf("%w: no eligible leads", errStageSkipped)
	}

	templatePath, err := s.Templates.Resolve(stage.TemplateID)
	if err != nil || templatePath == "" {
		log.Warn("template not resolvable, stage skipped",
			slog.String("template_id", stage.TemplateID),
			slog.String("kind", appErrors.KindRender.String()),
			slog.Any("error", err))
		return 0, "", fmt.Errorf("%w: template %q not resolvable", errStageSkipped, stage.TemplateID)
	}

	baseName := fmt.Sprintf("%s_stage%d_%s", slugify(c.Name), stage.ID, now.Format("20060102"))
	doc, err := s.Renderer.Render(ctx, templatePath, leads, c.OutputDir, baseName)
	if err != nil {
		return 0, "", appErrors.Wrap(appErrors.KindRender, "render", err)
	}

	artifact, err := s.Converter.Convert(ctx, doc)
	if err != nil {
		return 0, "", appErrors.Wrap(appErrors.KindRender, "convert", err)
	}
	if !s.artifactExists(artifact) {
		return 0, "", appErrors.New(appErrors.KindRender, "convert", "printable artifact missing: "+artifact)
	}

	// Ledger rows and the stage flag are written even if the cycle is being cancelled.
	writeCtx := context.WithoutCancel(ctx)
	if err := s.Ledger.CompleteStage(writeCtx, c.ID, stage.ID, c.PrinterName, artifact, leads); err != nil {
		if errors.Is(err, appErrors.ErrStageAlreadyRun) {
			log.Info("stage completed by another cycle, skipped")
			markRun(c, stage.ID)
			return 0, "", fmt.Errorf("%w: %w", errStageSkipped, err)
		}
		return 0, "", fmt.Errorf("complete stage: %w", err)
	}

	// Only committed stages reach the printer.
	if s.Archiver != nil {
		if key, err := s.Archiver.Archive(writeCtx, c.ID, artifact); err != nil {
			log.Warn("artifact archive failed", slog.String("error", err.Error()))
		} else {
			log.Debug("artifact archived", slog.String("key", key))
		}
	}

	if s.Printer != nil {
		job := queue.NewPrintJob(c.ID, stage.ID, c.PrinterName, artifact, len(leads))
		if err := s.Printer.Dispatch(writeCtx, job); err != nil {
			log.Warn("print dispatch failed", slog.String("printer", c.PrinterName), slog.String("error", err.Error()))
		}
	}

	return len(leads), artifact, nil
}

func (s *ProgressionService) artifactExists(path string) bool {
	if s.ArtifactExists != nil {
		return s.ArtifactExists(path)
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

func markRun(c *model.Campaign, stageID int) {
	for i := range c.Stages {
		if c.Stages[i].ID == stageID {
			c.Stages[i].IsRun = true
		}
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "campaign"
	}
	return s
}
