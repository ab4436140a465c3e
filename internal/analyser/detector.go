package analyser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/cache/memory"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/llm"
)

const detectionSystemPrompt = "You are a Business Analysis expert. Your task is to classify a document " +
	"into exactly one artifact type. Return ONLY valid JSON."

const detectionPrompt = `<artifact>
%s
</artifact>

<instructions>
Classify this document into one of the following artifact types:

- requirements_document: what a system should do; functional and non-functional requirements, scope, stakeholders.
- business_process: a workflow with steps, decision points, roles or swim lanes.
- user_story: one or more "As a... I want... So that..." stories with acceptance criteria.
- use_case: actors, preconditions, main flow, alternative flows, postconditions.
- unknown: the document does not clearly fit any of the above.

If the document mixes types, classify it by its PRIMARY purpose.

Return ONLY valid JSON:
{
  "artifact_type": "<one of the types listed above>",
  "confidence": <0.0-1.0>,
  "rationale": "brief explanation of the classification",
  "secondary_types": ["any other types partially present"]
}
</instructions>`

type Detection struct {
	Type           domain.ArtifactType `json:"artifact_type"`
	Confidence     float64             `json:"confidence"`
	Rationale      string              `json:"rationale"`
	SecondaryTypes []string            `json:"secondary_types,omitempty"`
}

type CacheRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

type DetectorDeps struct {
	LLM     llm.Client
	Cache   *memory.Cache[Detection]
	TTL     time.Duration
	Logger  *zap.Logger
	Metrics CacheRecorder
}

// Detector классифицирует артефакт; результат кешируется по sha256 текста
type Detector struct {
	llm     llm.Client
	cache   *memory.Cache[Detection]
	ttl     time.Duration
	logger  *zap.Logger
	metrics CacheRecorder
}

func NewDetector(deps DetectorDeps) *Detector {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.TTL <= 0 {
		deps.TTL = time.Hour
	}
	return &Detector{
		llm:     deps.LLM,
		cache:   deps.Cache,
		ttl:     deps.TTL,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

func (d *Detector) Detect(ctx context.Context, text string) (Detection, error) {
	if err := domain.ValidateArtifact(text); err != nil {
		return Detection{}, err
	}

	key := cacheKey(text)
	if d.cache != nil {
		if cached, ok := d.cache.Get(key); ok {
			d.recordCache(true)
			return cached, nil
		}
		d.recordCache(false)
	}

	var raw struct {
		ArtifactType   string   `json:"artifact_type"`
		Confidence     number   `json:"confidence"`
		Rationale      string   `json:"rationale"`
		SecondaryTypes []string `json:"secondary_types"`
	}
	req := llm.NewRequest(detectionSystemPrompt, fmt.Sprintf(detectionPrompt, text)).
		WithTemperature(0).
		WithMaxTokens(256)
	if err := llm.InvokeJSON(ctx, d.llm, req, &raw); err != nil {
		return Detection{}, fmt.Errorf("detect artifact type: %w", err)
	}

	t := domain.ArtifactType(strings.ToLower(strings.TrimSpace(raw.ArtifactType)))
	if !t.IsValid() {
		d.logger.Warn("unknown artifact type from model", zap.String("raw", raw.ArtifactType))
		t = domain.ArtifactUnknown
	}

	conf := raw.Confidence.value
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	det := Detection{
		Type:           t,
		Confidence:     conf,
		Rationale:      raw.Rationale,
		SecondaryTypes: raw.SecondaryTypes,
	}

	d.logger.Info("detected artifact type",
		zap.String("artifact_type", string(det.Type)),
		zap.Float64("confidence", det.Confidence),
	)

	if d.cache != nil {
		d.cache.Set(key, det, d.ttl)
	}
	return det, nil
}

// Resolve - явный тип, если задан, иначе детекция
func (d *Detector) Resolve(ctx context.Context, text string, requested domain.ArtifactType) (domain.ArtifactType, *Detection, error) {
	if requested != "" && requested != domain.ArtifactUnknown {
		return requested, nil, nil
	}
	det, err := d.Detect(ctx, text)
	if err != nil {
		return "", nil, err
	}
	return det.Type, &det, nil
}

func (d *Detector) recordCache(hit bool) {
	if d.metrics == nil {
		return
	}
	if hit {
		d.metrics.RecordCacheHit()
	} else {
		d.metrics.RecordCacheMiss()
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
