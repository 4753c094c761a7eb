package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
	pkgkafka "EconCast/pkg/kafka"
	"EconCast/pkg/util"
)

// KafkaObservationsHandler consumes the observations topic and writes to storage.
type KafkaObservationsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
	warmup  *ModelWarmup
}

func NewKafkaObservationsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics, warmup *ModelWarmup) *KafkaObservationsHandler {
	return &KafkaObservationsHandler{topic: topic, storage: storage, metrics: metrics, warmup: warmup}
}

func (h *KafkaObservationsHandler) Topic() string { return h.topic }

// incoming message schema: {indicator, data, valor}
func (h *KafkaObservationsHandler) Handle(ctx context.Context, b []byte) error {
	var m models.ObservationMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	ind := models.NormalizeIndicator(m.Indicator)
	if !ind.IsValid() {
		h.metrics.RecordError("consumer_validate")
		return fmt.Errorf("unknown indicator %q", m.Indicator)
	}
	date, ok := util.ParseDate(m.Date)
	if !ok {
		h.metrics.RecordError("consumer_validate")
		return fmt.Errorf("invalid date %q", m.Date)
	}

	start := time.Now()
	err := h.storage.StoreBatch(ctx, []models.Observation{{Indicator: ind, Date: date, Value: m.Value}})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent(BackendClickHouse, string(ind))

	// pending-key coalescing keeps this at one job per burst
	_ = h.warmup.Schedule(ctx, ind)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaObservationsHandler)(nil)
