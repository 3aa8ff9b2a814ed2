package classifier

import (
	"context"
	"log"
	"time"

	"github.com/mdobak/go-xerrors"

	"github.com/Anuj2862/EcoSort-AI/config"
	"github.com/Anuj2862/EcoSort-AI/utils"
)

// LoadAll probes every configured model server and returns the reachable
// ones in configured order. Unreachable servers are skipped, so the service
// degrades from dual to single model mode instead of failing.
func LoadAll(ctx context.Context, cfg config.Config) []Classifier {
	logger := utils.GetLogger()

	var loaded []Classifier
	for _, cc := range cfg.Classifiers() {
		client := NewServingClient(ServingOptions{
			Name:      cc.Name,
			URL:       cc.URL,
			Model:     cc.Model,
			Labels:    cc.Labels,
			ImageSize: cfg.ImageSize,
			Timeout:   cfg.ClassifierTimeout,
		})

		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.HealthCheck(probeCtx)
		cancel()
		if err != nil {
			logger.WarnContext(ctx, "classifier unavailable, skipping",
				"name", cc.Name,
				"url", cc.URL,
				"error", xerrors.New(err))
			continue
		}

		log.Printf("Loaded %s (%s) with %d labels", cc.Name, cc.Model, len(cc.Labels))
		loaded = append(loaded, client)
	}

	log.Printf("Classifier mode: %s (%d loaded)", Mode(len(loaded)), len(loaded))
	return loaded
}
