package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/recordarchiver/internal/config"
	"github.com/Lllllllleong/recordarchiver/internal/models"
	"github.com/Lllllllleong/recordarchiver/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	archiverInstance *services.ArchiverFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Cloud Scheduler publishes to a Pub/Sub topic that triggers this function.
	functions.CloudEvent("ArchiveAgedRecords", archiveAgedRecords)
}

// main is required by the Go Functions Framework.
func main() {}

// archiveAgedRecords is the Cloud Function entry point.
func archiveAgedRecords(ctx context.Context, e cloudevents.Event) error {
	// Configuration is read once per instance.
	once.Do(func() {
		var cfg *config.Config
		cfg, initErr = config.Load()
		if initErr != nil {
			return
		}
		archiverInstance, initErr = services.NewArchiverFunction(context.Background(), *cfg, nil)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	trigger, err := decodeTrigger(e)
	if err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "eventId", e.ID(), "data", string(e.Data()))
		return err
	}

	// The run logs its own outcome; returning the error marks the invocation as failed.
	_, err = archiverInstance.Process(ctx, trigger)
	return err
}

// decodeTrigger extracts the Pub/Sub message identity from the event. The
// message body itself carries no parameters.
func decodeTrigger(e cloudevents.Event) (models.RunTrigger, error) {
	trigger := models.RunTrigger{Source: "pubsub", MessageID: e.ID()}
	if len(e.Data()) == 0 {
		return trigger, nil
	}
	var msg models.PubSubMessage
	if err := json.Unmarshal(e.Data(), &msg); err != nil {
		return models.RunTrigger{}, fmt.Errorf("json.Unmarshal: %w", err)
	}
	if msg.Message.MessageID != "" {
		trigger.MessageID = msg.Message.MessageID
	}
	return trigger, nil
}
