package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/gridtrader/gridtrader/pkg/log"
	"github.com/gridtrader/gridtrader/pkg/types"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Weight snapshots and telemetry samples live in sub-collections
// under each agent document.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(agentID, name string) (*firestore.CollectionRef, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agentID cannot be empty")
	}
	return f.client.Collection("agents").Doc(agentID).Collection(name), nil
}

// SaveWeights stores a price-table snapshot in the "weights" collection.
// The document ID is the zero-padded generation so range and latest queries
// stay lexicographic.
func (f *FirestoreProvider) SaveWeights(ctx context.Context, agentID string, snap types.WeightsSnapshot) error {
	jsonBytes, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}

	coll, err := f.getCollection(agentID, "weights")
	if err != nil {
		return err
	}
	docID := fmt.Sprintf("%010d", snap.Generation)
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":       string(jsonBytes),
		"generation": snap.Generation,
		"timestamp":  snap.SavedAt,
		"version":    types.CurrentWeightsVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to save weights: %w", err)
	}
	return nil
}

func unmarshalWeightsDoc(ctx context.Context, agentID string, doc *firestore.DocumentSnapshot) (types.WeightsSnapshot, error) {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "weights doc missing json", slog.String("docID", doc.Ref.ID), slog.String("agentID", agentID), slog.Any("err", err))
		return types.WeightsSnapshot{}, fmt.Errorf("weights document %s missing 'json' field: %w", doc.Ref.ID, err)
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "weights doc json not string", slog.String("docID", doc.Ref.ID), slog.String("agentID", agentID))
		return types.WeightsSnapshot{}, fmt.Errorf("weights document %s 'json' field is not string", doc.Ref.ID)
	}

	var snap types.WeightsSnapshot
	if err := json.Unmarshal([]byte(jsonStr), &snap); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal weights", slog.String("docID", doc.Ref.ID), slog.String("agentID", agentID), slog.Any("err", err))
		return types.WeightsSnapshot{}, fmt.Errorf("failed to unmarshal weights (id=%s): %w", doc.Ref.ID, err)
	}
	return snap, nil
}

// GetWeights retrieves the snapshot saved for a specific generation.
func (f *FirestoreProvider) GetWeights(ctx context.Context, agentID string, generation int) (types.WeightsSnapshot, error) {
	coll, err := f.getCollection(agentID, "weights")
	if err != nil {
		return types.WeightsSnapshot{}, err
	}
	doc, err := coll.Doc(fmt.Sprintf("%010d", generation)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.WeightsSnapshot{}, fmt.Errorf("%w: agent %s generation %d", ErrWeightsNotFound, agentID, generation)
		}
		return types.WeightsSnapshot{}, fmt.Errorf("failed to fetch weights doc: %w", err)
	}
	return unmarshalWeightsDoc(ctx, agentID, doc)
}

// GetLatestWeights retrieves the most recently saved snapshot for an agent.
func (f *FirestoreProvider) GetLatestWeights(ctx context.Context, agentID string) (types.WeightsSnapshot, error) {
	coll, err := f.getCollection(agentID, "weights")
	if err != nil {
		return types.WeightsSnapshot{}, err
	}
	iter := coll.
		OrderBy("generation", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return types.WeightsSnapshot{}, fmt.Errorf("%w: agent %s", ErrWeightsNotFound, agentID)
	}
	if err != nil {
		return types.WeightsSnapshot{}, fmt.Errorf("failed to get latest weights doc: %w", err)
	}
	return unmarshalWeightsDoc(ctx, agentID, doc)
}

// InsertMetricSamples appends a batch of telemetry samples to the "metrics"
// collection. Each batch is one document so the fire-and-forget flush stays
// a single write.
func (f *FirestoreProvider) InsertMetricSamples(ctx context.Context, agentID string, samples []types.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	jsonBytes, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("failed to marshal metric samples: %w", err)
	}

	coll, err := f.getCollection(agentID, "metrics")
	if err != nil {
		return err
	}
	first := samples[0].Timestamp
	// Use RFC3339 plus nanos as document ID for lexicographic ordering and
	// efficient range queries
	docID := first.UTC().Format(time.RFC3339) + "_" + strconv.Itoa(first.Nanosecond())
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": first,
		"version":   types.CurrentMetricsVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to insert metric samples: %w", err)
	}
	return nil
}

// GetMetricSamples retrieves telemetry samples within the specified time
// range. Uses document ID range queries for efficient filtering without
// reading all documents.
func (f *FirestoreProvider) GetMetricSamples(ctx context.Context, agentID string, start, end time.Time) ([]types.MetricSample, error) {
	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)

	coll, err := f.getCollection(agentID, "metrics")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var all []types.MetricSample
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating metric samples: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "metrics doc missing json", slog.String("docID", doc.Ref.ID), slog.String("agentID", agentID), slog.Any("err", err))
			return nil, fmt.Errorf("metrics document %s missing 'json' field: %w", doc.Ref.ID, err)
		}

		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "metrics doc json not string", slog.String("docID", doc.Ref.ID), slog.String("agentID", agentID))
			return nil, fmt.Errorf("metrics document %s 'json' field is not string", doc.Ref.ID)
		}

		var batch []types.MetricSample
		if err := json.Unmarshal([]byte(jsonStr), &batch); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal metric samples", slog.String("docID", doc.Ref.ID), slog.String("agentID", agentID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal metric samples (id=%s): %w", doc.Ref.ID, err)
		}
		all = append(all, batch...)
	}
	return all, nil
}
