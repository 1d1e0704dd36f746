package runstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Protocol-Lattice/calendar-agent/pkg/orchestrator"
)

const mongoCloseTimeout = 5 * time.Second

// Mongo stores one document per run.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		return nil, errors.New("mongo collection name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &Mongo{client: client, collection: client.Database(database).Collection(collection)}, nil
}

func document(r orchestrator.Result) bson.M {
	s := Summarize(r)
	steps := make([]bson.M, 0, len(r.Steps))
	for _, st := range r.Steps {
		d := bson.M{
			"position": st.Position,
			"kind":     string(st.Kind),
			"at":       st.At,
		}
		if st.Tool != "" {
			d["tool"] = st.Tool
		}
		if st.Outcome != "" {
			d["outcome"] = st.Outcome
		}
		if st.Rationale != "" {
			d["rationale"] = st.Rationale
		}
		if st.Error != "" {
			d["error"] = st.Error
		}
		if st.Result != nil {
			d["success"] = st.Result.Success
			d["message"] = st.Result.Message
		}
		steps = append(steps, d)
	}
	return bson.M{
		"_id":             s.RunID,
		"model":           s.Model,
		"outcome":         string(s.Outcome),
		"reason":          string(s.Reason),
		"success":         s.Success,
		"response":        s.Response,
		"error":           s.Error,
		"step_count":      s.Steps,
		"tool_call_count": s.ToolCalls,
		"tools":           s.Tools,
		"steps":           steps,
		"started_at":      s.Started,
		"finished_at":     s.Finished,
	}
}

func (m *Mongo) Record(ctx context.Context, r orchestrator.Result) error {
	if m == nil || m.collection == nil {
		return nil
	}
	_, err := m.collection.InsertOne(ctx, document(r))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	return nil
}

// Recent returns up to limit summaries, newest first.
func (m *Mongo) Recent(ctx context.Context, limit int) ([]Summary, error) {
	if m == nil || m.collection == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := m.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Summary
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
