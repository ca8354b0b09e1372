package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const noticeCollection = "bid_pblanc_list"

// ConnectMongo opens the document store holding the collected tender
// notices.
func ConnectMongo(ctx context.Context) (*mongo.Client, error) {
	url := os.Getenv("MONGO_URL")
	if url == "" {
		url = "mongodb://127.0.0.1:27017"
	}

	clientOpts := options.Client().ApplyURI(url)
	clientOpts.SetMinPoolSize(5)
	clientOpts.SetMaxPoolSize(10)

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("error connecting to document store: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("error pinging document store: %w", err)
	}

	return client, nil
}

// Notices is the flat notice-document store. Documents keep their G2B field
// names; interpretation happens in the normalizer, not here.
type Notices struct {
	coll *mongo.Collection
}

func NewNotices(client *mongo.Client) *Notices {
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "g2b_bid_finder"
	}
	return &Notices{coll: client.Database(dbName).Collection(noticeCollection)}
}

// List returns every notice document ordered by notice datetime descending,
// with the document id exposed under "id" the way the relay serves it.
func (n *Notices) List(ctx context.Context) ([]map[string]any, error) {
	opts := options.Find().SetSort(bson.D{{Key: "bidNtceDt", Value: -1}})
	cursor, err := n.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query notices: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []map[string]any
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode notices: %w", err)
	}

	for _, doc := range docs {
		if rawID, ok := doc["_id"]; ok {
			if id, ok := rawID.(string); ok {
				doc["id"] = id
			}
			delete(doc, "_id")
		}
	}
	return docs, nil
}

// Upsert merge-writes a batch of collected notice documents, keyed by
// notice number + ordinal. Returns how many documents were written.
func (n *Notices) Upsert(ctx context.Context, docs []map[string]any, collectedAt time.Time) (int, error) {
	saved := 0
	for _, doc := range docs {
		id := NoticeDocID(doc)
		if id == "" {
			continue
		}

		update := bson.M{}
		for k, v := range doc {
			update[k] = v
		}
		update["collectedAt"] = collectedAt.Format(time.RFC3339)

		_, err := n.coll.UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": update},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return saved, fmt.Errorf("failed to upsert notice %s: %w", id, err)
		}
		saved++
	}
	return saved, nil
}

// RemoveOrdinals deletes superseded re-notice variants of one notice number.
func (n *Notices) RemoveOrdinals(ctx context.Context, noticeNo string, ordinals []string) (int, error) {
	if len(ordinals) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(ordinals))
	for _, ord := range ordinals {
		ids = append(ids, strings.TrimSuffix(noticeNo+"-"+ord, "-"))
	}
	res, err := n.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to remove superseded ordinals for %s: %w", noticeNo, err)
	}
	return int(res.DeletedCount), nil
}

// LatestNoticeTime returns the most recent notice datetime in the store,
// the collection watermark incremental runs start from. The boolean is
// false when the collection is empty or no stored value parses.
func (n *Notices) LatestNoticeTime(ctx context.Context) (time.Time, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "bidNtceDt", Value: -1}})

	var doc map[string]any
	err := n.coll.FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read collection watermark: %w", err)
	}

	raw, _ := doc["bidNtceDt"].(string)
	for _, format := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(format, raw); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, nil
}

// NoticeDocID derives the document key for a raw notice:
// "{bidNtceNo}-{bidNtceOrd}", falling back to the unified notice number.
func NoticeDocID(doc map[string]any) string {
	noticeNo, _ := doc["bidNtceNo"].(string)
	ordinal, _ := doc["bidNtceOrd"].(string)
	id := strings.Trim(strings.TrimSpace(noticeNo)+"-"+strings.TrimSpace(ordinal), "-")
	if id != "" {
		return id
	}
	unified, _ := doc["untyNtceNo"].(string)
	return strings.TrimSpace(unified)
}
