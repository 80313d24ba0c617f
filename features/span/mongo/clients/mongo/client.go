// Package mongo implements the low-level MongoDB client used by the span
// store.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
)

const (
	defaultCollection = "execution_spans"
	defaultTimeout    = 5 * time.Second
	clientName        = "span-mongo"
)

// Client exposes Mongo-backed operations for execution spans.
type Client interface {
	health.Pinger

	AppendSpan(ctx context.Context, span block.ExecutionSpan) error
}

// Options configures the Mongo client implementation.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type client struct {
	mongo   *mongodriver.Client
	coll    collection
	timeout time.Duration
}

// New returns a Client backed by the provided MongoDB client.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	coll := opts.Collection
	if coll == "" {
		coll = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	mcoll := opts.Client.Database(opts.Database).Collection(coll)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	wrapper := mongoCollection{coll: mcoll}
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return newClientWithCollection(opts.Client, wrapper, timeout)
}

func (c *client) Name() string {
	return clientName
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

// AppendSpan upserts span, keyed by its owning block and its own span id —
// each ExecutionSpan is written exactly once, when its block pops, so the
// upsert only ever guards against a duplicate delivery of the same
// completion record rather than an expected update-in-place.
func (c *client) AppendSpan(ctx context.Context, span block.ExecutionSpan) error {
	if span.BlockID == "" {
		return errors.New("block id is required")
	}
	if span.ID == "" {
		return errors.New("span id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	doc := toSpanDocument(span)
	filter := bson.M{"block_id": string(span.BlockID), "span_id": span.ID}
	update := bson.M{"$setOnInsert": doc}
	_, err := c.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type spanDocument struct {
	BlockID       string         `bson:"block_id"`
	SpanID        string         `bson:"span_id"`
	ParentSpanID  string         `bson:"parent_span_id,omitempty"`
	Type          string         `bson:"type"`
	Label         string         `bson:"label,omitempty"`
	StartTime     time.Time      `bson:"start_time"`
	EndTime       time.Time      `bson:"end_time,omitempty"`
	Status        string         `bson:"status"`
	Metrics       map[string]any `bson:"metrics,omitempty"`
	Fragments     []fragmentDoc  `bson:"fragments,omitempty"`
	DebugMetadata map[string]any `bson:"debug_metadata,omitempty"`
	StackLevel    int            `bson:"stack_level"`
}

type fragmentDoc struct {
	Kind      string `bson:"kind"`
	Value     any    `bson:"value"`
	Direction string `bson:"direction,omitempty"`
}

func toSpanDocument(span block.ExecutionSpan) spanDocument {
	return spanDocument{
		BlockID:       string(span.BlockID),
		SpanID:        span.ID,
		ParentSpanID:  span.ParentSpanID,
		Type:          string(span.Type),
		Label:         span.Label,
		StartTime:     span.StartTime,
		EndTime:       span.EndTime,
		Status:        string(span.Status),
		Metrics:       span.Metrics,
		Fragments:     toFragmentDocs(span.Fragments),
		DebugMetadata: span.DebugMetadata,
		StackLevel:    span.StackLevel,
	}
}

func toFragmentDocs(fragments []fragment.Fragment) []fragmentDoc {
	if len(fragments) == 0 {
		return nil
	}
	docs := make([]fragmentDoc, len(fragments))
	for i, f := range fragments {
		docs[i] = fragmentDoc{Kind: string(f.Kind), Value: f.Value, Direction: string(f.Direction)}
	}
	return docs
}

func ensureIndexes(ctx context.Context, coll collection) error {
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "block_id", Value: 1}, {Key: "span_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := coll.Indexes().CreateOne(ctx, index)
	return err
}

func newClientWithCollection(mongoClient *mongodriver.Client, coll collection, timeout time.Duration) (*client, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &client{
		mongo:   mongoClient,
		coll:    coll,
		timeout: timeout,
	}, nil
}

// collection, indexView, and singleResult narrow the mongo-driver surface
// this client actually uses, so tests can substitute an in-memory fake
// without standing up a real server.
type collection interface {
	UpdateOne(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...*options.CreateIndexesOptions) (string, error)
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...*options.CreateIndexesOptions) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
