package cursor

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roach88/docsql/internal/docop"
	"github.com/roach88/docsql/internal/docstore"
)

// run issues op to the store and prepares the cursor's result state.
func (c *Cursor) run(ctx context.Context, op docop.Operation) (Result, error) {
	res := Result{Kind: op.Kind(), RowCount: 1}

	switch o := op.(type) {
	case *docop.Find:
		n, err := c.store.CountDocuments(ctx, o.Collection, o.Filter, o.Limit)
		if err != nil {
			return Result{}, err
		}
		stream, err := c.store.Find(ctx, o.Collection, o.Filter, docstore.FindOptions{
			Projection: o.Projection,
			Sort:       o.Sort,
			Limit:      o.Limit,
		})
		if err != nil {
			return Result{}, err
		}
		c.open(stream, shape{left: o.Collection, fields: o.Fields, constant: o.ReturnConst}, op)
		res.RowCount = n

	case *docop.Aggregate:
		pipeline := o.Pipeline.BSON()
		n, err := c.countPipeline(ctx, o.Collection, pipeline)
		if err != nil {
			return Result{}, err
		}
		stream, err := c.store.Aggregate(ctx, o.Collection, pipeline)
		if err != nil {
			return Result{}, err
		}
		c.open(stream, shape{left: o.Collection, fields: o.Fields, constant: o.ReturnConst}, op)
		res.RowCount = n

	case *docop.Count:
		n, err := c.store.CountDocuments(ctx, o.Collection, nil, 0)
		if err != nil {
			return Result{}, err
		}
		c.scalar = &n
		c.columns = docop.Columns(op)

	case *docop.Insert:
		id, err := c.insert(ctx, o)
		if err != nil {
			return Result{}, err
		}
		res.LastInsertID = id
		c.logger.Info("inserted document", "collection", o.Collection, "id", id)

	case *docop.Update:
		ur, err := c.store.UpdateMany(ctx, o.Collection, o.Filter, o.Update)
		if err != nil {
			return Result{}, err
		}
		res.Matched, res.Modified = ur.Matched, ur.Modified
		c.logger.Info("updated documents", "collection", o.Collection, "matched", ur.Matched, "modified", ur.Modified)

	case *docop.Delete:
		n, err := c.store.DeleteMany(ctx, o.Collection, o.Filter)
		if err != nil {
			return Result{}, err
		}
		res.Deleted = n
		c.logger.Info("deleted documents", "collection", o.Collection, "deleted", n)

	case *docop.NoOp:
		c.logger.Debug("ignored statement", "statement", o.Statement)

	default:
		return Result{}, fmt.Errorf("unsupported operation type: %T", op)
	}
	return res, nil
}

func (c *Cursor) open(stream docstore.RowStream, s shape, op docop.Operation) {
	c.stream = stream
	c.shape = s
	c.columns = docop.Columns(op)
}

// countPipeline counts the rows pipeline yields by running it again with a
// trailing $count stage.
func (c *Cursor) countPipeline(ctx context.Context, coll string, pipeline mongo.Pipeline) (int64, error) {
	counted := append(slices.Clone(pipeline), bson.D{{Key: "$count", Value: "n"}})
	rs, err := c.store.Aggregate(ctx, coll, counted)
	if err != nil {
		return 0, err
	}
	defer rs.Close(ctx)

	if !rs.Next(ctx) {
		return 0, rs.Err()
	}
	var doc struct {
		N int64 `bson:"n"`
	}
	if err := rs.Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode row count: %w", err)
	}
	return doc.N, nil
}

// insert writes o.Document, first advancing the table's auto-increment
// counter when the metadata collection has one. The counted field goes
// first in the document unless the statement set it explicitly.
func (c *Cursor) insert(ctx context.Context, o *docop.Insert) (any, error) {
	counter, err := c.store.FindOneAndUpdate(ctx, c.meta,
		bson.D{{Key: "name", Value: o.Collection}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "auto.seq", Value: 1}}}},
	)
	if err != nil {
		return nil, fmt.Errorf("advance %s counter: %w", o.Collection, err)
	}

	doc := o.Document
	var autoID any
	if counter != nil {
		field, seq, err := autoField(counter)
		if err != nil {
			return nil, fmt.Errorf("%s counter: %w", o.Collection, err)
		}
		if v, ok := get(doc, field); ok {
			autoID = v
		} else {
			doc = append(bson.D{{Key: field, Value: seq}}, doc...)
			autoID = seq
		}
	}

	id, err := c.store.InsertOne(ctx, o.Collection, doc)
	if err != nil {
		return nil, err
	}
	if autoID != nil {
		return autoID, nil
	}
	return idText(id), nil
}

// idText renders a store-generated _id as text.
func idText(id any) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

func autoField(counter bson.D) (string, any, error) {
	v, ok := get(counter, "auto")
	auto, isDoc := v.(bson.D)
	if !ok || !isDoc {
		return "", nil, fmt.Errorf("counter document has no auto section")
	}
	name, _ := get(auto, "field_name")
	field, ok := name.(string)
	if !ok || field == "" {
		return "", nil, fmt.Errorf("counter document has no auto.field_name")
	}
	seq, ok := get(auto, "seq")
	if !ok {
		return "", nil, fmt.Errorf("counter document has no auto.seq")
	}
	return field, seq, nil
}
