package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/chepyr/quicktask/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type taskDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Owner       string             `bson:"user"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Priority    string             `bson:"priority"`
	Status      string             `bson:"status"`
	DueDate     *time.Time         `bson:"dueDate,omitempty"`
	CompletedAt *time.Time         `bson:"completedAt,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func newTaskDocument(task *models.Task) taskDocument {
	return taskDocument{
		Owner:       task.Owner,
		Title:       task.Title,
		Description: task.Description,
		Priority:    string(task.Priority),
		Status:      string(task.Status),
		DueDate:     task.DueDate,
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
	}
}

func (d taskDocument) toModel() *models.Task {
	task := &models.Task{
		ID:          d.ID.Hex(),
		Owner:       d.Owner,
		Title:       d.Title,
		Description: d.Description,
		Priority:    models.Priority(d.Priority),
		Status:      models.TaskStatus(d.Status),
		CreatedAt:   d.CreatedAt.UTC(),
	}
	if d.DueDate != nil {
		t := d.DueDate.UTC()
		task.DueDate = &t
	}
	if d.CompletedAt != nil {
		t := d.CompletedAt.UTC()
		task.CompletedAt = &t
	}
	return task
}

// MongoTaskRepository stores tasks as documents keyed by ObjectID. Ties on
// createdAt are broken by _id, which grows with insertion order.
type MongoTaskRepository struct {
	mongoPinger
	tasks *mongo.Collection
}

func NewMongoTaskRepository(database *mongo.Database) *MongoTaskRepository {
	return &MongoTaskRepository{
		mongoPinger: mongoPinger{database: database},
		tasks:       database.Collection(tasksCollection),
	}
}

func (r *MongoTaskRepository) Create(ctx context.Context, task *models.Task) error {
	doc := newTaskDocument(task)
	doc.ID = primitive.NewObjectID()
	if _, err := r.tasks.InsertOne(ctx, doc); err != nil {
		return err
	}
	task.ID = doc.ID.Hex()
	return nil
}

func (r *MongoTaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc taskDocument
	err = r.tasks.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *MongoTaskRepository) ListByOwner(ctx context.Context, ownerID string, filter models.TaskFilter) ([]*models.Task, error) {
	query := bson.M{"user": ownerID}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.Priority != "" {
		query["priority"] = string(filter.Priority)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		query["$or"] = bson.A{bson.M{"title": re}, bson.M{"description": re}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := r.tasks.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	tasks := make([]*models.Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, doc.toModel())
	}
	return tasks, nil
}

// Update replaces the stored document; the replacement carries the original
// owner and createdAt, so neither can change.
func (r *MongoTaskRepository) Update(ctx context.Context, task *models.Task) error {
	oid, err := primitive.ObjectIDFromHex(task.ID)
	if err != nil {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	doc := newTaskDocument(task)
	doc.ID = oid
	res, err := r.tasks.ReplaceOne(ctx, bson.M{"_id": oid, "user": task.Owner}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

func (r *MongoTaskRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	res, err := r.tasks.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *MongoTaskRepository) CountByOwner(ctx context.Context, ownerID string) (models.TaskCounts, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user": ownerID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": 1},
			"completed": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$status", string(models.TaskStatusCompleted)}}, 1, 0},
			}},
		}}},
	}
	cursor, err := r.tasks.Aggregate(ctx, pipeline)
	if err != nil {
		return models.TaskCounts{}, err
	}
	var results []struct {
		Total     int64 `bson:"total"`
		Completed int64 `bson:"completed"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return models.TaskCounts{}, err
	}
	if len(results) == 0 {
		return models.TaskCounts{}, nil
	}
	return models.TaskCounts{Total: results[0].Total, Completed: results[0].Completed}, nil
}

func (r *MongoTaskRepository) PriorityDistribution(ctx context.Context, ownerID string) ([]models.PriorityCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user": ownerID}}},
		{{Key: "$group", Value: bson.M{"_id": "$priority", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.tasks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var results []struct {
		Priority string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	stats := make([]models.PriorityCount, 0, len(results))
	for _, res := range results {
		stats = append(stats, models.PriorityCount{Priority: models.Priority(res.Priority), Count: res.Count})
	}
	return stats, nil
}

func (r *MongoTaskRepository) CompletedSince(ctx context.Context, ownerID string, since time.Time) ([]time.Time, error) {
	query := bson.M{
		"user":        ownerID,
		"status":      string(models.TaskStatusCompleted),
		"completedAt": bson.M{"$gte": since},
	}
	opts := options.Find().SetProjection(bson.M{"completedAt": 1})
	cursor, err := r.tasks.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var docs []struct {
		CompletedAt time.Time `bson:"completedAt"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	times := make([]time.Time, 0, len(docs))
	for _, doc := range docs {
		times = append(times, doc.CompletedAt.UTC())
	}
	return times, nil
}
