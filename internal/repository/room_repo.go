package repository

import (
	"context"
	"errors"
	"quizroom/internal/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrVersionConflict is returned by Update when the stored version is not the
// one the caller loaded
var ErrVersionConflict = errors.New("room version conflict")

// ErrDuplicateRoom is returned by Create when the id is already taken
var ErrDuplicateRoom = errors.New("room already exists")

// RoomRepo is the durable store of rooms. Get methods return (nil, nil) when
// nothing matches.
type RoomRepo interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	// Update replaces the room if the stored version is room.Version-1
	Update(ctx context.Context, room *model.Room) error
	FindByConnection(ctx context.Context, connID string) ([]*model.Room, error)
	ListByState(ctx context.Context, states ...model.RoomState) ([]*model.Room, error)
	// ListInactive returns running rooms whose last activity is before cutoff
	ListInactive(ctx context.Context, cutoff time.Time) ([]*model.Room, error)
	EnsureIndexes(ctx context.Context) error
}

type roomRepo struct {
	collection *mongo.Collection
}

// NewRoomRepo returns a MongoDB backed RoomRepo on the "rooms" collection
func NewRoomRepo(db *mongo.Database) RoomRepo {
	return &roomRepo{
		collection: db.Collection("rooms"),
	}
}

func (r *roomRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "players.connectionId", Value: 1}}},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "lastActivity", Value: 1}}},
	})
	return err
}

func (r *roomRepo) Create(ctx context.Context, room *model.Room) error {
	_, err := r.collection.InsertOne(ctx, room)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateRoom
	}
	return err
}

func (r *roomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) Update(ctx context.Context, room *model.Room) error {
	filter := bson.M{"_id": room.ID, "version": room.Version - 1}
	res, err := r.collection.ReplaceOne(ctx, filter, room)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *roomRepo) FindByConnection(ctx context.Context, connID string) ([]*model.Room, error) {
	return r.find(ctx, bson.M{"players.connectionId": connID})
}

func (r *roomRepo) ListByState(ctx context.Context, states ...model.RoomState) ([]*model.Room, error) {
	return r.find(ctx, bson.M{"state": bson.M{"$in": states}})
}

func (r *roomRepo) ListInactive(ctx context.Context, cutoff time.Time) ([]*model.Room, error) {
	return r.find(ctx, bson.M{
		"state":        model.RoomRunning,
		"lastActivity": bson.M{"$lt": cutoff},
	})
}

func (r *roomRepo) find(ctx context.Context, filter bson.M) ([]*model.Room, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rooms []*model.Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}
