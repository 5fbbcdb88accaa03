package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const FilesCollection = "files"

type fileDoc struct {
	models.FileMeta `bson:",inline"`
	Content         []byte `bson:"content"`
}

type MongoStore struct {
	files *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{files: db.Collection(FilesCollection)}
}

func (s *MongoStore) Get(ctx context.Context, id string) ([]byte, error) {
	var doc fileDoc
	opts := options.FindOne().SetProjection(bson.M{"content": 1})
	if err := s.files.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc); err != nil {
		return nil, mongoErr("get "+id, err)
	}
	return doc.Content, nil
}

func (s *MongoStore) GetMeta(ctx context.Context, id string) (models.FileMeta, error) {
	var meta models.FileMeta
	opts := options.FindOne().SetProjection(bson.M{"content": 0})
	if err := s.files.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&meta); err != nil {
		return models.FileMeta{}, mongoErr("meta "+id, err)
	}
	return meta, nil
}

func (s *MongoStore) Create(ctx context.Context, nf NewFile) (models.FileMeta, error) {
	doc := fileDoc{
		FileMeta: models.FileMeta{
			ID:          uuid.New().String(),
			Name:        nf.Name,
			MimeType:    nf.MimeType,
			Description: nf.Description,
			LocationID:  nf.LocationID,
			Parents:     []string{},
			CreatedAt:   time.Now().UTC(),
		},
		Content: nf.Body,
	}
	if nf.Parent != "" {
		doc.Parents = []string{nf.Parent}
	}
	if _, err := s.files.InsertOne(ctx, doc); err != nil {
		return models.FileMeta{}, mongoErr("create "+nf.Name, err)
	}
	return doc.FileMeta, nil
}

func (s *MongoStore) Update(ctx context.Context, id string, body []byte) error {
	res, err := s.files.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"content": body}})
	if err != nil {
		return mongoErr("update "+id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Copy(ctx context.Context, id, name string) (models.FileMeta, error) {
	var src fileDoc
	if err := s.files.FindOne(ctx, bson.M{"_id": id}).Decode(&src); err != nil {
		return models.FileMeta{}, mongoErr("copy "+id, err)
	}
	src.ID = uuid.New().String()
	src.Name = name
	src.CreatedAt = time.Now().UTC()
	if _, err := s.files.InsertOne(ctx, src); err != nil {
		return models.FileMeta{}, mongoErr("copy "+id, err)
	}
	return src.FileMeta, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.files.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mongoErr("delete "+id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) ListByFolder(ctx context.Context, folderID, nameFilter string) ([]models.FileMeta, error) {
	filter := bson.M{
		"parents":   folderID,
		"mime_type": bson.M{"$ne": models.MimeFolder},
	}
	if nameFilter != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(nameFilter)}
	}
	opts := options.Find().
		SetProjection(bson.M{"content": 0}).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cur, err := s.files.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoErr("list "+folderID, err)
	}
	out := []models.FileMeta{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, mongoErr("list "+folderID, err)
	}
	return out, nil
}

func (s *MongoStore) EnsureFolder(ctx context.Context, name string) (string, error) {
	var meta models.FileMeta
	err := s.files.FindOne(ctx, bson.M{"name": name, "mime_type": models.MimeFolder}).Decode(&meta)
	if err == nil {
		return meta.ID, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return "", mongoErr("folder "+name, err)
	}
	created, err := s.Create(ctx, NewFile{Name: name, MimeType: models.MimeFolder})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func mongoErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrStoreUnavailable, err)
}
