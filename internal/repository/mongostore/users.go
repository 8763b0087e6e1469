package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository"
)

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"passwordHash"`
	Phone        string             `bson:"phone"`
	IsAdmin      bool               `bson:"isAdmin"`
	Street       string             `bson:"street,omitempty"`
	Apartment    string             `bson:"apartment,omitempty"`
	Zip          string             `bson:"zip,omitempty"`
	City         string             `bson:"city,omitempty"`
	Country      string             `bson:"country,omitempty"`
}

func (d userDocument) toModel() models.User {
	return models.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Phone:        d.Phone,
		IsAdmin:      d.IsAdmin,
		Street:       d.Street,
		Apartment:    d.Apartment,
		Zip:          d.Zip,
		City:         d.City,
		Country:      d.Country,
	}
}

type UserStore struct {
	users *mongo.Collection
}

var _ repository.UserStore = (*UserStore)(nil)

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{users: db.Collection(usersCollection)}
}

func (s *UserStore) InsertUser(ctx context.Context, user models.User) (models.User, error) {
	doc := userDocument{
		ID:           primitive.NewObjectID(),
		Name:         user.Name,
		Email:        strings.ToLower(strings.TrimSpace(user.Email)),
		PasswordHash: user.PasswordHash,
		Phone:        user.Phone,
		IsAdmin:      user.IsAdmin,
		Street:       user.Street,
		Apartment:    user.Apartment,
		Zip:          user.Zip,
		City:         user.City,
		Country:      user.Country,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, repository.ErrDuplicate
		}
		return models.User{}, fmt.Errorf("mongostore: insert user: %w", err)
	}
	return doc.toModel(), nil
}

func (s *UserStore) FindUser(ctx context.Context, id string) (models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return models.User{}, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *UserStore) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, repository.ErrNotFound
		}
		return models.User{}, fmt.Errorf("mongostore: find user: %w", err)
	}
	return doc.toModel(), nil
}

func (s *UserStore) ListUsers(ctx context.Context) ([]models.User, error) {
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongostore: list users: %w", err)
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode users: %w", err)
	}
	out := make([]models.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (s *UserStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("mongostore: count users: %w", err)
	}
	return n, nil
}

// FindUserNames loads only the name field for the given ids. Malformed ids are skipped.
func (s *UserStore) FindUserNames(ctx context.Context, ids []string) (map[string]string, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	names := make(map[string]string, len(oids))
	if len(oids) == 0 {
		return names, nil
	}

	opts := options.Find().SetProjection(bson.M{"name": 1})
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": oids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: find user names: %w", err)
	}
	var docs []struct {
		ID   primitive.ObjectID `bson:"_id"`
		Name string             `bson:"name"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode user names: %w", err)
	}
	for _, d := range docs {
		names[d.ID.Hex()] = d.Name
	}
	return names, nil
}

func (s *UserStore) UpdateUser(ctx context.Context, id string, patch repository.UserPatch) (models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return models.User{}, err
	}

	set := bson.M{}
	for field, v := range map[string]*string{
		"name":         patch.Name,
		"passwordHash": patch.PasswordHash,
		"phone":        patch.Phone,
		"street":       patch.Street,
		"apartment":    patch.Apartment,
		"zip":          patch.Zip,
		"city":         patch.City,
		"country":      patch.Country,
	} {
		if v != nil {
			set[field] = *v
		}
	}
	if patch.Email != nil {
		set["email"] = strings.ToLower(strings.TrimSpace(*patch.Email))
	}
	if patch.IsAdmin != nil {
		set["isAdmin"] = *patch.IsAdmin
	}
	if len(set) == 0 {
		return s.findOne(ctx, bson.M{"_id": oid})
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	err = s.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	switch {
	case err == nil:
		return doc.toModel(), nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.User{}, repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return models.User{}, repository.ErrDuplicate
	default:
		return models.User{}, fmt.Errorf("mongostore: update user: %w", err)
	}
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongostore: delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
