package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/troikatech/collections-agent/pkg/mongo"
)

const refreshCollection = "refresh_tokens"

type refreshToken struct {
	Subject   string     `bson:"subject"`
	TokenHash string     `bson:"token_hash"`
	ExpiresAt time.Time  `bson:"expires_at"`
	RevokedAt *time.Time `bson:"revoked_at,omitempty"`
	CreatedAt time.Time  `bson:"created_at"`
}

// RefreshStore keeps hashed refresh tokens in mongo
type RefreshStore struct {
	client *mongo.Client
	ttl    time.Duration
}

func NewRefreshStore(client *mongo.Client, expiresInDays int) *RefreshStore {
	if expiresInDays <= 0 {
		expiresInDays = 7
	}
	return &RefreshStore{client: client, ttl: time.Duration(expiresInDays) * 24 * time.Hour}
}

// Store saves the hash of token for subject
func (s *RefreshStore) Store(ctx context.Context, subject, token string) error {
	now := time.Now()
	_, err := s.client.NewQuery(refreshCollection).Insert(ctx, refreshToken{
		Subject:   subject,
		TokenHash: hashToken(token),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	})
	return err
}

// Verify returns the subject of a live refresh token
func (s *RefreshStore) Verify(ctx context.Context, token string) (string, error) {
	var rt refreshToken
	found, err := s.client.NewQuery(refreshCollection).Eq("token_hash", hashToken(token)).FindOne(ctx, &rt)
	if err != nil {
		return "", fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if !found {
		return "", fmt.Errorf("refresh token not found")
	}
	if rt.RevokedAt != nil {
		return "", fmt.Errorf("refresh token has been revoked")
	}
	if time.Now().After(rt.ExpiresAt) {
		return "", fmt.Errorf("refresh token has expired")
	}
	return rt.Subject, nil
}

// Revoke marks a refresh token as used up
func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	_, err := s.client.NewQuery(refreshCollection).
		Eq("token_hash", hashToken(token)).
		Upsert(ctx, bson.M{"$set": bson.M{"revoked_at": time.Now()}})
	return err
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
