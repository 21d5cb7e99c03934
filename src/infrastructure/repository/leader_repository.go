package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ppn-portal/src/database"
	"ppn-portal/src/domain"

	"github.com/sirupsen/logrus"
)

// LeaderRepository implements domain.LeaderRepository on SQL
type LeaderRepository struct {
	db     *database.DB
	logger *logrus.Logger
}

// NewLeaderRepository リーダーリポジトリを作成
func NewLeaderRepository(db *database.DB, logger *logrus.Logger) *LeaderRepository {
	return &LeaderRepository{db: db, logger: logger}
}

const leaderColumns = `id, name, email, password_hash, is_active`

// GetByID IDでリーダーを取得
func (r *LeaderRepository) GetByID(ctx context.Context, id int) (*domain.Leader, error) {
	return r.getOne(ctx, `SELECT `+leaderColumns+` FROM leaders WHERE id = ?`, id)
}

// GetByEmail メールアドレスでリーダーを取得
func (r *LeaderRepository) GetByEmail(ctx context.Context, email string) (*domain.Leader, error) {
	return r.getOne(ctx, `SELECT `+leaderColumns+` FROM leaders WHERE email = ?`, email)
}

func (r *LeaderRepository) getOne(ctx context.Context, query string, arg interface{}) (*domain.Leader, error) {
	var leader domain.Leader
	if err := r.db.GetContext(ctx, &leader, r.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLeaderNotFound
		}
		return nil, fmt.Errorf("failed to get leader: %w", err)
	}
	return &leader, nil
}

// Create リーダーを作成
func (r *LeaderRepository) Create(ctx context.Context, leader *domain.Leader) (*domain.Leader, error) {
	query := r.db.Rebind(`INSERT INTO leaders (name, email, password_hash, is_active) VALUES (?, ?, ?, ?) RETURNING id`)

	created := *leader
	if err := r.db.QueryRowxContext(ctx, query, leader.Name, leader.Email, leader.PasswordHash, leader.IsActive).Scan(&created.ID); err != nil {
		return nil, fmt.Errorf("failed to create leader: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"leader_id": created.ID,
		"email":     created.Email,
	}).Info("リーダーを作成しました")
	return &created, nil
}
