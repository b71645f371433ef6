package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/openon-app/capsule-api/internal/repository"
)

type capsuleRepository struct {
	db *sqlx.DB
}

type recipientRepository struct {
	db *sqlx.DB
}

type userRepository struct {
	db *sqlx.DB
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewCapsuleRepository(db *sqlx.DB) repository.CapsuleRepository {
	return &capsuleRepository{db: db}
}

func NewRecipientRepository(db *sqlx.DB) repository.RecipientRepository {
	return &recipientRepository{db: db}
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}
