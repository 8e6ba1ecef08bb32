// Package sqlite provides the production Repository backed by a single
// SQLite database file via gorm. SQLite allows one writer at a time, so
// all mutating calls are serialized through the repository mutex.
package sqlite

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/m-mizutani/goerr/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/potenza-io/opsbot/pkg/domain/interfaces"
	"github.com/potenza-io/opsbot/pkg/domain/model"
	"github.com/potenza-io/opsbot/pkg/domain/types"
)

type Repository struct {
	db *gorm.DB
	mu sync.Mutex
}

var _ interfaces.Repository = (*Repository)(nil)

// New opens (and migrates) the database file at path. WAL mode keeps
// readers unblocked while the single writer holds the file.
func New(path string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "open sqlite database", goerr.V("path", path))
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, goerr.Wrap(err, "apply pragma", goerr.V("pragma", pragma))
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Migrate creates or updates the schema
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&userRecord{},
		&verificationRecord{},
		&conversationRecord{},
		&eventRecord{},
		&actAsRecord{},
		&auditRecord{},
	); err != nil {
		return goerr.Wrap(err, "migrate schema")
	}
	return nil
}

func (r *Repository) User() interfaces.UserRepository                 { return &userRepo{r} }
func (r *Repository) Verification() interfaces.VerificationRepository { return &verificationRepo{r} }
func (r *Repository) Conversation() interfaces.ConversationRepository { return &conversationRepo{r} }
func (r *Repository) Event() interfaces.EventRepository               { return &eventRepo{r} }
func (r *Repository) ActAs() interfaces.ActAsRepository               { return &actAsRepo{r} }
func (r *Repository) Audit() interfaces.AuditRepository               { return &auditRepo{r} }

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return goerr.Wrap(err, "unwrap sql.DB")
	}
	return sqlDB.Close()
}

// storageErr tags a database failure with types.ErrStorageFailure so
// callers can match the class via errors.Is. The driver error text is
// carried as a value.
func storageErr(err error, msg string, values ...goerr.Option) error {
	values = append(values, goerr.V("cause", err.Error()))
	return goerr.Wrap(types.ErrStorageFailure, msg, values...)
}

// isDuplicateKey recognizes unique constraint violations from both gorm's
// translated error and the raw driver message
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

type userRecord struct {
	SlackID         string    `gorm:"column:slack_id;primaryKey"`
	Email           string    `gorm:"column:email;uniqueIndex;not null"`
	CorporateID     int64     `gorm:"column:corporate_id"`
	IsAdmin         bool      `gorm:"column:is_admin"`
	AuthenticatedAt time.Time `gorm:"column:authenticated_at"`
}

func (userRecord) TableName() string { return "users" }

func (rec *userRecord) toModel() *model.User {
	return &model.User{
		SlackID:         model.SlackUserID(rec.SlackID),
		Email:           rec.Email,
		CorporateID:     rec.CorporateID,
		IsAdmin:         rec.IsAdmin,
		AuthenticatedAt: rec.AuthenticatedAt,
	}
}

type verificationRecord struct {
	SlackID   string    `gorm:"column:slack_id;primaryKey"`
	Email     string    `gorm:"column:email;not null"`
	Code      string    `gorm:"column:code;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (verificationRecord) TableName() string { return "verification_codes" }

type conversationRecord struct {
	ChannelID          string    `gorm:"column:channel_id;primaryKey"`
	PreviousResponseID string    `gorm:"column:previous_response_id;not null"`
	LastUpdated        time.Time `gorm:"column:last_updated"`
}

func (conversationRecord) TableName() string { return "conversations" }

type eventRecord struct {
	MessageTS   string    `gorm:"column:message_ts;primaryKey"`
	ChannelID   string    `gorm:"column:channel_id;primaryKey"`
	ProcessedAt time.Time `gorm:"column:processed_at;index"`
}

func (eventRecord) TableName() string { return "processed_events" }

type actAsRecord struct {
	AdminSlackID string    `gorm:"column:admin_slack_id;primaryKey"`
	UserSlackID  string    `gorm:"column:user_slack_id;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (actAsRecord) TableName() string { return "acting_as_sessions" }

type auditRecord struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	FunctionName string    `gorm:"column:function_name;not null"`
	UserEmail    string    `gorm:"column:user_email"`
	SlackID      string    `gorm:"column:slack_id"`
	ActorSlackID string    `gorm:"column:actor_slack_id"`
	CalledAt     time.Time `gorm:"column:called_at;index"`
}

func (auditRecord) TableName() string { return "tool_usage" }
